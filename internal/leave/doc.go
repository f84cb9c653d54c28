// Package leave stores student leave requests and their review decisions.
// Requests start pending and move once to approved or rejected.
package leave
