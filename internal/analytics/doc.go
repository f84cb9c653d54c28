// Package analytics derives attendance statistics from a roster.Dataset.
//
// Every (student, date) pair counts toward a bucket's total; only Present
// marks count toward its numerator, so an unmarked cell lowers the rate the
// same way an absence does. Rates over an empty denominator are undefined
// (domain.Percentage NaN) rather than zero. Series keep the order in which
// their keys first appear across the dataset's date columns, and all
// tie-breaks (best/worst month, rankings) follow that order.
package analytics
