// Package shared holds code used by more than one layer. Its testutil
// subpackage provides a capturing slog handler and roster fixtures for tests.
package shared
