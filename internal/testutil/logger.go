// Package testutil provides shared testing utilities for the ragline
// project, following the pattern of Go standard library packages like
// net/http/httptest and testing/iotest.
package testutil

import "log/slog"

// DiscardLogger returns a slog.Logger that discards all output.
// Use this in tests to reduce noise.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
