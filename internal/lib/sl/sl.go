// Package sl holds small helpers for log/slog attributes.
package sl

import "log/slog"

// Err returns the error as an "error" attribute.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}
