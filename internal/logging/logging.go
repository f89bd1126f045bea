// Package logging sets up the process-wide slog logger.
package logging

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Setup installs the default slog logger. Format "pretty" gives colorized
// human-readable lines for local development; anything else logs JSON.
func Setup(format string) {
	var handler slog.Handler
	if format == "pretty" {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			TimeFormat: time.TimeOnly,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	}
	slog.SetDefault(slog.New(handler))
}
