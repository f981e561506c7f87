// Package logger configures the process logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup returns a logger writing to stderr. verbose enables debug output;
// console switches from JSON lines to human-readable output.
func Setup(verbose, console bool) zerolog.Logger {
	return New(os.Stderr, verbose, console)
}

// New is Setup with an explicit writer.
func New(w io.Writer, verbose, console bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	if console {
		return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
			Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
