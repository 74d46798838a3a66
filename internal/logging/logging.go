// Package logging centralizes zerolog setup for the screener binary.
// Grounded on the teacher's cmd/cryptorun main() (zerolog.
// TimeFieldFormat + a zerolog.ConsoleWriter on os.Stderr for a TTY)
// generalized into a reusable Init so cmd/screener and any future
// entrypoint share one setup path instead of repeating it inline.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Options configures Init.
type Options struct {
	// Level is one of zerolog's level strings (trace, debug, info,
	// warn, error). Defaults to "info" when empty or unparseable.
	Level string
	// Format forces "console" or "json". Empty means auto-detect from
	// whether stderr is a terminal, matching the teacher's TTY check.
	Format string
}

// Init configures the global zerolog logger and returns it for callers
// that want an explicit reference rather than the package-level
// zerolog/log singleton.
func Init(opts Options) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var writer io.Writer = os.Stderr
	if useConsole(opts.Format) {
		writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(writer).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

func useConsole(format string) bool {
	switch strings.ToLower(format) {
	case "console":
		return true
	case "json":
		return false
	default:
		return term.IsTerminal(int(os.Stderr.Fd()))
	}
}
