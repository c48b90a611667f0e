package helper

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger points the global zerolog logger at an append-only log file and,
// when console is not nil, a human readable console writer as well.
// The returned file must be closed by the caller.
func SetupLogger(path string, console io.Writer, level string) (io.Closer, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(lvl)

	var w io.Writer = f
	if console != nil {
		w = zerolog.MultiLevelWriter(f, zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339})
	}
	log.Logger = zerolog.New(w).With().Timestamp().Caller().Logger()
	return f, nil
}
