package logutils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/colonyops/huddle/internal/core/logging"
)

// New returns a new logger. When file is set, JSON lines are written to it.
// Otherwise logs go to stdout, pretty-printed when stdout is a terminal and
// as JSON when it is not (containers, pipes).
//
// The level parameter can be one of: debug, info, warn, error, fatal.
func New(level string, file string) (zerolog.Logger, func(), error) {
	closer := func() {}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, closer, err
	}

	var writer io.Writer = os.Stdout
	switch {
	case file != "":
		logsDir := filepath.Dir(file)
		if err := os.MkdirAll(logsDir, 0o755); err != nil {
			return zerolog.Logger{}, closer, fmt.Errorf("create logs dir: %w", err)
		}

		osFile, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Logger{}, closer, err
		}

		closer = func() { _ = osFile.Close() }
		writer = osFile
	case term.IsTerminal(int(os.Stdout.Fd())):
		writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}

	return NewWithWriter(writer, lvl), closer, nil
}

// NewWithWriter builds the service logger on top of an arbitrary writer.
// The logging.ContextHook is always attached so events logged with .Ctx(ctx)
// carry session and connection fields.
func NewWithWriter(w io.Writer, lvl zerolog.Level) zerolog.Logger {
	return zerolog.New(w).
		Hook(logging.ContextHook{}).
		With().
		Timestamp().
		Logger().
		Level(lvl)
}
