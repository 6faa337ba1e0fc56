// Package logging builds the diagnostic logger and decides whether console
// output is coloured.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// DefaultLevel keeps diagnostics quiet unless asked for.
const DefaultLevel = slog.LevelWarn

// ParseLevel accepts debug, info, warn (or warning) and error, in any case.
// The empty string yields DefaultLevel.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultLevel, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
}

// New returns a text logger writing to w at level.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// discardLevel is above every level in use, so a discard logger never
// formats a record.
const discardLevel = slog.Level(1 << 20)

// Discard returns a logger that drops everything. Components given a nil
// logger use it.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: discardLevel}))
}

// ColorEnabled reports whether output to w should be coloured: never when
// disabled explicitly or NO_COLOR is set in env, otherwise only for a
// terminal.
func ColorEnabled(w io.Writer, disabled bool, env []string) bool {
	if disabled {
		return false
	}
	for _, kv := range env {
		if name, value, ok := strings.Cut(kv, "="); ok && name == "NO_COLOR" && value != "" {
			return false
		}
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
