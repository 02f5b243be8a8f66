// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// New returns a text logger at level writing to stdout, and also to path
// when it is set. The returned closer releases the log file.
func New(level, path string) (*slog.Logger, io.Closer, error) {
	return newLogger(os.Stdout, level, path)
}

func newLogger(out io.Writer, level, path string) (*slog.Logger, io.Closer, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var closer io.Closer = nopCloser{}
	w := out
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = io.MultiWriter(out, f)
		closer = f
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	l := slog.New(handler)
	l.Debug("logger initialized", "level", lvl, "file", path)
	return l, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
