package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Logger writes JSON lines to <stateDir>/dojo.log so git failures can be
// inspected after the menu has exited.
type Logger struct {
	zerolog.Logger
	file *os.File
}

// New opens (or appends to) the log file under stateDir.
func New(stateDir string, level zerolog.Level) (*Logger, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	path := filepath.Join(stateDir, "dojo.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	return &Logger{Logger: build(f, level), file: f}, nil
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// ToWriter logs to w; used by commands that want diagnostics on stderr.
func ToWriter(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{Logger: build(w, level)}
}

func build(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Close releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
