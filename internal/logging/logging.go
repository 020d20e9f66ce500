// Package logging builds the zerolog logger shared by the CLI and the editor.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

const permission = 0o664

// Builder collects logger settings.
type Builder struct {
	writer  io.Writer
	path    string
	level   string
	console bool
}

// Log is a built logger and the file it owns, if any.
type Log struct {
	Logger zerolog.Logger
	file   *os.File
}

// New returns a builder writing JSON lines to stderr at info level.
func New() *Builder {
	return &Builder{writer: os.Stderr, level: zerolog.InfoLevel.String()}
}

// ToWriter sends output to w.
func (b *Builder) ToWriter(w io.Writer) *Builder {
	b.writer = w
	return b
}

// ToFile appends output to the file at path. It wins over ToWriter.
func (b *Builder) ToFile(path string) *Builder {
	b.path = path
	return b
}

// Level sets the minimum level by name ("debug", "info", ...). An empty
// name keeps the current level.
func (b *Builder) Level(name string) *Builder {
	if name != "" {
		b.level = name
	}
	return b
}

// Console switches to human-readable output. File output stays JSON.
func (b *Builder) Console(on bool) *Builder {
	b.console = on
	return b
}

// Make builds the logger.
func (b *Builder) Make() (*Log, error) {
	level, err := zerolog.ParseLevel(b.level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", b.level, err)
	}

	log := new(Log)
	w := b.writer
	if b.path != "" {
		log.file, err = os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = zerolog.SyncWriter(log.file)
	} else if b.console {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: "15:04:05"}
	}
	log.Logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
	return log, nil
}

// Close releases the log file.
func (l *Log) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
