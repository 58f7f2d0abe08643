// Package logging hands out component loggers that share one output:
// stderr, plus a size-rotated file when one is configured.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the rotating log file. An empty File logs to the
// console only.
type Options struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Sink is the shared destination of all component loggers.
type Sink struct {
	out  io.Writer
	file *lumberjack.Logger
}

// Open creates a sink writing to console and, if opts.File is set, to the
// rotating file. A nil console means stderr.
func Open(opts Options, console io.Writer) *Sink {
	if console == nil {
		console = os.Stderr
	}

	s := &Sink{out: console}
	if opts.File != "" {
		s.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		s.out = io.MultiWriter(console, s.file)
	}
	return s
}

// New returns a logger for component, prefixed "[component] ".
func (s *Sink) New(component string) *log.Logger {
	return log.New(s.out, "["+component+"] ", log.LstdFlags)
}

// Rotate starts a new log file. It is a no-op without a file.
func (s *Sink) Rotate() error {
	if s.file == nil {
		return nil
	}
	return s.file.Rotate()
}

// Close closes the log file, if any.
func (s *Sink) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
