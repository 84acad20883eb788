package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the output shared by loggers created after Configure.
type Options struct {
	Level   string
	Console bool
	// File, when set, receives the logs instead of stdout and is rotated.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	optsMu  sync.RWMutex
	optsOut io.Writer
	optsLvl zerolog.Level
	optsSet bool
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Configure sets the writer and level of subsequently created loggers. The
// returned closer releases the log file, if any.
func Configure(o Options) io.Closer {
	var (
		out    io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	if o.File != "" {
		lj := &lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    o.MaxSizeMB,
			MaxBackups: o.MaxBackups,
			MaxAge:     o.MaxAgeDays,
		}
		out, closer = lj, lj
	}
	if o.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: o.File != ""}
	}
	optsMu.Lock()
	optsOut, optsLvl, optsSet = out, ParseLevel(o.Level), true
	optsMu.Unlock()
	return closer
}

// Reset drops the configured output; new loggers follow the environment again.
func Reset() {
	optsMu.Lock()
	optsOut, optsSet = nil, false
	optsMu.Unlock()
}

func configured() (io.Writer, zerolog.Level, bool) {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return optsOut, optsLvl, optsSet
}
