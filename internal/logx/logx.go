// Package logx provides the structured logger used throughout the
// orchestrator: a thin wrapper over zerolog matching the legacy
// Options/WithFields/leveled-method shape so call sites read the same
// regardless of which concrete logging library backs them.
package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Options configures a Logger at construction time.
type Options struct {
	Level         string // "debug", "info", "warn", "error"; defaults to "info"
	HumanReadable bool   // console-writer output instead of JSON lines
	Writer        io.Writer
	Component     string
}

// Logger wraps a configured zerolog.Logger.
type Logger struct {
	z zerolog.Logger
}

// New builds a Logger from Options.
func New(opts Options) *Logger {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	if opts.HumanReadable {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: "15:04:05"}
	}

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	z := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	if opts.Component != "" {
		z = z.With().Str("component", opts.Component).Logger()
	}

	return &Logger{z: z}
}

// WithFields returns a derived Logger that always includes the given
// fields in every subsequent log line.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	if l == nil || len(fields) == 0 {
		return l
	}
	ctx := l.z.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{z: ctx.Logger()}
}

func (l *Logger) Debug(msg string) { l.z.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.z.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.z.Warn().Msg(msg) }
func (l *Logger) Error(msg string, err error) {
	if err != nil {
		l.z.Error().Err(err).Msg(msg)
		return
	}
	l.z.Error().Msg(msg)
}

// Nop returns a Logger that discards everything, useful as a safe
// zero-configuration default for callers that did not wire a real one.
func Nop() *Logger {
	return &Logger{z: zerolog.Nop()}
}
