// Package logging configures the process-wide zerolog logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/voyagen/confsync/internal/oops"
)

// Options controls where and how log lines are written.
type Options struct {
	Level  string // trace, debug, info, warn, error; default info
	Format string // "console" (default) or "json"
	File   string // optional path; rotated by lumberjack
}

func init() {
	zerolog.ErrorStackMarshaler = oops.ZerologStackMarshaler
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// Init installs the global logger. The returned close function flushes and
// closes the log file, if any.
func Init(opts Options) (func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(level)

	var console io.Writer = os.Stderr
	if !strings.EqualFold(opts.Format, "json") {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	}

	closeFn := func() error { return nil }
	out := console
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(console, file)
		closeFn = file.Close
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log.Logger
	return closeFn, nil
}

// ParseLevel maps a config string to a zerolog level. Empty means info.
func ParseLevel(s string) (zerolog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
}

func GlobalLogger() *zerolog.Logger {
	return &log.Logger
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

// Error logs with the error's stack trace when it carries one.
func Error() *zerolog.Event {
	return log.Error().Stack()
}

func With() zerolog.Context {
	return log.With()
}

// FromContext returns the request logger attached to ctx, or the global one.
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// LogPanics logs a recovered panic with a stack trace. Use it deferred at
// the top of long-running goroutines; it does not re-panic.
func LogPanics(logger *zerolog.Logger) {
	if r := recover(); r != nil {
		LogPanicValue(logger, r, "recovered from panic")
	}
}

func LogPanicValue(logger *zerolog.Logger, val any, msg string) {
	if logger == nil {
		logger = GlobalLogger()
	}
	err, ok := val.(error)
	if !ok {
		err = fmt.Errorf("%v", val)
	}
	logger.Error().Stack().Err(oops.New(err, "panic")).Msg(msg)
}
