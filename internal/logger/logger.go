package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Logger is the process logger set up by Init.
var Logger zerolog.Logger

// Options control the log output.
type Options struct {
	Level      zerolog.Level
	JSON       bool
	TimeFormat string
	NoColor    bool
	Caller     bool
}

// OptionsFromEnv reads LOG_LEVEL, LOG_FORMAT, LOG_TIME_FORMAT, LOG_COLOR and
// LOG_CALLER. Unknown levels fall back to info.
func OptionsFromEnv() Options {
	opts := Options{
		Level:      zerolog.InfoLevel,
		JSON:       env("LOG_FORMAT") == "json",
		TimeFormat: env("LOG_TIME_FORMAT"),
		NoColor:    env("LOG_COLOR") == "0",
		Caller:     env("LOG_CALLER") == "1",
	}
	if lvl, err := zerolog.ParseLevel(env("LOG_LEVEL")); err == nil && env("LOG_LEVEL") != "" {
		opts.Level = lvl
	}
	if opts.TimeFormat == "" {
		opts.TimeFormat = time.RFC3339
	}
	return opts
}

// New builds a crop-service logger writing to w.
func New(w io.Writer, opts Options) zerolog.Logger {
	if !opts.JSON {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: opts.TimeFormat, NoColor: opts.NoColor}
	}
	ctx := zerolog.New(w).With().Timestamp().Str("service", "crop-service")
	if opts.Caller {
		ctx = ctx.Caller()
	}
	return ctx.Logger().Level(opts.Level)
}

// Init sets up Logger and the global zerolog logger on stdout.
func Init() {
	InitWithWriter(os.Stdout)
}

func InitWithWriter(w io.Writer) {
	Logger = New(w, OptionsFromEnv())
	zlog.Logger = Logger
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
