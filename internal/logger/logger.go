// Package logger holds the process-wide zerolog logger. Until Init runs,
// Logger is the zero value and discards everything, which is what tests get.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	appCtx "github.com/baechuer/totp-auth/internal/pkg/context"
)

const serviceName = "totp-auth"

var Logger zerolog.Logger

// Options controls output. Zero values mean info level, console format.
type Options struct {
	Level  string // zerolog level name
	Format string // "json" or "console"
}

// OptionsFromEnv reads LOG_LEVEL and LOG_FORMAT.
func OptionsFromEnv() Options {
	return Options{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	}
}

func Init() {
	InitWithWriter(os.Stdout)
}

// InitWithWriter configures Logger from the environment and installs it as
// zerolog's global logger.
func InitWithWriter(w io.Writer) {
	Logger = New(w, OptionsFromEnv())
	zlog.Logger = Logger
}

// New builds a service-tagged logger writing to w.
func New(w io.Writer, opts Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	out := w
	if !strings.EqualFold(opts.Format, "json") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// WithCtx returns Logger tagged with the request id carried by ctx, if any.
func WithCtx(ctx context.Context) zerolog.Logger {
	if rid := appCtx.GetRequestID(ctx); rid != "" {
		return Logger.With().Str("request_id", rid).Logger()
	}
	return Logger
}
