// Package logx configures the process-wide zerolog logger. Log output goes
// to stderr so the chat transcript on stdout stays clean.
package logx

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Level   string `split_words:"true" default:"info"`
	Pretty  bool   `split_words:"true" default:"false"`
	Service string `split_words:"true" default:"portagent"`
}

func defaults() Config {
	return Config{Level: "info", Service: "portagent"}
}

func Init(opts ...Config) {
	conf := defaults()
	if len(opts) > 0 {
		conf = opts[0]
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(conf.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stderr)
	if conf.Pretty {
		logger = zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stderr
		}))
	}

	ctx := logger.Level(level).With().Timestamp()
	if service := strings.TrimSpace(conf.Service); service != "" {
		ctx = ctx.Str("service", service)
	}
	log.Logger = ctx.Logger()
}
