package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	config "github.com/thirdweb-dev/archive-exporter/configs"
)

func InitLogger() {
	// overrides zerolog global logger
	log.Logger = NewLogger("exporter")
}

// NewLogger builds a component logger writing to stderr. Stdout stays free
// for the progress bar.
func NewLogger(name string) zerolog.Logger {
	return newLogger(os.Stderr, name, config.Cfg.Log)
}

func newLogger(out io.Writer, name string, cfg config.LogConfig) zerolog.Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	level := zerolog.WarnLevel
	if lvl, err := zerolog.ParseLevel(cfg.Level); err == nil && lvl != zerolog.NoLevel {
		level = lvl
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Prettify {
		out = zerolog.ConsoleWriter{Out: out}
	}
	logger := zerolog.New(out).With().Timestamp().Str("component", name).Logger()
	return logger.With().Caller().Logger()
}
