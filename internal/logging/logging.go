package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns a JSON logger on stdout, or a human-readable console logger in
// dev, tagged with the service name.
func New(env, service string) zerolog.Logger {
	logger := zerolog.New(os.Stdout)
	if env == "dev" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return logger.With().Timestamp().Str("service", service).Logger()
}
