package infra

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the logging type threaded through the service. Aliased so
// packages outside infra take the contract without importing zerolog
// themselves.
type Logger = zerolog.Logger

// NewLogger builds the process-wide logger. Development gets the colorized
// console writer at debug level; everything else emits JSON at info.
func NewLogger(appEnv string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Logger()

	if appEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return logger
}
