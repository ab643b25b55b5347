package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=3001"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath        string        `env:"BLUGE_FILEPATH,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	SearchLimit          int           `env:"SEARCH_LIMIT,default=20"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s"`
	// DebugPort serves the localhost-only store inspector when non-zero.
	DebugPort        int           `env:"DEBUG_PORT,default=0"`
	BadgerGCInterval time.Duration `env:"BADGER_GC_INTERVAL,default=5m"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
