package internal

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath  string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath   string        `env:"BLUGE_FILEPATH,required=true"`
	StoreMaxRetries int           `env:"STORE_MAX_RETRIES,default=64"`
	BufferSize      int           `env:"BUFFER_SIZE,required=true"`
	SinkTimeout     time.Duration `env:"SINK_TIMEOUT,required=true"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,required=true"`
	CharReplacement string        `env:"CHARACTER_REPLACEMENT,default=*"`
	SearchPageSize  int           `env:"SEARCH_PAGE_SIZE,default=20"`
	TimelineSize    int           `env:"TIMELINE_SIZE,default=100"`

	RelayBaseURL   string        `env:"RELAY_BASE_URL,required=true"`
	RelayAPIKey    string        `env:"RELAY_API_KEY"`
	RelayTimeout   time.Duration `env:"RELAY_TIMEOUT,default=10s"`
	RelayQueueSize int           `env:"RELAY_QUEUE_SIZE,default=256"`
	RelayWorkers   int           `env:"RELAY_WORKERS,default=4"`
	// Relay room numbers, e.g. "1 2 3" or "1;2;3"
	RelayRoomPool   string `env:"RELAY_ROOM_POOL"`
	RelayHealthRoom int    `env:"RELAY_HEALTH_ROOM,default=0"`

	BreakerThreshold int           `env:"BREAKER_THRESHOLD,default=5"`
	BreakerCooldown  time.Duration `env:"BREAKER_COOLDOWN,default=5m"`

	SweepInterval  time.Duration `env:"SWEEP_INTERVAL,default=1m"`
	HealthInterval time.Duration `env:"HEALTH_INTERVAL,default=30s"`

	DebugPort int `env:"DEBUG_PORT,default=8081"`
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

// RoomPool parses RELAY_ROOM_POOL. Numbers may be separated by spaces or
// semicolons. An empty value returns nil and lets the caller pick its default.
func RoomPool(str string) ([]int, error) {
	fields := strings.FieldsFunc(str, func(r rune) bool {
		return r == ' ' || r == ';'
	})
	if len(fields) == 0 {
		return nil, nil
	}
	pool := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("RELAY_ROOM_POOL must list integers, got %q", f)
		}
		pool = append(pool, n)
	}
	return pool, nil
}
