package redisstore

import "time"

// Config describes how to reach the redis server.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"10s"`
	// KeyPrefix namespaces every key written by the store.
	KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"termninja"`
}
