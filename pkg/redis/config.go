package redis

import "time"

// Config holds Redis connection settings. An empty ConnectionURL disables
// the Redis backed features (distributed admission lock and in-app pub/sub).
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL"`                                  // redis://:password@localhost:6379/0
	KeyPrefix      string        `env:"REDIS_KEY_PREFIX" envDefault:"schoolnotify"` // namespace for every key and channel
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}

// Enabled reports whether a connection URL is configured.
func (c Config) Enabled() bool {
	return c.ConnectionURL != ""
}
