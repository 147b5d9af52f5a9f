package events

import "time"

// Config holds the RabbitMQ consumer settings. An empty URL disables consumption.
type Config struct {
	URL               string        `env:"AMQP_URL"`
	Exchange          string        `env:"AMQP_EXCHANGE" envDefault:"school.events"`
	Queue             string        `env:"AMQP_QUEUE" envDefault:"notifyd.events"`
	ConsumerTag       string        `env:"AMQP_CONSUMER_TAG" envDefault:"notifyd"`
	Prefetch          int           `env:"AMQP_PREFETCH" envDefault:"10"`
	HandlerTimeout    time.Duration `env:"AMQP_HANDLER_TIMEOUT" envDefault:"30s"`
	ReconnectInterval time.Duration `env:"AMQP_RECONNECT_INTERVAL" envDefault:"5s"`
}

// Enabled reports whether a broker URL is configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}
