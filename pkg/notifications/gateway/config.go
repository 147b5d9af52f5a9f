package gateway

import "time"

// Config holds the SMS and push gateway settings. A channel without a URL
// stays unconfigured.
type Config struct {
	SMSURL           string        `env:"SMS_GATEWAY_URL"`
	PushURL          string        `env:"PUSH_GATEWAY_URL"`
	Secret           string        `env:"GATEWAY_SECRET"`
	Timeout          time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"3s"`
	MaxRetries       int           `env:"GATEWAY_MAX_RETRIES" envDefault:"2"`
	RetryInterval    time.Duration `env:"GATEWAY_RETRY_INTERVAL" envDefault:"250ms"`
	FailureThreshold int           `env:"GATEWAY_FAILURE_THRESHOLD" envDefault:"5"`
	RecoveryTimeout  time.Duration `env:"GATEWAY_RECOVERY_TIMEOUT" envDefault:"30s"`
}

// Options converts the shared settings into sender options.
func (c Config) Options() []Option {
	return []Option{
		WithSecret(c.Secret),
		WithTimeout(c.Timeout),
		WithRetries(c.MaxRetries, c.RetryInterval),
		WithCircuitBreaker(NewCircuitBreaker(c.FailureThreshold, 1, c.RecoveryTimeout)),
	}
}
