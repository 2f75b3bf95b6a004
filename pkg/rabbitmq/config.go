package rabbitmq

import (
	"fmt"
	"net/url"
	"time"
)

type Config struct {
	URL                 string
	Heartbeat           time.Duration
	MinReconnectBackoff time.Duration
	MaxReconnectBackoff time.Duration
	// ConnectionName shows up in the management UI.
	ConnectionName string
}

func (c Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid RabbitMQ URL: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return fmt.Errorf("RabbitMQ URL must start with amqp:// or amqps://, got scheme %q", u.Scheme)
	}
	if c.MinReconnectBackoff <= 0 {
		return fmt.Errorf("MinReconnectBackoff must be positive, got: %s", c.MinReconnectBackoff)
	}
	if c.MaxReconnectBackoff < c.MinReconnectBackoff {
		return fmt.Errorf("MaxReconnectBackoff (%s) must be >= MinReconnectBackoff (%s)", c.MaxReconnectBackoff, c.MinReconnectBackoff)
	}
	return nil
}

// RedactURL hides the password part of an AMQP URL.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
