package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
)

type Config struct {
	TickInterval string         `json:"tick_interval"`
	Listener     ListenerConfig `json:"listener"`
	Nats         NatsConfig     `json:"nats"`
	Storage      StorageConfig  `json:"storage"`
	Presence     PresenceConfig `json:"presence"`
	Metrics      MetricsConfig  `json:"metrics"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	if c.TickInterval != "" {
		d, err := time.ParseDuration(c.TickInterval)
		if err != nil {
			el.Add(fmt.Errorf("parsing tick_interval: %w", err))
		} else if d < time.Second {
			el.Add(fmt.Errorf("tick_interval must be at least 1 second"))
		}
	}

	el.Add(c.Listener.validate())
	el.Add(c.Nats.validate())
	el.Add(c.Storage.validate())
	el.Add(c.Presence.validate())

	return el.Err()
}

type MetricsConfig struct {
	Enabled bool `json:"enabled"`
}
