package command

import (
	"fmt"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-gather/internal/protocol"
	"github.com/pixil98/go-gather/internal/realm"
)

type PresenceConfig struct {
	MaxPlayers       int    `json:"max_players,omitempty"`
	DefaultSkin      string `json:"default_skin,omitempty"`
	MaxMessageLength int    `json:"max_message_length,omitempty"`
}

func (c *PresenceConfig) validate() error {
	el := errors.NewErrorList()

	if c.MaxPlayers < 0 {
		el.Add(fmt.Errorf("presence: max_players must not be negative"))
	}
	if c.MaxMessageLength < 0 {
		el.Add(fmt.Errorf("presence: max_message_length must not be negative"))
	}

	return el.Err()
}

func (c *PresenceConfig) registryOpts() []realm.RegistryOpt {
	var opts []realm.RegistryOpt
	if c.MaxPlayers > 0 {
		opts = append(opts, realm.WithMaxPlayers(c.MaxPlayers))
	}
	return opts
}

func (c *PresenceConfig) handlerOpts() []protocol.HandlerOpt {
	var opts []protocol.HandlerOpt
	if c.DefaultSkin != "" {
		opts = append(opts, protocol.WithDefaultSkin(c.DefaultSkin))
	}
	if c.MaxMessageLength > 0 {
		opts = append(opts, protocol.WithMaxMessageLength(c.MaxMessageLength))
	}
	return opts
}
