package command

import (
	"fmt"
	"net/http"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-gather/internal/listener"
)

type ListenerConfig struct {
	Port       uint16 `json:"port"`
	SendBuffer int    `json:"send_buffer,omitempty"`
}

func (cl *ListenerConfig) validate() error {
	el := errors.NewErrorList()

	if cl.Port == 0 {
		el.Add(fmt.Errorf("listener: port must be set to a positive integer"))
	}
	if cl.SendBuffer < 0 {
		el.Add(fmt.Errorf("listener: send_buffer must not be negative"))
	}

	return el.Err()
}

func (cl *ListenerConfig) buildListener(p listener.Presence, r listener.Router, ready <-chan struct{}, metrics http.Handler) *listener.WebsocketListener {
	opts := []listener.WebsocketListenerOpt{listener.WithReady(ready)}
	if cl.SendBuffer > 0 {
		opts = append(opts, listener.WithSendBuffer(cl.SendBuffer))
	}
	if metrics != nil {
		opts = append(opts, listener.WithMetricsHandler(metrics))
	}
	return listener.NewWebsocketListener(cl.Port, p, r, opts...)
}
