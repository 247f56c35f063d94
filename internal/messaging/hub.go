package messaging

import (
	"fmt"
	"strings"
	"sync"
)

// PubSub is the slice of NatsServer the hub needs.
type PubSub interface {
	Subscribe(subject string, handler func(data []byte)) (func(), error)
	Publish(subject string, data []byte) error
}

type attachment struct {
	deliver func([]byte)
	subs    map[string]func()
}

// Hub routes frames to connections over NATS. Every attached connection is
// subscribed to its own subject, and to one subject per group it has joined.
// Frames on a single subject arrive in publish order.
type Hub struct {
	bus PubSub

	mu    sync.Mutex
	conns map[string]*attachment
}

func NewHub(bus PubSub) *Hub {
	return &Hub{
		bus:   bus,
		conns: make(map[string]*attachment),
	}
}

func ConnSubject(connId string) string {
	return "conn." + connId
}

func GroupSubject(group string) string {
	return "group." + group
}

// Attach subscribes deliver to the connection's subject. deliver runs on the
// bus's goroutine and must not block.
func (h *Hub) Attach(connId string, deliver func([]byte)) error {
	if err := checkToken(connId); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connId]; ok {
		return fmt.Errorf("connection %s already attached", connId)
	}

	subject := ConnSubject(connId)
	unsub, err := h.bus.Subscribe(subject, deliver)
	if err != nil {
		return fmt.Errorf("attaching %s: %w", connId, err)
	}

	h.conns[connId] = &attachment{
		deliver: deliver,
		subs:    map[string]func(){subject: unsub},
	}
	return nil
}

// Detach drops every subscription held for the connection.
func (h *Hub) Detach(connId string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	a, ok := h.conns[connId]
	if !ok {
		return
	}
	for _, unsub := range a.subs {
		unsub()
	}
	delete(h.conns, connId)
}

func (h *Hub) EmitTo(connId string, data []byte) error {
	return h.bus.Publish(ConnSubject(connId), data)
}

func (h *Hub) EmitToGroup(group string, data []byte) error {
	if err := checkToken(group); err != nil {
		return err
	}
	return h.bus.Publish(GroupSubject(group), data)
}

func (h *Hub) JoinGroup(connId, group string) error {
	if err := checkToken(group); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	a, ok := h.conns[connId]
	if !ok {
		return fmt.Errorf("joining %s: %w", group, ErrNotAttached)
	}

	subject := GroupSubject(group)
	if _, ok := a.subs[subject]; ok {
		return nil
	}
	unsub, err := h.bus.Subscribe(subject, a.deliver)
	if err != nil {
		return fmt.Errorf("joining %s: %w", group, err)
	}
	a.subs[subject] = unsub
	return nil
}

// LeaveGroup is a no-op for connections that are detached or not in the group.
func (h *Hub) LeaveGroup(connId, group string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	a, ok := h.conns[connId]
	if !ok {
		return nil
	}
	subject := GroupSubject(group)
	if unsub, ok := a.subs[subject]; ok {
		unsub()
		delete(a.subs, subject)
	}
	return nil
}

func checkToken(token string) error {
	if token == "" || strings.ContainsAny(token, ". \t\r\n*>") {
		return fmt.Errorf("%q: %w", token, ErrInvalidToken)
	}
	return nil
}
