package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-gather/internal/realm"
)

// Transport delivers encoded frames to connections and manages broadcast
// group membership.
type Transport interface {
	EmitTo(connId string, data []byte) error
	JoinGroup(connId, group string) error
	LeaveGroup(connId, group string) error
}

// Broadcaster encodes outbound events and fans them out over a Transport. It
// is also the registry's Evictor.
type Broadcaster struct {
	transport Transport
}

func NewBroadcaster(t Transport) *Broadcaster {
	return &Broadcaster{transport: t}
}

func encode(event string, payload any) ([]byte, error) {
	msg, err := NewMessage(event, payload)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s frame: %w", event, err)
	}
	return data, nil
}

// Send delivers one event to one connection.
func (b *Broadcaster) Send(connId, event string, payload any) error {
	data, err := encode(event, payload)
	if err != nil {
		return err
	}
	return b.transport.EmitTo(connId, data)
}

// Multicast delivers one event to every listed connection except exclude.
// A failed delivery does not stop the rest.
func (b *Broadcaster) Multicast(conns []string, exclude, event string, payload any) error {
	data, err := encode(event, payload)
	if err != nil {
		return err
	}

	el := errors.NewErrorList()
	for _, connId := range conns {
		if connId == exclude {
			continue
		}
		if err := b.transport.EmitTo(connId, data); err != nil {
			el.Add(fmt.Errorf("emitting %s to %s: %w", event, connId, err))
		}
	}
	return el.Err()
}

// ToRoom delivers one event to the occupants of a room except exclude.
func (b *Broadcaster) ToRoom(s *realm.Session, room int, exclude, event string, payload any) error {
	players := s.PlayersInRoom(room)
	conns := make([]string, 0, len(players))
	for _, p := range players {
		conns = append(conns, p.ConnId)
	}
	return b.Multicast(conns, exclude, event, payload)
}

func (b *Broadcaster) JoinGroup(connId, group string) error {
	return b.transport.JoinGroup(connId, group)
}

func (b *Broadcaster) LeaveGroup(connId, group string) error {
	return b.transport.LeaveGroup(connId, group)
}

// Evict tells the player it was kicked, tells its room it left and drops its
// connection from the realm group. Every step is attempted.
func (b *Broadcaster) Evict(s *realm.Session, p realm.Player, reason string) error {
	el := errors.NewErrorList()
	el.Add(b.Send(p.ConnId, EventKicked, reason))
	el.Add(b.ToRoom(s, p.Room, p.ConnId, EventPlayerLeftRoom, p.Identity))
	el.Add(b.LeaveGroup(p.ConnId, s.Id()))
	return el.Err()
}
