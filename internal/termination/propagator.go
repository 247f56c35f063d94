package termination

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Subject carries JSON encoded Change notices.
const Subject = "realm.changed"

// Terminator evicts every occupant of a realm.
type Terminator interface {
	TerminateRealm(ctx context.Context, realmId, reason string) error
}

// Subscriber is the slice of the message bus the propagator listens on.
type Subscriber interface {
	Ready() <-chan struct{}
	Subscribe(subject string, handler func(data []byte)) (func(), error)
}

// Propagator turns realm change notices into session terminations.
type Propagator struct {
	terminator Terminator
	bus        Subscriber
}

func NewPropagator(t Terminator, bus Subscriber) *Propagator {
	return &Propagator{
		terminator: t,
		bus:        bus,
	}
}

// Apply terminates the realm's session if the change invalidates it and
// reports whether it did.
func (p *Propagator) Apply(ctx context.Context, c Change) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, fmt.Errorf("invalid change: %w", err)
	}

	reason, ok := c.Reason()
	if !ok {
		return false, nil
	}
	if err := p.terminator.TerminateRealm(ctx, c.RealmId, reason); err != nil {
		return true, fmt.Errorf("terminating realm %q: %w", c.RealmId, err)
	}
	return true, nil
}

func (p *Propagator) Start(ctx context.Context) error {
	select {
	case <-p.bus.Ready():
	case <-ctx.Done():
		return nil
	}

	unsub, err := p.bus.Subscribe(Subject, func(data []byte) {
		p.handle(ctx, data)
	})
	if err != nil {
		return fmt.Errorf("subscribing to realm changes: %w", err)
	}
	defer unsub()

	slog.InfoContext(ctx, "listening for realm changes", "subject", Subject)
	<-ctx.Done()
	return nil
}

func (p *Propagator) handle(ctx context.Context, data []byte) {
	var c Change
	if err := json.Unmarshal(data, &c); err != nil {
		slog.WarnContext(ctx, "decoding realm change", "error", err)
		return
	}

	terminated, err := p.Apply(ctx, c)
	if err != nil {
		slog.ErrorContext(ctx, "applying realm change", "realmId", c.RealmId, "error", err)
		return
	}
	slog.DebugContext(ctx, "realm change applied", "realmId", c.RealmId, "terminated", terminated)
}
