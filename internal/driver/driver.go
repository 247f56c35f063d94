package driver

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultTickLength = time.Second * 5
)

// Task is periodic housekeeping run on every tick.
type Task interface {
	Tick(context.Context) error
}

// Driver runs its tasks on a fixed interval until the context ends.
type Driver struct {
	tickLength time.Duration
	tasks      []Task
}

func NewDriver(tasks []Task, opts ...DriverOpt) *Driver {
	d := &Driver{
		tickLength: DefaultTickLength,
		tasks:      tasks,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *Driver) Start(ctx context.Context) error {
	ticker := time.NewTicker(d.tickLength)
	defer ticker.Stop()

	slog.InfoContext(ctx, "driver started", "tick", d.tickLength, "tasks", len(d.tasks))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := d.Tick(ctx)
			if err != nil {
				return err
			}
		}
	}
}

func (d *Driver) Tick(ctx context.Context) error {
	for i, t := range d.tasks {
		if err := t.Tick(ctx); err != nil {
			return fmt.Errorf("task %d: %w", i, err)
		}
	}
	return nil
}
