package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

var errTick = errors.New("tick failed")

type countingTask struct {
	ticks int
	err   error
	fired chan struct{}
}

func (c *countingTask) Tick(context.Context) error {
	c.ticks++
	if c.fired != nil {
		select {
		case c.fired <- struct{}{}:
		default:
		}
	}
	return c.err
}

func TestDriver_Tick(t *testing.T) {
	tests := map[string]struct {
		firstErr  error
		expErr    string
		expSecond int
	}{
		"all run": {
			expSecond: 1,
		},
		"failure stops the tick": {
			firstErr:  errTick,
			expErr:    "task 0: tick failed",
			expSecond: 0,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			first := &countingTask{err: tt.firstErr}
			second := &countingTask{}
			d := NewDriver([]Task{first, second})

			err := d.Tick(context.Background())
			if tt.expErr != "" {
				testutil.AssertErrorContains(t, err, tt.expErr)
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			testutil.AssertEqual(t, "first", first.ticks, 1)
			testutil.AssertEqual(t, "second", second.ticks, tt.expSecond)
		})
	}
}

func TestDriver_Start(t *testing.T) {
	task := &countingTask{fired: make(chan struct{}, 1)}
	d := NewDriver([]Task{task}, WithTickLength(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	select {
	case <-task.fired:
	case <-time.After(5 * time.Second):
		t.Fatal("task never ticked")
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDriver_StartStopsOnError(t *testing.T) {
	d := NewDriver([]Task{&countingTask{err: errTick}}, WithTickLength(10*time.Millisecond))

	select {
	case err := <-startAsync(d):
		testutil.AssertErrorContains(t, err, errTick.Error())
	case <-time.After(5 * time.Second):
		t.Fatal("driver did not stop")
	}
}

func startAsync(d *Driver) <-chan error {
	done := make(chan error, 1)
	go func() { done <- d.Start(context.Background()) }()
	return done
}
