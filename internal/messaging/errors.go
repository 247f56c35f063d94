package messaging

import "errors"

var (
	ErrNotStarted   = errors.New("nats server not started")
	ErrNotAttached  = errors.New("connection not attached")
	ErrInvalidToken = errors.New("invalid subject token")
)
