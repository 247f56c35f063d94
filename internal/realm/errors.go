package realm

import "errors"

var (
	ErrPlayerNotFound  = errors.New("player not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidRoom     = errors.New("invalid room index")
)
