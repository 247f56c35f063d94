package protocol

import (
	"errors"
	"fmt"
)

var ErrMissingIdentity = errors.New("uid and username are required")

// RejectError is a join failure reported to the requesting connection.
type RejectError struct {
	Code   string
	Reason string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("join rejected (%s): %s", e.Code, e.Reason)
}

var (
	RejectInvalid        = &RejectError{Code: "invalid", Reason: "Invalid request data."}
	RejectAlreadyJoining = &RejectError{Code: "already_joining", Reason: "Already joining a space."}
	RejectNotFound       = &RejectError{Code: "not_found", Reason: "Space not found."}
	RejectPrivate        = &RejectError{Code: "private", Reason: "This realm is private right now. Come back later!"}
	RejectShareChanged   = &RejectError{Code: "share_changed", Reason: "The share link has been changed."}
	RejectUserNotFound   = &RejectError{Code: "user_not_found", Reason: "User not found."}
	RejectServerError    = &RejectError{Code: "server_error", Reason: "Server error."}
)

func rejectFull(max int) *RejectError {
	return &RejectError{Code: "full", Reason: fmt.Sprintf("Space is full. It's %d players max.", max)}
}

const ReasonLoggedInElsewhere = "You have logged in from another location."
