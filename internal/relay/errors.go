package relay

import "errors"

var (
	ErrClientQueueFull = errors.New("client event queue is full")
	ErrInvalidEvent    = errors.New("invalid event format")
	ErrNotAMember      = errors.New("not a member of this room")
	ErrEmptyContent    = errors.New("message content is empty")
)
