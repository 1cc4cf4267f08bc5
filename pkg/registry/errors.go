package registry

import "errors"

// Sentinel errors returned by Registry operations.
var (
	ErrNotFound     = errors.New("lab not found")
	ErrInvalidState = errors.New("lab is not accepting input in its current state")
	ErrQueueFull    = errors.New("pending message queue is full")
)
