package notifications

import "errors"

// Resolver errors.
var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrUnsupportedAction    = errors.New("unsupported callback action")
	ErrEmptyCallback        = errors.New("callback carries no data")
)
