package domain

import "errors"

var (
	ErrReconnectExhausted  = errors.New("reconnect attempts exhausted")
	ErrNoTrackedAccount    = errors.New("tracked account id unavailable")
	ErrDestinationRejected = errors.New("destination rejected payload")
)
