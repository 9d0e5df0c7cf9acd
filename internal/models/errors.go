package models

import (
	"context"
	"errors"
	"net"
)

var (
	ErrTransientNetwork  = errors.New("transient network error")
	ErrRateLimited       = errors.New("rate limited")
	ErrMalformedResponse = errors.New("malformed response")
	ErrDataUnavailable   = errors.New("data unavailable")
	ErrPersistence       = errors.New("persistence error")
	ErrInvalidPrice      = errors.New("invalid price")
	ErrCycleInProgress   = errors.New("poll cycle already in progress")
)

// Classify maps an arbitrary error onto the error taxonomy. Unknown errors
// are reported as ErrDataUnavailable.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRateLimited):
		return ErrRateLimited
	case errors.Is(err, ErrMalformedResponse):
		return ErrMalformedResponse
	case errors.Is(err, ErrPersistence):
		return ErrPersistence
	case errors.Is(err, ErrInvalidPrice):
		return ErrInvalidPrice
	case errors.Is(err, ErrCycleInProgress):
		return ErrCycleInProgress
	case errors.Is(err, ErrTransientNetwork), errors.Is(err, context.DeadlineExceeded):
		return ErrTransientNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrTransientNetwork
	}
	return ErrDataUnavailable
}
