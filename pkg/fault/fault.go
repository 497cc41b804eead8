// Package fault defines the error kinds a supervisory session can end with.
package fault

import (
	"context"
	"errors"
)

var (
	// ErrLinkUnavailable is returned when a serial port or socket cannot be opened or breaks.
	ErrLinkUnavailable = errors.New("link unavailable")
	// ErrNoSignal is returned when a device does not answer in time or no start marker was found.
	ErrNoSignal = errors.New("no signal")
	// ErrProtocolMismatch is returned for wrong device class, packet type or enum values.
	ErrProtocolMismatch = errors.New("protocol mismatch")
	// ErrMalformedLine is returned for temperature lines that do not match the template.
	ErrMalformedLine = errors.New("malformed line")
	// ErrActuator is returned when a relay write fails.
	ErrActuator = errors.New("actuator failure")
)

type Kind string

const (
	KindNone             Kind = ""
	KindLinkUnavailable  Kind = "LinkUnavailable"
	KindNoSignal         Kind = "NoSignal"
	KindProtocolMismatch Kind = "ProtocolMismatch"
	KindMalformedLine    Kind = "MalformedLine"
	KindActuator         Kind = "Actuator"
	KindUnknown          Kind = "Unknown"
)

// KindOf classifies err into one of the fault kinds.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrLinkUnavailable):
		return KindLinkUnavailable
	case errors.Is(err, ErrNoSignal):
		return KindNoSignal
	case errors.Is(err, ErrProtocolMismatch):
		return KindProtocolMismatch
	case errors.Is(err, ErrMalformedLine):
		return KindMalformedLine
	case errors.Is(err, ErrActuator):
		return KindActuator
	}
	return KindUnknown
}

// Fatal reports whether err must tear down the session.
// Malformed temperature lines are recovered locally and a cancelled context is a shutdown, not a fault.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, ErrMalformedLine)
}
