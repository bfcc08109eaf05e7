package rtclient

import (
	"errors"
	"fmt"
)

// State is the connectivity of a Client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

// ErrInvalidTransition is returned when a state change is not allowed.
var ErrInvalidTransition = errors.New("rtclient: invalid state transition")

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateClosed:
		return "Closed"
	default:
		return "InvalidState"
	}
}

// Online reports whether events can currently arrive.
func (s State) Online() bool {
	return s == StateConnected
}

// validateTransitionTo checks a move from s to next. Closed is terminal and
// reachable from every other state.
func (s State) validateTransitionTo(next State) error {
	switch s {
	case StateDisconnected:
		switch next {
		case StateConnecting, StateClosed:
			return nil
		}
	case StateConnecting:
		switch next {
		case StateConnected, StateDisconnected, StateClosed:
			return nil
		}
	case StateConnected:
		switch next {
		case StateDisconnected, StateClosed:
			return nil
		}
	}
	return fmt.Errorf("%w from %v to %v", ErrInvalidTransition, s, next)
}
