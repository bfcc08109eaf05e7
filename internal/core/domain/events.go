package domain

import (
	"encoding/json"
	"fmt"
)

// EventKind names a server-to-client message.
type EventKind string

const (
	EventTaskUpdated EventKind = "taskUpdated"
	EventTaskCreated EventKind = "taskCreated"
	EventTaskDeleted EventKind = "taskDeleted"
	EventEpicUpdated EventKind = "epicUpdated"
	EventUserJoined  EventKind = "userJoined"
	EventUserLeft    EventKind = "userLeft"
	EventJoinDenied  EventKind = "joinDenied"
	EventPong        EventKind = "pong"
)

// Event is one message as written on the socket. Payload is encoded once
// and shared by every recipient.
type Event struct {
	Type    EventKind       `json:"type" msgpack:"type"`
	Payload json.RawMessage `json:"payload,omitempty" msgpack:"payload"`
}

// NewEvent encodes payload and wraps it in an Event.
func NewEvent(kind EventKind, payload any) (Event, error) {
	if payload == nil {
		return Event{Type: kind}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return Event{Type: kind, Payload: data}, nil
}

// Envelope routes an event to every connection in Room except Exclude.
// Origin identifies the instance that published it.
type Envelope struct {
	Origin  string `json:"origin" msgpack:"origin"`
	Room    string `json:"room" msgpack:"room"`
	Exclude string `json:"exclude,omitempty" msgpack:"exclude,omitempty"`
	Event   Event  `json:"event" msgpack:"event"`
}
