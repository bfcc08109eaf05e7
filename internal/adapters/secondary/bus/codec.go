package bus

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/lorrc/taskboard-backend/internal/core/domain"
)

// Encode serializes an envelope for the wire. The room name doubles as the topic.
func Encode(env domain.Envelope) (topic string, data []byte, err error) {
	if env.Room == "" {
		return "", nil, fmt.Errorf("encode envelope: empty room")
	}
	data, err = msgpack.Marshal(env)
	if err != nil {
		return "", nil, fmt.Errorf("encode envelope: %w", err)
	}
	return env.Room, data, nil
}

// Decode parses a frame produced by Encode and checks it against its topic.
func Decode(topic string, data []byte) (domain.Envelope, error) {
	var env domain.Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return domain.Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Room != topic {
		return domain.Envelope{}, fmt.Errorf("decode envelope: room %q does not match topic %q", env.Room, topic)
	}
	if env.Event.Type == "" {
		return domain.Envelope{}, fmt.Errorf("decode envelope: missing event type")
	}
	return env, nil
}
