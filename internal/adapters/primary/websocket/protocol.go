package websocket

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Message types sent by clients.
const (
	MessageJoinTeam          = "joinTeam"
	MessageLeaveTeam         = "leaveTeam"
	MessageJoinOrganization  = "joinOrganization"
	MessageLeaveOrganization = "leaveOrganization"
	MessageIdentify          = "identify"
	MessagePing              = "ping"
)

// Reasons carried by joinDenied.
const (
	DenyUnauthenticated = "authentication required"
	DenyNotMember       = "not a member"
	DenyCheckFailed     = "membership check failed"
)

// ClientMessage is the structure for messages sent from the client.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// decodeID extracts a room id from a payload that is either a bare string,
// a bare number, or an object carrying the id under field.
func decodeID(payload json.RawMessage, field string) string {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(payload, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var n json.Number
	if err := json.Unmarshal(payload, &n); err == nil {
		return n.String()
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return ""
	}
	raw, ok := obj[field]
	if !ok || bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		return ""
	}
	return decodeID(raw, field)
}
