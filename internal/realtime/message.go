package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gravitrone/portal-cli/internal/api"
)

// Message types pushed by the server.
const (
	TypeConnected    = "connected"
	TypeCreated      = "created"
	TypeUpdated      = "updated"
	TypeEvaluated    = "evaluated"
	TypeDeleted      = "deleted"
	TypeHeartbeatAck = "heartbeat-ack"
)

// Message is one server push.
type Message struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Analysis decodes the analysis carried by created, updated and evaluated
// pushes.
func (m Message) Analysis() (api.Analysis, error) {
	var a api.Analysis
	if len(m.Data) == 0 {
		return a, fmt.Errorf("%s message has no data", m.Type)
	}
	if err := json.Unmarshal(m.Data, &a); err != nil {
		return a, fmt.Errorf("decode %s data: %w", m.Type, err)
	}
	if a.ID == "" {
		return a, fmt.Errorf("%s data has no id", m.Type)
	}
	return a, nil
}

// DeletedID returns the id carried by a deleted push.
func (m Message) DeletedID() (string, error) {
	var ref struct {
		ID string `json:"id"`
	}
	if len(m.Data) > 0 {
		if err := json.Unmarshal(m.Data, &ref); err != nil {
			return "", fmt.Errorf("decode %s data: %w", m.Type, err)
		}
	}
	if ref.ID == "" {
		return "", fmt.Errorf("%s data has no id", m.Type)
	}
	return ref.ID, nil
}

var errNoType = errors.New("message has no type")

func decodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	switch msg.Type {
	case TypeConnected, TypeCreated, TypeUpdated, TypeEvaluated, TypeDeleted, TypeHeartbeatAck:
		return msg, nil
	case "":
		return Message{}, errNoType
	default:
		return Message{}, fmt.Errorf("unknown message type %q", msg.Type)
	}
}
