package message

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformed = errors.New("malformed event")

// Event is one decoded realtime event. The concrete type is one of
// PlanStatusMessage, PlanProgressMessage, PlanCompletionMessage,
// HeartbeatMessage or Unrecognized.
type Event interface {
	Session() string
}

// Unrecognized carries events whose type tag is not a plan update.
type Unrecognized struct {
	Type      string
	SessionID string
	Raw       json.RawMessage
}

func (m PlanStatusMessage) Session() string     { return m.SessionID }
func (m PlanProgressMessage) Session() string   { return m.SessionID }
func (m PlanCompletionMessage) Session() string { return m.SessionID }
func (m HeartbeatMessage) Session() string      { return m.SessionID }
func (u Unrecognized) Session() string          { return u.SessionID }

type envelope struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

// Decode reads a tagged event. Well-formed JSON with an unknown tag yields
// Unrecognized; a known tag with missing required fields yields ErrMalformed.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeStatus:
		var m PlanStatusMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
		}
		if m.SessionID == "" || m.Status == "" {
			return nil, fmt.Errorf("%w: %s without sessionId or status", ErrMalformed, env.Type)
		}
		return m, nil
	case TypeProgress:
		var m PlanProgressMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
		}
		if m.SessionID == "" || (m.Step == "" && m.Seq == 0) {
			return nil, fmt.Errorf("%w: %s without sessionId or step", ErrMalformed, env.Type)
		}
		return m, nil
	case TypeCompletion:
		var m PlanCompletionMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
		}
		if m.SessionID == "" || m.Status == "" {
			return nil, fmt.Errorf("%w: %s without sessionId or status", ErrMalformed, env.Type)
		}
		return m, nil
	case TypeHeartbeat:
		var m HeartbeatMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
		}
		return m, nil
	}

	return Unrecognized{Type: env.Type, SessionID: env.SessionID, Raw: json.RawMessage(data)}, nil
}
