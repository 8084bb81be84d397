package message

import (
	"encoding/json"
	"time"

	"mentorlounge/shared/model"
)

// Kafka topics carrying plan-build events.
const (
	TopicPlanRequests    = "plan-requests"
	TopicPlanStatus      = "plan-status"
	TopicPlanProgress    = "plan-progress"
	TopicPlanCompletions = "plan-completions"
)

// Event type tags on the realtime channel.
const (
	TypeStatus     = "plan.status"
	TypeProgress   = "plan.progress"
	TypeCompletion = "plan.completion"
	TypeHeartbeat  = "plan.heartbeat"
)

type PlanRequestMessage struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Topic     string    `json:"topic"`
	Goal      string    `json:"goal,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type PlanStatusMessage struct {
	Type      string    `json:"type,omitempty"`
	SessionID string    `json:"sessionId"`
	Status    string    `json:"status"` // remote vocabulary, see model.ParseRemoteStatus
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"time"`
}

type PlanProgressMessage struct {
	Type      string    `json:"type,omitempty"`
	SessionID string    `json:"sessionId"`
	Seq       int64     `json:"seq,omitempty"`
	Step      string    `json:"step"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"time"`
}

type PlanCompletionMessage struct {
	Type        string    `json:"type,omitempty"`
	SessionID   string    `json:"sessionId"`
	Status      string    `json:"status"` // completed or failed
	Message     string    `json:"message,omitempty"`
	ResultID    string    `json:"resultId,omitempty"`
	ResultTitle string    `json:"resultTitle,omitempty"`
	CompletedAt time.Time `json:"time"`
}

type HeartbeatMessage struct {
	Type      string    `json:"type,omitempty"`
	SessionID string    `json:"sessionId"`
	Timestamp time.Time `json:"time"`
}

// PlanBuildStatusResponse is the body of GET /api/plan-builds/{sessionId}.
type PlanBuildStatusResponse struct {
	SessionID   string                `json:"sessionId,omitempty"`
	Status      string                `json:"status"`
	Message     string                `json:"message,omitempty"`
	ResultID    string                `json:"resultId,omitempty"`
	ResultTitle string                `json:"resultTitle,omitempty"`
	Events      []PlanProgressMessage `json:"events,omitempty"`
	UpdatedAt   time.Time             `json:"updatedAt,omitempty"`
}

// Steps converts the historical progress events into model steps, preserving order.
func (r *PlanBuildStatusResponse) Steps() []model.ProgressStep {
	if len(r.Events) == 0 {
		return nil
	}
	steps := make([]model.ProgressStep, 0, len(r.Events))
	for _, e := range r.Events {
		steps = append(steps, e.ProgressStep())
	}
	return steps
}

func (m PlanProgressMessage) ProgressStep() model.ProgressStep {
	return model.ProgressStep{
		Seq:     m.Seq,
		Step:    m.Step,
		Message: m.Message,
		At:      m.Timestamp,
	}
}

type StartPlanBuildRequest struct {
	Topic string `json:"topic"`
	Goal  string `json:"goal,omitempty"`
}

type StartPlanBuildResponse struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// Marshal tags a message with its event type and encodes it for the realtime channel.
func Marshal(v interface{}) ([]byte, error) {
	switch m := v.(type) {
	case PlanStatusMessage:
		m.Type = TypeStatus
		return json.Marshal(m)
	case PlanProgressMessage:
		m.Type = TypeProgress
		return json.Marshal(m)
	case PlanCompletionMessage:
		m.Type = TypeCompletion
		return json.Marshal(m)
	case HeartbeatMessage:
		m.Type = TypeHeartbeat
		return json.Marshal(m)
	}
	return json.Marshal(v)
}
