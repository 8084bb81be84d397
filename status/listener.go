package status

import (
	"log/slog"

	"mentorlounge/shared/message"
	"mentorlounge/shared/model"
)

// Listener translates realtime feed events into store mutations.
type Listener struct {
	store  *Store
	logger *slog.Logger
}

func NewListener(store *Store, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{store: store, logger: logger}
}

// Handle decodes one raw feed payload. Malformed payloads are logged and dropped.
func (l *Listener) Handle(data []byte) {
	ev, err := message.Decode(data)
	if err != nil {
		l.logger.Warn("dropping realtime event", "error", err)
		return
	}
	l.Apply(ev)
}

// Apply reports whether the event changed the store.
func (l *Listener) Apply(ev message.Event) bool {
	sessionID := l.store.SessionID()
	if sessionID == "" || ev.Session() != sessionID {
		if _, ok := ev.(message.Unrecognized); !ok {
			l.logger.Debug("event for another session", "event_session", ev.Session(), "session_id", sessionID)
		}
		return false
	}

	switch e := ev.(type) {
	case message.PlanStatusMessage:
		status, ok := model.ParseRemoteStatus(e.Status)
		if !ok || status == model.StatusIdle {
			l.logger.Warn("unusable realtime status", "status", e.Status, "session_id", sessionID)
			return l.store.ApplyEvent(sessionID, Change{})
		}
		return l.store.ApplyEvent(sessionID, Change{Update: &StatusUpdate{Status: status, Message: e.Message}})

	case message.PlanCompletionMessage:
		status, ok := model.ParseRemoteStatus(e.Status)
		if !ok {
			l.logger.Warn("unknown completion status", "status", e.Status, "session_id", sessionID)
			return l.store.ApplyEvent(sessionID, Change{})
		}
		l.logger.Info("plan build finished", "session_id", sessionID, "status", string(status), "result_id", e.ResultID)
		return l.store.ApplyEvent(sessionID, Change{Update: &StatusUpdate{
			Status:      status,
			Message:     e.Message,
			ResultID:    e.ResultID,
			ResultTitle: e.ResultTitle,
		}})

	case message.PlanProgressMessage:
		return l.store.ApplyProgress(sessionID, e.ProgressStep())

	case message.HeartbeatMessage:
		return l.store.ApplyEvent(sessionID, Change{})

	case message.Unrecognized:
		l.logger.Debug("ignoring realtime event", "type", e.Type)
	}
	return false
}
