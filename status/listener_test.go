package status

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentorlounge/shared/logger"
	"mentorlounge/shared/message"
	"mentorlounge/shared/model"
)

func TestListenerMapsStatusEvents(t *testing.T) {
	clock := newFakeClock()
	store := queuedSession(t, clock)
	listener := NewListener(store, logger.Discard())

	clock.Advance(2 * time.Second)
	listener.Handle([]byte(`{"type":"plan.status","sessionId":"s1","status":"processing","message":"Picking a mentor"}`))

	snap := store.Snapshot()
	assert.Equal(t, model.StatusInProgress, snap.Status)
	assert.Equal(t, "Picking a mentor", snap.Message)
	assert.Equal(t, t0.Add(2*time.Second), snap.LastActivityAt)
}

func TestListenerCompletion(t *testing.T) {
	store := queuedSession(t, newFakeClock())
	listener := NewListener(store, logger.Discard())

	data, err := message.Marshal(message.PlanCompletionMessage{
		SessionID:   "s1",
		Status:      "completed",
		ResultID:    "p42",
		ResultTitle: "Intro to Calculus",
	})
	require.NoError(t, err)
	listener.Handle(data)

	snap := store.Snapshot()
	assert.Equal(t, model.StatusCompleted, snap.Status)
	assert.Equal(t, "p42", snap.ResultID)
	assert.Equal(t, "Intro to Calculus", snap.ResultTitle)
}

func TestListenerLateStatusKeepsCompletion(t *testing.T) {
	clock := newFakeClock()
	store := queuedSession(t, clock)
	listener := NewListener(store, logger.Discard())
	fetcher := &fakeFetcher{resp: &message.PlanBuildStatusResponse{Status: "running"}}
	poller := NewPoller(store, fetcher, "s1", DefaultPollerConfig(), logger.Discard())

	listener.Apply(message.PlanCompletionMessage{SessionID: "s1", Status: "completed", ResultID: "p42", ResultTitle: "Intro to Calculus"})
	clock.Advance(time.Second)
	assert.True(t, listener.Apply(message.PlanStatusMessage{SessionID: "s1", Status: "running", Message: "late"}))
	listener.Apply(message.PlanCompletionMessage{SessionID: "s1", Status: "failed", Message: "late failure"})

	snap := store.Snapshot()
	assert.Equal(t, model.StatusCompleted, snap.Status)
	assert.Equal(t, "p42", snap.ResultID)
	assert.Equal(t, "Intro to Calculus", snap.ResultTitle)
	assert.Equal(t, t0.Add(time.Second), snap.LastActivityAt, "late events still count as activity")

	clock.Advance(time.Minute)
	assert.Equal(t, TickStopped, poller.Tick(context.Background()))
	assert.Zero(t, fetcher.Calls())

	store.SetSession("s2")
	assert.Equal(t, model.StatusIdle, store.Snapshot().Status, "a new session leaves the terminal state")
}

func TestListenerSameStepNameWithoutSeq(t *testing.T) {
	store := queuedSession(t, newFakeClock())
	listener := NewListener(store, logger.Discard())

	listener.Handle([]byte(`{"type":"plan.progress","sessionId":"s1","step":"routing","message":"to mentor A","time":"2026-05-04T09:00:01Z"}`))
	listener.Handle([]byte(`{"type":"plan.progress","sessionId":"s1","step":"routing","message":"to mentor B","time":"2026-05-04T09:00:02Z"}`))
	listener.Handle([]byte(`{"type":"plan.progress","sessionId":"s1","step":"routing","message":"to mentor B","time":"2026-05-04T09:00:02Z"}`))

	snap := store.Snapshot()
	require.Len(t, snap.Steps, 2)
	assert.Equal(t, "to mentor A", snap.Steps[0].Message)
	assert.Equal(t, "to mentor B", snap.Steps[1].Message)
	assert.Equal(t, "to mentor B", snap.Message)
}

func TestListenerIgnoresOtherSessionsAndJunk(t *testing.T) {
	store := queuedSession(t, newFakeClock())
	listener := NewListener(store, logger.Discard())
	before := store.Snapshot()

	listener.Handle([]byte(`{"type":"plan.status","sessionId":"other","status":"failed"}`))
	listener.Handle([]byte(`not json at all`))
	listener.Handle([]byte(`{"type":"plan.status","sessionId":"s1"}`))
	listener.Handle([]byte(`{"type":"chat.message","sessionId":"s1","text":"hello mentor"}`))

	after := store.Snapshot()
	assert.Equal(t, before.Revision, after.Revision)
	assert.Equal(t, model.StatusQueued, after.Status)
}

func TestListenerHeartbeatAndUnknownStatusOnlyTouch(t *testing.T) {
	clock := newFakeClock()
	store := queuedSession(t, clock)
	listener := NewListener(store, logger.Discard())

	clock.Advance(3 * time.Second)
	assert.True(t, listener.Apply(message.HeartbeatMessage{SessionID: "s1"}))
	snap := store.Snapshot()
	assert.Equal(t, model.StatusQueued, snap.Status)
	assert.Equal(t, t0.Add(3*time.Second), snap.LastActivityAt)

	clock.Advance(3 * time.Second)
	assert.True(t, listener.Apply(message.PlanStatusMessage{SessionID: "s1", Status: "dreaming"}))
	snap = store.Snapshot()
	assert.Equal(t, model.StatusQueued, snap.Status)
	assert.Equal(t, t0.Add(6*time.Second), snap.LastActivityAt)
}

func TestListenerProgress(t *testing.T) {
	store := queuedSession(t, newFakeClock())
	listener := NewListener(store, logger.Discard())

	listener.Handle([]byte(`{"type":"plan.progress","sessionId":"s1","seq":1,"step":"route","message":"Routing to the calculus mentor"}`))
	listener.Handle([]byte(`{"type":"plan.progress","sessionId":"s1","seq":1,"step":"route","message":"Routing to the calculus mentor"}`))
	listener.Handle([]byte(`{"type":"plan.progress","sessionId":"s1","seq":2,"step":"outline"}`))

	snap := store.Snapshot()
	assert.Equal(t, model.StatusInProgress, snap.Status)
	assert.Equal(t, "Routing to the calculus mentor", snap.Message)
	require.Len(t, snap.Steps, 2)
	assert.Equal(t, "outline", snap.Steps[1].Step)
}

func TestListenerWithoutSession(t *testing.T) {
	store := newTestStore(newFakeClock())
	listener := NewListener(store, logger.Discard())
	assert.False(t, listener.Apply(message.PlanStatusMessage{SessionID: "s1", Status: "running"}))
	assert.Equal(t, model.StatusIdle, store.Snapshot().Status)
}
