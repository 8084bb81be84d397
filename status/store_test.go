package status

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentorlounge/shared/model"
)

var allStatuses = []model.BuildStatus{
	model.StatusIdle,
	model.StatusQueued,
	model.StatusInProgress,
	model.StatusWarning,
	model.StatusCompleted,
	model.StatusFailed,
}

func propertyParameters() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())
	return parameters
}

func TestLastActivityNeverDecreases(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("lastActivityAt is non-decreasing even when the clock steps back", prop.ForAll(
		func(ops []int) bool {
			clock := newFakeClock()
			store := newTestStore(clock)
			store.SetSession("s1")
			prev := store.Snapshot().LastActivityAt

			for _, op := range ops {
				clock.Advance(time.Duration(op/6-5) * time.Second)
				switch op % 6 {
				case 0:
					store.TouchActivity()
				case 1:
					store.SetStatus(StatusUpdate{Status: allStatuses[op%len(allStatuses)]})
				case 2:
					store.SetStatus(StatusUpdate{Status: model.StatusCompleted, ResultID: "p1"})
				case 3:
					store.ApplyEvent("s1", Change{Step: &model.ProgressStep{Seq: int64(op)}})
				case 4:
					store.ApplyEvent("s1", Change{})
				case 5:
					snap := store.Snapshot()
					store.ApplyPolled("s1", snap.Revision, Polled{Known: true, Update: StatusUpdate{Status: model.StatusWarning}})
				}
				cur := store.Snapshot().LastActivityAt
				if cur.Before(prev) {
					t.Logf("lastActivityAt went from %v to %v", prev, cur)
					return false
				}
				prev = cur
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 59)),
	))

	properties.TestingRun(t)
}

func TestResultIDOnlyOnCompleted(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("resultId is set iff the last SetStatus was completed", prop.ForAll(
		func(picks []int) bool {
			store := newTestStore(newFakeClock())
			for _, pick := range picks {
				status := allStatuses[pick%len(allStatuses)]
				store.SetStatus(StatusUpdate{Status: status, ResultID: "p42", ResultTitle: "Intro"})
				snap := store.Snapshot()
				if (snap.ResultID != "") != (status == model.StatusCompleted) {
					t.Logf("status %s left resultId %q", status, snap.ResultID)
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 100)),
	))

	properties.TestingRun(t)
}

func TestResetAlwaysReturnsIdle(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("Reset yields an idle record whatever came before", prop.ForAll(
		func(picks []int, msg string) bool {
			store := newTestStore(newFakeClock())
			store.SetSession("s1")
			for _, pick := range picks {
				store.SetStatus(StatusUpdate{
					Status:      allStatuses[pick%len(allStatuses)],
					Message:     msg,
					ResultID:    "p42",
					ResultTitle: msg,
				})
				store.ApplyEvent("s1", Change{Step: &model.ProgressStep{Seq: int64(pick + 1)}})
			}
			store.Reset()
			snap := store.Snapshot()
			return snap.Status == model.StatusIdle &&
				snap.Message == "" &&
				snap.ResultID == "" &&
				snap.ResultTitle == "" &&
				snap.SessionID == "" &&
				len(snap.Steps) == 0
		},
		gen.SliceOf(gen.IntRange(0, 100)),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestSetSessionReplacesRecord(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(clock)

	store.SetSession("s1")
	store.SetStatus(StatusUpdate{Status: model.StatusInProgress, Message: "routing"})
	clock.Advance(time.Second)

	store.SetSession("s1")
	snap := store.Snapshot()
	assert.Equal(t, model.StatusInProgress, snap.Status, "same session keeps the record")
	assert.Equal(t, t0.Add(time.Second), snap.LastActivityAt)

	store.SetSession("s2")
	snap = store.Snapshot()
	assert.Equal(t, "s2", snap.SessionID)
	assert.Equal(t, model.StatusIdle, snap.Status)
	assert.Empty(t, snap.Message)
}

func TestInvalidStatusIgnored(t *testing.T) {
	store := newTestStore(newFakeClock())
	store.SetSession("s1")
	before := store.Snapshot()

	store.SetStatus(StatusUpdate{Status: "running"})
	assert.False(t, store.ApplyEvent("s1", Change{Update: &StatusUpdate{Status: "bogus"}}))
	assert.Equal(t, before.Revision, store.Snapshot().Revision)
}

func TestApplyEventChecksSession(t *testing.T) {
	store := newTestStore(newFakeClock())
	assert.False(t, store.ApplyEvent("s1", Change{}), "no session set")

	store.SetSession("s1")
	assert.False(t, store.ApplyEvent("s2", Change{Update: &StatusUpdate{Status: model.StatusFailed}}))
	assert.Equal(t, model.StatusIdle, store.Snapshot().Status)

	assert.True(t, store.ApplyEvent("s1", Change{Update: &StatusUpdate{Status: model.StatusWarning, Message: "slow model"}}))
	assert.Equal(t, model.StatusWarning, store.Snapshot().Status)
}

func TestProgressStepsDedupeAndPromote(t *testing.T) {
	store := newTestStore(newFakeClock())
	store.SetSession("s1")
	store.SetStatus(StatusUpdate{Status: model.StatusQueued})

	step := model.ProgressStep{Seq: 1, Step: "route", Message: "Routing to mentor"}
	store.ApplyEvent("s1", Change{Step: &step})
	store.ApplyProgress("s1", step)

	snap := store.Snapshot()
	assert.Equal(t, model.StatusInProgress, snap.Status)
	assert.Equal(t, "Routing to mentor", snap.Message)
	require.Len(t, snap.Steps, 1)

	store.SetStatus(StatusUpdate{Status: model.StatusCompleted, ResultID: "p1", Message: "done"})
	store.ApplyProgress("s1", model.ProgressStep{Seq: 2, Step: "late", Message: "late"})
	snap = store.Snapshot()
	assert.Equal(t, model.StatusCompleted, snap.Status, "steps never reopen a terminal record")
	assert.Equal(t, "done", snap.Message)
	assert.Len(t, snap.Steps, 2)
}

func TestApplyPolledRequiresRevision(t *testing.T) {
	store := newTestStore(newFakeClock())
	store.SetSession("s1")
	store.SetStatus(StatusUpdate{Status: model.StatusQueued})
	rev := store.Snapshot().Revision

	store.TouchActivity()
	got := store.ApplyPolled("s1", rev, Polled{Known: true, Update: StatusUpdate{Status: model.StatusInProgress}})
	assert.Equal(t, PollDiscarded, got)
	assert.Equal(t, model.StatusQueued, store.Snapshot().Status)

	rev = store.Snapshot().Revision
	assert.Equal(t, PollDiscarded, store.ApplyPolled("s2", rev, Polled{Known: true, Update: StatusUpdate{Status: model.StatusFailed}}))

	got = store.ApplyPolled("s1", rev, Polled{Known: true, Update: StatusUpdate{Status: model.StatusQueued}})
	assert.Equal(t, PollTouched, got)

	rev = store.Snapshot().Revision
	got = store.ApplyPolled("s1", rev, Polled{Known: true, Update: StatusUpdate{Status: model.StatusInProgress}})
	assert.Equal(t, PollApplied, got)
	assert.Equal(t, model.StatusInProgress, store.Snapshot().Status)
}

func TestSubscribeDeliversLatest(t *testing.T) {
	store := newTestStore(newFakeClock())
	updates, unsubscribe := store.Subscribe()

	initial := <-updates
	assert.Equal(t, model.StatusIdle, initial.Status)

	store.SetSession("s1")
	store.SetStatus(StatusUpdate{Status: model.StatusQueued})
	store.SetStatus(StatusUpdate{Status: model.StatusInProgress})

	latest := <-updates
	assert.Equal(t, model.StatusInProgress, latest.Status)
	select {
	case extra := <-updates:
		t.Fatalf("expected only the newest snapshot, got another: %+v", extra)
	default:
	}

	unsubscribe()
	unsubscribe()
	_, ok := <-updates
	assert.False(t, ok)
	store.TouchActivity()
}
