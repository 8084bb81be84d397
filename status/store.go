// Package status reconciles plan-build status from the realtime feed and the
// fallback poller into a single store that presentation code renders from.
package status

import (
	"log/slog"
	"sync"
	"time"

	"mentorlounge/shared/model"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

var SystemClock Clock = ClockFunc(time.Now)

// StatusUpdate overwrites the status fields of the record. Empty strings mean absent.
type StatusUpdate struct {
	Status      model.BuildStatus
	Message     string
	ResultID    string
	ResultTitle string
}

// Change is a realtime mutation. With neither field set it is a heartbeat.
type Change struct {
	Update *StatusUpdate
	Step   *model.ProgressStep
}

// Polled is a poll response mapped onto the store's vocabulary.
type Polled struct {
	Known  bool // false when the remote status could not be mapped
	Update StatusUpdate
	Steps  []model.ProgressStep
}

type PollResult string

const (
	PollDiscarded PollResult = "discarded"
	PollTouched   PollResult = "touched"
	PollApplied   PollResult = "applied"
)

// Store is the single owner of plan-build status. All mutators are atomic and
// safe to call from the listener and poller goroutines concurrently.
type Store struct {
	mu      sync.Mutex
	clock   Clock
	logger  *slog.Logger
	rec     model.StatusRecord
	session string
	rev     uint64
	seen    map[string]struct{}
	subs    map[int]chan model.Snapshot
	nextSub int
}

type StoreOption func(*Store)

func WithClock(c Clock) StoreOption {
	return func(s *Store) { s.clock = c }
}

func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		clock:  SystemClock,
		logger: slog.Default(),
		seen:   make(map[string]struct{}),
		subs:   make(map[int]chan model.Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rec = model.StatusRecord{Status: model.StatusIdle, LastActivityAt: s.clock.Now()}
	return s
}

func (s *Store) Now() time.Time {
	return s.clock.Now()
}

func (s *Store) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// SetStatus overwrites the status fields. A result id only survives on completed.
func (s *Store) SetStatus(u StatusUpdate) {
	if !u.Status.Valid() {
		s.logger.Warn("ignoring invalid status", "status", string(u.Status))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStatusLocked(u)
	s.commitLocked()
}

// SetSession replaces the session handle. A different id starts a fresh idle record.
func (s *Store) SetSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sessionID != s.session {
		s.clearLocked()
	}
	s.session = sessionID
	s.commitLocked()
}

func (s *Store) TouchActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitLocked()
}

// Reset returns the record to idle and clears the session.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	s.session = ""
	s.commitLocked()
}

// ApplyEvent applies a realtime change if sessionID is still current. Once the
// record is terminal only a new session or Reset moves it; later status
// updates just note the activity.
func (s *Store) ApplyEvent(sessionID string, c Change) bool {
	if c.Update != nil && !c.Update.Status.Valid() {
		s.logger.Warn("ignoring invalid status", "status", string(c.Update.Status))
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sessionID == "" || sessionID != s.session {
		return false
	}
	if c.Step != nil {
		s.applyStepLocked(*c.Step)
	}
	if c.Update != nil {
		if s.rec.Status.IsTerminal() {
			s.logger.Debug("ignoring status after terminal", "status", string(c.Update.Status), "current", string(s.rec.Status))
		} else {
			s.setStatusLocked(*c.Update)
		}
	}
	s.commitLocked()
	return true
}

// ApplyProgress records a realtime step if sessionID is still current.
// Terminal records keep their status and message but still note the activity.
func (s *Store) ApplyProgress(sessionID string, step model.ProgressStep) bool {
	return s.ApplyEvent(sessionID, Change{Step: &step})
}

// ApplyPolled applies a poll response only if nothing was written since the
// poll captured revision, so a slow poll never clobbers a newer realtime write.
func (s *Store) ApplyPolled(sessionID string, revision uint64, p Polled) PollResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sessionID == "" || sessionID != s.session || revision != s.rev {
		return PollDiscarded
	}

	changed := false
	for _, step := range p.Steps {
		if s.recordStepLocked(step) {
			changed = true
		}
	}
	if p.Known && p.Update.Status.Valid() && s.differsLocked(p.Update) {
		s.setStatusLocked(p.Update)
		changed = true
	}
	s.commitLocked()

	if changed {
		return PollApplied
	}
	return PollTouched
}

// Subscribe delivers the current snapshot and then every change. The channel
// holds one value; a slow reader only sees the newest snapshot.
func (s *Store) Subscribe() (<-chan model.Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan model.Snapshot, 1)
	ch <- s.snapshotLocked()
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

func (s *Store) setStatusLocked(u StatusUpdate) {
	s.rec.Status = u.Status
	s.rec.Message = u.Message
	s.rec.ResultTitle = u.ResultTitle
	if u.Status == model.StatusCompleted {
		s.rec.ResultID = u.ResultID
	} else {
		s.rec.ResultID = ""
	}
}

func (s *Store) differsLocked(u StatusUpdate) bool {
	resultID := u.ResultID
	if u.Status != model.StatusCompleted {
		resultID = ""
	}
	return s.rec.Status != u.Status ||
		s.rec.Message != u.Message ||
		s.rec.ResultID != resultID ||
		s.rec.ResultTitle != u.ResultTitle
}

func (s *Store) applyStepLocked(step model.ProgressStep) {
	s.recordStepLocked(step)
	if s.rec.Status.IsTerminal() {
		return
	}
	if step.Message != "" {
		s.rec.Message = step.Message
	}
	if s.rec.Status == model.StatusIdle || s.rec.Status == model.StatusQueued {
		s.rec.Status = model.StatusInProgress
	}
}

func (s *Store) recordStepLocked(step model.ProgressStep) bool {
	key := step.Key()
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	s.rec.Steps = append(s.rec.Steps, step)
	return true
}

func (s *Store) clearLocked() {
	s.rec = model.StatusRecord{Status: model.StatusIdle, LastActivityAt: s.rec.LastActivityAt}
	s.seen = make(map[string]struct{})
}

// commitLocked stamps activity, bumps the revision and notifies subscribers.
func (s *Store) commitLocked() {
	now := s.clock.Now()
	if now.Before(s.rec.LastActivityAt) {
		now = s.rec.LastActivityAt
	}
	s.rec.LastActivityAt = now
	s.rev++

	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (s *Store) snapshotLocked() model.Snapshot {
	rec := s.rec
	if len(s.rec.Steps) > 0 {
		rec.Steps = append([]model.ProgressStep(nil), s.rec.Steps...)
	}
	return model.Snapshot{StatusRecord: rec, SessionID: s.session, Revision: s.rev}
}
