package status

import (
	"context"
	"log/slog"
	"sync"

	"mentorlounge/shared/model"
)

// Tracker owns the poll task for the session currently being watched.
type Tracker struct {
	store   *Store
	fetcher StatusFetcher
	cfg     PollerConfig
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewTracker(store *Store, fetcher StatusFetcher, cfg PollerConfig, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: store, fetcher: fetcher, cfg: cfg, logger: logger}
}

// Begin switches the store to sessionID, marks it queued and starts polling.
// Any previous poll task is torn down first. The returned function is the
// single teardown for the new task; it is safe to call more than once and
// never touches a later task.
func (t *Tracker) Begin(ctx context.Context, sessionID, message string) func() {
	t.Stop()

	t.store.SetSession(sessionID)
	t.store.SetStatus(StatusUpdate{Status: model.StatusQueued, Message: message})

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	poller := NewPoller(t.store, t.fetcher, sessionID, t.cfg, t.logger)

	t.mu.Lock()
	t.cancel = cancel
	t.done = done
	t.mu.Unlock()

	go func() {
		defer close(done)
		poller.Run(runCtx)
	}()

	t.logger.Info("tracking plan build", "session_id", sessionID)
	return func() {
		t.mu.Lock()
		if t.done == done {
			t.cancel, t.done = nil, nil
		}
		t.mu.Unlock()
		cancel()
		<-done
	}
}

// Stop cancels the current poll task and waits for it to exit.
func (t *Tracker) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed when the current poll task exits. It is nil when nothing runs.
func (t *Tracker) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}
