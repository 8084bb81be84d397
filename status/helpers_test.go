package status

import (
	"context"
	"sync"
	"time"

	"mentorlounge/shared/logger"
	"mentorlounge/shared/message"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeFetcher struct {
	mu      sync.Mutex
	calls   int
	resp    *message.PlanBuildStatusResponse
	err     error
	onFetch func()
}

func (f *fakeFetcher) FetchPlanBuild(ctx context.Context, sessionID string) (*message.PlanBuildStatusResponse, error) {
	f.mu.Lock()
	f.calls++
	resp, err, hook := f.resp, f.err, f.onFetch
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	copied := *resp
	copied.SessionID = sessionID
	return &copied, nil
}

func (f *fakeFetcher) set(resp *message.PlanBuildStatusResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resp, f.err = resp, err
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestStore(clock *fakeClock) *Store {
	return NewStore(WithClock(clock), WithLogger(logger.Discard()))
}
