package status

import (
	"context"
	"log/slog"
	"time"

	"mentorlounge/shared/message"
	"mentorlounge/shared/model"
)

// StatusFetcher reads a plan build's status from the remote API.
type StatusFetcher interface {
	FetchPlanBuild(ctx context.Context, sessionID string) (*message.PlanBuildStatusResponse, error)
}

type PollerConfig struct {
	Interval       time.Duration
	QuietThreshold time.Duration
}

func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:       5 * time.Second,
		QuietThreshold: 10 * time.Second,
	}
}

type TickOutcome string

const (
	TickSkipped   TickOutcome = "skipped"
	TickApplied   TickOutcome = "applied"
	TickTouched   TickOutcome = "touched"
	TickDiscarded TickOutcome = "discarded"
	TickFailed    TickOutcome = "failed"
	TickStopped   TickOutcome = "stopped"
)

// Poller fetches status for one session when the realtime feed has gone quiet.
type Poller struct {
	store     *Store
	fetcher   StatusFetcher
	sessionID string
	cfg       PollerConfig
	logger    *slog.Logger

	// number of remote progress events already replayed into the store
	replayed int
}

func NewPoller(store *Store, fetcher StatusFetcher, sessionID string, cfg PollerConfig, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		store:     store,
		fetcher:   fetcher,
		sessionID: sessionID,
		cfg:       cfg,
		logger:    logger.With("session_id", sessionID),
	}
}

func (p *Poller) done(snap model.Snapshot) bool {
	return snap.SessionID == "" || snap.SessionID != p.sessionID || snap.Status.IsTerminal()
}

// Tick runs one poll cycle against the current store state.
func (p *Poller) Tick(ctx context.Context) TickOutcome {
	snap := p.store.Snapshot()
	if p.done(snap) {
		return TickStopped
	}
	if snap.Status == model.StatusIdle {
		return TickSkipped
	}
	if quiet := snap.QuietFor(p.store.Now()); quiet < p.cfg.QuietThreshold {
		p.logger.Debug("realtime feed active, skipping poll", "quiet_for", quiet)
		return TickSkipped
	}

	resp, err := p.fetcher.FetchPlanBuild(ctx, p.sessionID)
	if err != nil {
		if ctx.Err() != nil {
			return TickStopped
		}
		p.logger.Warn("status poll failed, retrying next tick", "error", err)
		return TickFailed
	}

	polled := Polled{}
	status, ok := model.ParseRemoteStatus(resp.Status)
	if ok && status == model.StatusIdle {
		// idle is local only; remotely it counts as activity
		p.logger.Debug("remote reports idle, touching activity", "status", resp.Status)
		ok = false
	} else if !ok {
		p.logger.Warn("unknown remote status", "status", resp.Status)
	}
	if ok {
		polled.Known = true
		polled.Update = StatusUpdate{
			Status:      status,
			Message:     resp.Message,
			ResultID:    resp.ResultID,
			ResultTitle: resp.ResultTitle,
		}
	}
	steps := resp.Steps()
	if p.replayed < len(steps) {
		polled.Steps = steps[p.replayed:]
	}

	switch p.store.ApplyPolled(p.sessionID, snap.Revision, polled) {
	case PollDiscarded:
		p.logger.Debug("discarding stale poll response", "revision", snap.Revision)
		return TickDiscarded
	case PollApplied:
		p.replayed = len(steps)
		p.logger.Info("applied polled status", "remote_status", resp.Status, "replayed_steps", len(polled.Steps))
		return TickApplied
	default:
		p.replayed = len(steps)
		return TickTouched
	}
}

// Run ticks on the configured interval until the context ends, the status
// becomes terminal, or the session is cleared or replaced.
func (p *Poller) Run(ctx context.Context) {
	updates, unsubscribe := p.store.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("poller cancelled")
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if p.done(snap) {
				p.logger.Debug("poller stopped", "status", string(snap.Status))
				return
			}
		case <-ticker.C:
			if p.Tick(ctx) == TickStopped {
				return
			}
		}
	}
}
