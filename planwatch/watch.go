package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"mentorlounge/apiclient"
	"mentorlounge/feed"
	"mentorlounge/render"
	"mentorlounge/shared/config"
	"mentorlounge/shared/model"
	"mentorlounge/status"
)

var watchCmd = &cobra.Command{
	Use:   "watch <session-id>",
	Short: "Follow an existing plan build until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }
func (e exitError) ExitCode() int { return e.code }

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := preflight(cmd.Context(), newClient(cfg)); err != nil {
		return err
	}
	return followOutcome(watchSession(cmd.Context(), cfg, log, args[0], "Waiting for status", cmd.OutOrStdout()))
}

func newClient(cfg *config.Config) *apiclient.Client {
	return apiclient.NewClient(cfg.Client.APIURL, cfg.Client.RequestTimeout).WithToken(cfg.Client.Token)
}

// preflight fails fast when the status endpoint is unreachable.
func preflight(ctx context.Context, client *apiclient.Client) error {
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("status api unreachable: %w", err)
	}
	return nil
}

// followOutcome turns a failed build into a non-zero exit.
func followOutcome(snap model.Snapshot, err error) error {
	if err != nil {
		return err
	}
	if snap.Status == model.StatusFailed {
		return exitError{code: 2}
	}
	return nil
}

// watchSession wires the status store to the realtime feed and the fallback
// poller and renders banners until the build is terminal or ctx ends.
func watchSession(ctx context.Context, cfg *config.Config, log *slog.Logger, sessionID, initial string, out io.Writer) (model.Snapshot, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := newClient(cfg)
	store := status.NewStore(status.WithLogger(log))
	tracker := status.NewTracker(store, client, status.PollerConfig{
		Interval:       cfg.Client.PollInterval,
		QuietThreshold: cfg.Client.QuietThreshold,
	}, log)
	listener := status.NewListener(store, log)

	teardown := tracker.Begin(ctx, sessionID, initial)
	defer teardown()

	source := feed.NewWebSocketSource(cfg.Client.FeedURL, sessionID, cfg.Client.Token, log)
	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		if err := source.Listen(ctx, listener.Handle); err != nil {
			log.Warn("realtime feed unavailable, relying on polling", "error", err)
		}
	}()

	err := render.Watch(ctx, store, out, true)
	cancel()
	<-feedDone
	return store.Snapshot(), err
}
