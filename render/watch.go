package render

import (
	"context"
	"fmt"
	"io"

	"mentorlounge/shared/model"
)

// Subscriber is the rendering surface of the status store.
type Subscriber interface {
	Subscribe() (<-chan model.Snapshot, func())
}

// Watch writes a banner whenever the rendered output changes. Activity-only
// updates produce no output. It returns when ctx ends, the subscription
// closes, or once a terminal snapshot has been written and stopOnTerminal is set.
func Watch(ctx context.Context, store Subscriber, w io.Writer, stopOnTerminal bool) error {
	updates, cancel := store.Subscribe()
	defer cancel()

	var last string
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			banner := Banner(snap)
			if banner != last {
				if _, err := fmt.Fprintln(w, banner); err != nil {
					return err
				}
				last = banner
			}
			if stopOnTerminal && snap.Status.IsTerminal() {
				return nil
			}
		}
	}
}
