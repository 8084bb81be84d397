// Package feed delivers raw realtime plan-build events to a handler.
package feed

import "context"

// Handler receives one raw event payload.
type Handler func(data []byte)

// Source is a realtime transport. Listen blocks until ctx ends.
type Source interface {
	Listen(ctx context.Context, handle Handler) error
}
