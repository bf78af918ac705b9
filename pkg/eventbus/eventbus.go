// Package eventbus publishes and consumes run lifecycle events over a
// watermill publisher/subscriber pair.
package eventbus

import (
	"context"

	"github.com/flowgrid/flowgrid/pkg/events"
)

// EventHandler processes one decoded event.
type EventHandler func(ctx context.Context, event any) error

// EventBus is the engine-facing publish/subscribe surface.
type EventBus interface {
	Publish(ctx context.Context, key string, event events.Event) error
	Handle(eventType events.EventType, handler EventHandler)
	Subscribe(ctx context.Context) error
	Close() error
}
