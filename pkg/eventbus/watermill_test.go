package eventbus_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/channels/gochannel"
	"github.com/flowgrid/flowgrid/pkg/eventbus"
	"github.com/flowgrid/flowgrid/pkg/events"
)

func newTestBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	logger := watermill.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	pub, sub, err := gochannel.CreateTestChannel(logger)
	require.NoError(t, err)

	return eventbus.NewWatermillEventBus(pub, sub)
}

func TestPublishReachesHandler(t *testing.T) {
	bus := newTestBus(t)

	defer func() {
		_ = bus.Close()
	}()

	received := make(chan *events.RunCompleted, 1)

	bus.Handle(events.RunCompletedEvent, func(_ context.Context, event any) error {
		if completed, ok := event.(*events.RunCompleted); ok {
			received <- completed
		}

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	event := events.RunCompleted{
		BaseEvent:  events.NewBaseEvent(events.RunCompletedEvent, "wf-1", "run-1"),
		DurationMs: 42,
		LogEntries: 3,
	}

	require.NoError(t, bus.Publish(ctx, "wf-1", event))

	select {
	case completed := <-received:
		assert.Equal(t, "wf-1", completed.WorkflowID)
		assert.Equal(t, "run-1", completed.RunID)
		assert.Equal(t, int64(42), completed.DurationMs)
	case <-time.After(5 * time.Second):
		t.Fatal("event never reached the handler")
	}
}

func TestUnhandledEventTypeIsAcked(t *testing.T) {
	bus := newTestBus(t)

	defer func() {
		_ = bus.Close()
	}()

	received := make(chan struct{}, 1)

	bus.Handle(events.RunFailedEvent, func(_ context.Context, _ any) error {
		received <- struct{}{}

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for run.started; the message must be dropped
	// without blocking later deliveries.
	started := events.RunStarted{
		BaseEvent: events.NewBaseEvent(events.RunStartedEvent, "wf-1", "run-1"),
	}
	require.NoError(t, bus.Publish(ctx, "wf-1", started))

	failed := events.RunFailed{
		BaseEvent: events.NewBaseEvent(events.RunFailedEvent, "wf-1", "run-2"),
		Error:     "boom",
	}
	require.NoError(t, bus.Publish(ctx, "wf-1", failed))

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("second event never reached the handler")
	}
}
