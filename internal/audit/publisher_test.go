package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enrolld/pkg/requestcontext"
)

func TestPublisherEmit(t *testing.T) {
	t.Run("fills timestamp and request id from context", func(t *testing.T) {
		p := NewPublisher(4, nil)
		now := time.Date(2026, 5, 15, 12, 0, 0, 0, time.UTC)
		ctx := requestcontext.WithTime(context.Background(), now)
		ctx = requestcontext.WithRequestID(ctx, "req-1")

		require.NoError(t, p.Emit(ctx, Event{Action: ActionSessionStaged}))

		got := <-p.Inbox()
		assert.Equal(t, now, got.Timestamp)
		assert.Equal(t, "req-1", got.RequestID)
	})

	t.Run("never blocks when the inbox is full", func(t *testing.T) {
		p := NewPublisher(1, nil)
		ctx := context.Background()

		require.NoError(t, p.Emit(ctx, Event{Action: ActionSessionStaged}))

		done := make(chan struct{})
		go func() {
			// Second emit must drop, not block.
			_ = p.Emit(ctx, Event{Action: ActionSessionCompleted})
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Emit blocked on a full inbox")
		}
	})

	t.Run("emit reports success even when the event drops", func(t *testing.T) {
		p := NewPublisher(1, nil)
		ctx := context.Background()
		require.NoError(t, p.Emit(ctx, Event{Action: ActionSessionStaged}))
		assert.NoError(t, p.Emit(ctx, Event{Action: ActionSessionAborted}))
	})
}

// flakySink fails every append.
type flakySink struct{}

func (flakySink) Append(context.Context, Event) error {
	return errors.New("sink down")
}

func TestWorker(t *testing.T) {
	t.Run("fans events out to every sink", func(t *testing.T) {
		p := NewPublisher(8, nil)
		first := NewInMemoryStore()
		second := NewInMemoryStore()
		worker := NewWorker(p.Inbox(), nil, first, second)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			_ = worker.Run(ctx)
			close(done)
		}()

		require.NoError(t, p.Emit(ctx, Event{Action: ActionRecordCreated}))

		// Sinks are appended in order, so once the last sink has the event
		// the earlier ones do too.
		require.Eventually(t, func() bool {
			events, err := second.List(ctx)
			return err == nil && len(events) == 1
		}, time.Second, 5*time.Millisecond)

		events, err := first.List(ctx)
		require.NoError(t, err)
		assert.Len(t, events, 1)
		assert.Equal(t, ActionRecordCreated, events[0].Action)

		cancel()
		<-done
	})

	t.Run("a failing sink does not starve the others", func(t *testing.T) {
		p := NewPublisher(8, nil)
		healthy := NewInMemoryStore()
		worker := NewWorker(p.Inbox(), nil, flakySink{}, healthy)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = worker.Run(ctx) }()

		require.NoError(t, p.Emit(ctx, Event{Action: ActionSessionCompleted}))

		require.Eventually(t, func() bool {
			events, err := healthy.List(ctx)
			return err == nil && len(events) == 1
		}, time.Second, 5*time.Millisecond)
	})
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	require.NoError(t, store.Append(ctx, Event{Action: ActionRuleChecked, Rule: "temporal_bound"}))
	require.NoError(t, store.Append(ctx, Event{Action: ActionSessionStaged}))

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	rules, err := store.ListByAction(ctx, ActionRuleChecked)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "temporal_bound", rules[0].Rule)
}
