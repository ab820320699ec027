package sse_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-invites/internal/models"
	"ms-invites/internal/sse"
)

func recorded(eventID uuid.UUID, name string) models.CheckInRecordedEvent {
	return models.CheckInRecordedEvent{
		CheckInID:   uuid.New(),
		InviteID:    uuid.New(),
		EventID:     eventID,
		DisplayName: name,
		Count:       1,
		CheckedInAt: time.Now().UTC(),
	}
}

func TestEmitReachesOnlyEventSubscribers(t *testing.T) {
	emitter := sse.NewCheckInEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventID, otherID := uuid.New(), uuid.New()
	mine := emitter.SubscribeToEvent(ctx, eventID.String())
	theirs := emitter.SubscribeToEvent(ctx, otherID.String())

	require.NoError(t, emitter.NotifyCheckIn(ctx, recorded(eventID, "Ada")))

	select {
	case evt := <-mine:
		assert.Equal(t, "Ada", evt.DisplayName)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the check-in")
	}

	select {
	case evt := <-theirs:
		t.Fatalf("unexpected check-in for another event: %+v", evt)
	default:
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	emitter := sse.NewCheckInEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventID := uuid.New()
	ch := emitter.SubscribeToEvent(ctx, eventID.String())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			emitter.EmitCheckIn(recorded(eventID, "Guest"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emitter blocked on a full client")
	}
	assert.Len(t, ch, cap(ch))
}

func TestSubscriberRemovedWhenContextEnds(t *testing.T) {
	emitter := sse.NewCheckInEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())

	eventID := uuid.NewString()
	ch := emitter.SubscribeToEvent(ctx, eventID)
	assert.Equal(t, 1, emitter.GetEventClientCount(eventID))

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel was not closed")
	}
	assert.Equal(t, 0, emitter.GetEventClientCount(eventID))
}
