package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-invites/internal/kafka"
	"ms-invites/internal/models"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafkago.Message
	err      error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

// fakeReader replays queued messages, then blocks until ctx ends.
type fakeReader struct {
	queue chan kafkago.Message
	errs  chan error
}

func newFakeReader() *fakeReader {
	return &fakeReader{queue: make(chan kafkago.Message, 10), errs: make(chan error, 10)}
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafkago.Message, error) {
	select {
	case err := <-r.errs:
		return kafkago.Message{}, err
	default:
	}
	select {
	case msg := <-r.queue:
		return msg, nil
	case <-ctx.Done():
		return kafkago.Message{}, ctx.Err()
	}
}

func (r *fakeReader) Close() error { return nil }

func sampleEvent() models.CheckInRecordedEvent {
	return models.CheckInRecordedEvent{
		CheckInID:   uuid.New(),
		InviteID:    uuid.New(),
		EventID:     uuid.New(),
		DisplayName: "Ada",
		Count:       2,
		Repeat:      true,
		CheckedInAt: time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC),
	}
}

func TestPublishCheckInKeysByInvite(t *testing.T) {
	writer := &fakeWriter{}
	producer := kafka.NewProducerWithWriter(writer, nil)
	evt := sampleEvent()

	require.NoError(t, producer.NotifyCheckIn(context.Background(), evt))

	require.Len(t, writer.messages, 1)
	assert.Equal(t, evt.InviteID.String(), string(writer.messages[0].Key))

	var decoded models.CheckInRecordedEvent
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &decoded))
	assert.Equal(t, evt, decoded)
}

func TestPublishCheckInWrapsWriterError(t *testing.T) {
	boom := errors.New("broker unavailable")
	producer := kafka.NewProducerWithWriter(&fakeWriter{err: boom}, nil)

	err := producer.PublishCheckIn(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, boom)
}

func TestConsumerDeliversAndSkipsGarbage(t *testing.T) {
	reader := newFakeReader()
	consumer := kafka.NewConsumerWithReader(reader, nil)
	evt := sampleEvent()

	payload, err := json.Marshal(evt)
	require.NoError(t, err)
	reader.queue <- kafkago.Message{Value: []byte("{not json")}
	reader.queue <- kafkago.Message{Value: payload}

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan models.CheckInRecordedEvent, 1)
	done := make(chan error, 1)
	go func() {
		done <- consumer.Start(ctx, func(e models.CheckInRecordedEvent) { received <- e })
	}()

	select {
	case got := <-received:
		assert.Equal(t, evt, got)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not deliver the check-in")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestProducerDoesNotWaitForBatches(t *testing.T) {
	producer := kafka.NewProducer([]string{"localhost:9092"}, "checkins", nil)
	defer producer.Close()

	writer, ok := producer.Writer.(*kafkago.Writer)
	require.True(t, ok)
	assert.LessOrEqual(t, writer.BatchTimeout, 10*time.Millisecond)
	assert.Equal(t, 3, writer.MaxAttempts)
}

func TestInstanceGroupIDIsPerProcess(t *testing.T) {
	first := kafka.InstanceGroupID("invite-service")
	second := kafka.InstanceGroupID("invite-service")

	assert.True(t, strings.HasPrefix(first, "invite-service-"), first)
	assert.NotEqual(t, first, second)
}
