package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-invites/internal/checkin"
	"ms-invites/internal/config"
	"ms-invites/internal/database/dbtest"
	"ms-invites/internal/logger"
	"ms-invites/internal/models"
	"ms-invites/internal/store"
)

func intPtr(i int) *int { return &i }

// stepScanner hands out one code per Resume, like a reader that is paused between scans.
type stepScanner struct {
	codes  []string
	resume chan struct{}
}

func newStepScanner(codes ...string) *stepScanner {
	return &stepScanner{codes: codes, resume: make(chan struct{}, 1)}
}

func (s *stepScanner) Start(ctx context.Context) (<-chan string, error) {
	out := make(chan string)
	go func() {
		defer close(out)
		for _, code := range s.codes {
			select {
			case out <- code:
			case <-ctx.Done():
				return
			}
			select {
			case <-s.resume:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *stepScanner) Resume() {
	select {
	case s.resume <- struct{}{}:
	default:
	}
}

func (s *stepScanner) Stop() {}

func TestRunResolvesEachLine(t *testing.T) {
	bunDB := dbtest.New(t)
	db := store.New(bunDB)
	ctx := context.Background()

	event := &models.Event{ID: uuid.NewString(), Title: "Gala", Date: time.Now().UTC(), QRSize: 0.3}
	require.NoError(t, db.CreateEvent(ctx, event))
	name := "Ada"
	invite := &models.Invite{ID: uuid.NewString(), CreatedAt: time.Now().UTC(), EventID: event.ID,
		ContactName: &name, MaxCheckIns: intPtr(2)}
	require.NoError(t, db.CreateInvites(ctx, []*models.Invite{invite}))

	cfg := config.Load()
	cfg.Redis.Enabled = false
	cfg.Kafka.Enabled = false
	st, err := newStation(ctx, cfg, bunDB, logger.Discard())
	require.NoError(t, err)
	defer st.close()
	engine := st.engine

	scanner := newStepScanner(invite.ID, invite.ID, invite.ID, "hello", uuid.NewString())
	var out bytes.Buffer
	view, err := run(ctx, scanner, &out, engine, 0)
	require.NoError(t, err)

	assert.Equal(t, checkin.Waiting, view.State)
	assert.Equal(t, 1, view.Counts[checkin.FirstCheckIn])
	assert.Equal(t, 1, view.Counts[checkin.Repeat])
	assert.Equal(t, 1, view.Counts[checkin.LimitReached])
	assert.Equal(t, 1, view.Counts[checkin.Malformed])
	assert.Equal(t, 1, view.Counts[checkin.NotFound])

	text := out.String()
	assert.Contains(t, text, "WELCOME")
	assert.Contains(t, text, "ALREADY CHECKED IN (1 before)")
	assert.Contains(t, text, "CHECK-IN LIMIT REACHED")
	assert.Contains(t, text, "Ada")
	assert.Contains(t, text, "last check-in at")

	count, err := db.CountCheckIns(ctx, invite.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNewStationWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Load()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()
	cfg.Kafka.Enabled = false

	st, err := newStation(context.Background(), cfg, dbtest.New(t), logger.Discard())
	require.NoError(t, err)
	assert.NotNil(t, st.redis)
	assert.Nil(t, st.producer)
	st.close()

	mr.Close()
	_, err = newStation(context.Background(), cfg, dbtest.New(t), logger.Discard())
	assert.Error(t, err)
}

func TestNewStationPublishesToKafka(t *testing.T) {
	cfg := config.Load()
	cfg.Redis.Enabled = false
	cfg.Kafka.Enabled = true
	cfg.Kafka.Brokers = []string{"localhost:9092"}

	st, err := newStation(context.Background(), cfg, dbtest.New(t), logger.Discard())
	require.NoError(t, err)
	defer st.close()
	assert.NotNil(t, st.producer)
}

func TestDisplayHoldsUntilCancelled(t *testing.T) {
	d := &terminalDisplay{w: &bytes.Buffer{}, hold: time.Hour}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := d.Show(ctx, checkin.Outcome{Kind: checkin.Failed, Reason: "database unavailable"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, d.w.(*bytes.Buffer).String(), "PLEASE RETRY")
}
