package checkin_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-invites/internal/checkin"
)

// blockingResolver holds Resolve until release is closed.
type blockingResolver struct {
	entered chan struct{}
	release chan struct{}
	calls   int
	mu      sync.Mutex
}

func (r *blockingResolver) Resolve(ctx context.Context, text string) checkin.Outcome {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.entered != nil {
		r.entered <- struct{}{}
		<-r.release
	}
	return checkin.Outcome{Kind: checkin.NotFound, Token: text}
}

func TestSessionStateMachine(t *testing.T) {
	f := newFixture(t)
	engine := checkin.NewEngine(f.db)
	invite := f.invite(t, "Ada", nil)
	s := checkin.NewSession(engine)
	ctx := context.Background()

	assert.Equal(t, checkin.Waiting, s.State())
	assert.ErrorIs(t, s.Acknowledge(), checkin.ErrNothingToAcknowledge)

	out, err := s.HandleScan(ctx, invite.QRToken())
	require.NoError(t, err)
	assert.Equal(t, checkin.FirstCheckIn, out.Kind)
	assert.Equal(t, checkin.Displaying, s.State())

	// The same physical code read again while the outcome is shown is ignored.
	_, err = s.HandleScan(ctx, invite.QRToken())
	assert.ErrorIs(t, err, checkin.ErrSessionBusy)
	assert.Equal(t, 1, f.count(t, invite.ID))

	view := s.View()
	require.NotNil(t, view.Outcome)
	assert.Equal(t, checkin.FirstCheckIn, view.Outcome.Kind)
	assert.Equal(t, 1, view.Counts[checkin.FirstCheckIn])

	require.NoError(t, s.Acknowledge())
	assert.Equal(t, checkin.Waiting, s.State())
	assert.Nil(t, s.View().Outcome)

	out, err = s.HandleScan(ctx, invite.QRToken())
	require.NoError(t, err)
	assert.Equal(t, checkin.Repeat, out.Kind)
}

func TestSessionRecoversFromEveryOutcome(t *testing.T) {
	f := newFixture(t)
	s := checkin.NewSession(checkin.NewEngine(f.db))
	ctx := context.Background()

	for _, text := range []string{"not-a-uuid", uuid.NewString()} {
		_, err := s.HandleScan(ctx, text)
		require.NoError(t, err)
		require.NoError(t, s.Acknowledge())
		assert.Equal(t, checkin.Waiting, s.State())
	}
	counts := s.View().Counts
	assert.Equal(t, 1, counts[checkin.Malformed])
	assert.Equal(t, 1, counts[checkin.NotFound])
}

func TestSessionRejectsScanWhileDeciding(t *testing.T) {
	r := &blockingResolver{entered: make(chan struct{}), release: make(chan struct{})}
	s := checkin.NewSession(r)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.HandleScan(context.Background(), "first")
	}()

	<-r.entered
	assert.Equal(t, checkin.Deciding, s.State())
	_, err := s.HandleScan(context.Background(), "second")
	assert.ErrorIs(t, err, checkin.ErrSessionBusy)

	close(r.release)
	<-done
	assert.Equal(t, checkin.Displaying, s.State())
	assert.Equal(t, 1, r.calls)
}

func TestSessionManager(t *testing.T) {
	m := checkin.NewSessionManager(&blockingResolver{})
	s := m.Open()

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.Len())

	assert.Equal(t, 0, m.Sweep(time.Hour))
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, m.Sweep(time.Millisecond))

	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, checkin.ErrSessionNotFound)
	assert.ErrorIs(t, m.Close(s.ID), checkin.ErrSessionNotFound)

	s2 := m.Open()
	require.NoError(t, m.Close(s2.ID))
	assert.Equal(t, 0, m.Len())
}

type recordingDisplay struct {
	mu    sync.Mutex
	shown []checkin.Outcome
}

func (d *recordingDisplay) Show(ctx context.Context, out checkin.Outcome) error {
	d.mu.Lock()
	d.shown = append(d.shown, out)
	d.mu.Unlock()
	return nil
}

type chanScanner struct {
	scans   chan string
	resumed chan struct{}
	stopped chan struct{}
}

func newChanScanner() *chanScanner {
	return &chanScanner{
		scans:   make(chan string),
		resumed: make(chan struct{}, 16),
		stopped: make(chan struct{}),
	}
}

func (c *chanScanner) Start(ctx context.Context) (<-chan string, error) { return c.scans, nil }
func (c *chanScanner) Resume()                                          { c.resumed <- struct{}{} }
func (c *chanScanner) Stop()                                            { close(c.stopped) }

func TestSessionRun(t *testing.T) {
	f := newFixture(t)
	invite := f.invite(t, "Ada", nil)
	s := checkin.NewSession(checkin.NewEngine(f.db))
	scanner := newChanScanner()
	display := &recordingDisplay{}

	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background(), scanner, display) }()

	for _, text := range []string{invite.QRToken(), "not-a-uuid", invite.QRToken()} {
		scanner.scans <- text
		select {
		case <-scanner.resumed:
		case <-time.After(5 * time.Second):
			t.Fatal("scanner was not resumed")
		}
		assert.Equal(t, checkin.Waiting, s.State())
	}
	close(scanner.scans)

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop after the scanner closed")
	}
	<-scanner.stopped

	require.Len(t, display.shown, 3)
	assert.Equal(t, checkin.FirstCheckIn, display.shown[0].Kind)
	assert.Equal(t, checkin.Malformed, display.shown[1].Kind)
	assert.Equal(t, checkin.Repeat, display.shown[2].Kind)
}

func TestSessionRunStopsOnCancel(t *testing.T) {
	s := checkin.NewSession(&blockingResolver{})
	scanner := newChanScanner()
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx, scanner, &recordingDisplay{}) }()
	cancel()

	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestLineScannerDeliversAfterResume(t *testing.T) {
	pr, pw := io.Pipe()
	scanner := checkin.NewLineScanner(pr)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scans, err := scanner.Start(ctx)
	require.NoError(t, err)

	go func() {
		_, _ = io.WriteString(pw, "  first  \n")
	}()
	assert.Equal(t, "first", <-scans)

	scanner.Resume()
	go func() {
		_, _ = io.WriteString(pw, "\nsecond\n")
	}()
	assert.Equal(t, "second", <-scans)

	scanner.Stop()
	scanner.Stop()
	_, ok := <-scans
	assert.False(t, ok)
	pw.Close()
}
