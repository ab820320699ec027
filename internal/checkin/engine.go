package checkin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-invites/internal/logger"
	"ms-invites/internal/models"
	"ms-invites/internal/store"
)

// Kind classifies the result of a single scan.
type Kind string

const (
	FirstCheckIn Kind = "first_check_in"
	Repeat       Kind = "repeat"
	LimitReached Kind = "limit_reached"
	NotFound     Kind = "not_found"
	Malformed    Kind = "malformed"
	// Failed means the check-in could not be committed. It is never reported as a success.
	Failed Kind = "failed"
)

// Outcome is the result of resolving one scanned text. PriorCount is the invite's
// check-in count before this scan.
type Outcome struct {
	Kind       Kind            `json:"kind"`
	Token      string          `json:"token,omitempty"`
	Invite     *models.Invite  `json:"invite,omitempty"`
	PriorCount int             `json:"prior_count"`
	Reason     string          `json:"reason,omitempty"`
	CheckIn    *models.CheckIn `json:"check_in,omitempty"`
	// latest check-in before this scan, set for repeats and limit reached
	Previous *models.CheckIn `json:"previous_check_in,omitempty"`
	Err      error           `json:"-"`
}

// Recorded reports whether this outcome stored a new check-in.
func (o Outcome) Recorded() bool {
	return o.Kind == FirstCheckIn || o.Kind == Repeat
}

// Store is the persistence the engine needs: a pure lookup by token and a single-row insert.
type Store interface {
	FindInviteByToken(ctx context.Context, token string) (*models.Invite, error)
	InsertCheckIn(ctx context.Context, checkIn *models.CheckIn) error
}

// Notifier is told about every committed check-in.
type Notifier interface {
	NotifyCheckIn(ctx context.Context, event models.CheckInRecordedEvent) error
}

type Engine struct {
	store     Store
	locker    Locker
	notifiers []Notifier
	logger    *logger.Logger
	now       func() time.Time
	newID     func() string
}

type Option func(*Engine)

// WithLocker replaces the default in-process keyed mutex.
func WithLocker(l Locker) Option {
	return func(e *Engine) { e.locker = l }
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifiers = append(e.notifiers, n) }
}

func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(s Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		locker: NewKeyedMutex(),
		logger: logger.Discard(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ParseToken accepts only the canonical 36 character UUID form used in QR payloads
// and returns it lowercased.
func ParseToken(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty scan")
	}
	if len(text) != 36 {
		return "", fmt.Errorf("token has %d characters, want 36", len(text))
	}
	id, err := uuid.Parse(text)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	return id.String(), nil
}

// Resolve classifies a scan and records at most one check-in. Scans of the same token are
// serialized through the locker so the capacity check always sees the latest count.
// Notifiers run after the lock is released.
func (e *Engine) Resolve(ctx context.Context, text string) Outcome {
	token, err := ParseToken(text)
	if err != nil {
		return e.finish(Outcome{Kind: Malformed, Reason: err.Error()})
	}

	unlock, err := e.locker.Lock(ctx, token)
	if err != nil {
		return e.finish(Outcome{Kind: Failed, Token: token, Reason: "could not lock invite", Err: err})
	}
	out := e.record(ctx, token)
	unlock()

	out = e.finish(out)
	if out.Recorded() {
		e.notify(ctx, out.Invite, out.CheckIn)
	}
	return out
}

// record runs lookup, capacity check and insert while the token is locked.
func (e *Engine) record(ctx context.Context, token string) Outcome {
	invite, err := e.store.FindInviteByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return Outcome{Kind: NotFound, Token: token}
	}
	if err != nil {
		return Outcome{Kind: Failed, Token: token, Reason: "lookup failed", Err: err}
	}

	prior := invite.CheckInCount()
	previous := invite.LastCheckIn()
	if invite.HasReachedLimit() {
		return Outcome{Kind: LimitReached, Token: token, Invite: invite, PriorCount: prior, Previous: previous}
	}

	checkIn := &models.CheckIn{
		ID:        e.newID(),
		CreatedAt: e.now().UTC(),
		InviteID:  invite.ID,
	}
	if err := e.store.InsertCheckIn(ctx, checkIn); err != nil {
		return Outcome{Kind: Failed, Token: token, Invite: invite, PriorCount: prior, Reason: "check-in not saved", Err: err}
	}
	invite.CheckIns = append(invite.CheckIns, checkIn)

	kind := FirstCheckIn
	if prior > 0 {
		kind = Repeat
	}
	return Outcome{Kind: kind, Token: token, Invite: invite, PriorCount: prior, Previous: previous, CheckIn: checkIn}
}

func (e *Engine) finish(out Outcome) Outcome {
	switch out.Kind {
	case Failed:
		e.logger.Error("CHECKIN", fmt.Sprintf("[%s] %s - %s: %v", out.Kind, out.Token, out.Reason, out.Err))
	case Malformed:
		e.logger.LogCheckIn(string(out.Kind), "-", out.Reason)
	case NotFound:
		e.logger.LogCheckIn(string(out.Kind), out.Token, "no matching invite")
	default:
		e.logger.LogCheckIn(string(out.Kind), out.Token, fmt.Sprintf("%s (prior %d)", out.Invite.DisplayName(), out.PriorCount))
	}
	return out
}

// notify runs after the insert committed. Failures are logged and never change the outcome.
func (e *Engine) notify(ctx context.Context, invite *models.Invite, checkIn *models.CheckIn) {
	if len(e.notifiers) == 0 {
		return
	}
	event, err := models.NewCheckInRecordedEvent(invite, checkIn)
	if err != nil {
		e.logger.Warn("CHECKIN", fmt.Sprintf("Skipping notification for %s: %v", invite.ID, err))
		return
	}
	for _, n := range e.notifiers {
		if err := n.NotifyCheckIn(ctx, event); err != nil {
			e.logger.Warn("CHECKIN", fmt.Sprintf("Check-in notification failed for %s: %v", invite.ID, err))
		}
	}
}
