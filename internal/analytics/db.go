package analytics

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// DB handles analytics database operations
type DB struct {
	bun *bun.DB
}

// NewDB creates a new analytics DB handler
func NewDB(db *bun.DB) *DB {
	return &DB{bun: db}
}

// CountInvitesByEventID counts all invites of an event
func (db *DB) CountInvitesByEventID(ctx context.Context, eventID string) (int, error) {
	var count int
	err := db.bun.NewRaw("SELECT COUNT(*) FROM invites WHERE event_id = ?", eventID).
		Scan(ctx, &count)

	return count, err
}

// CountCheckedInInvitesByEventID counts invites with at least one check-in
func (db *DB) CountCheckedInInvitesByEventID(ctx context.Context, eventID string) (int, error) {
	var count int
	err := db.bun.NewRaw(`
		SELECT COUNT(DISTINCT c.invite_id)
		FROM check_ins c
		JOIN invites i ON c.invite_id = i.id
		WHERE i.event_id = ?`, eventID).
		Scan(ctx, &count)

	return count, err
}

// CountCheckInsByEventID counts every check-in row of an event
func (db *DB) CountCheckInsByEventID(ctx context.Context, eventID string) (int, error) {
	var count int
	err := db.bun.NewRaw(`
		SELECT COUNT(*)
		FROM check_ins c
		JOIN invites i ON c.invite_id = i.id
		WHERE i.event_id = ?`, eventID).
		Scan(ctx, &count)

	return count, err
}

// CheckInTimes returns the timestamps of an event's check-ins, oldest first
func (db *DB) CheckInTimes(ctx context.Context, eventID string) ([]time.Time, error) {
	var times []time.Time
	err := db.bun.NewSelect().
		TableExpr("check_ins AS c").
		ColumnExpr("c.created_at").
		Join("JOIN invites AS i ON c.invite_id = i.id").
		Where("i.event_id = ?", eventID).
		OrderExpr("c.created_at ASC").
		Scan(ctx, &times)

	return times, err
}
