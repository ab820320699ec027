package store

import (
	"context"

	"ms-invites/internal/models"
)

// InsertCheckIn stores a single check-in row. It either commits fully or not at all.
func (d *DB) InsertCheckIn(ctx context.Context, checkIn *models.CheckIn) error {
	_, err := d.Bun.NewInsert().Model(checkIn).Exec(ctx)
	return err
}

func (d *DB) CountCheckIns(ctx context.Context, inviteID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.CheckIn)(nil)).
		Where("invite_id = ?", inviteID).
		Count(ctx)
}
