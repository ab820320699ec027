package store

import (
	"context"

	"github.com/uptrace/bun"

	"ms-invites/internal/models"
)

func (d *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	_, err := d.Bun.NewInsert().Model(event).Exec(ctx)
	return err
}

// GetEvent loads the event with its template, if any.
func (d *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Relation("Template").
		Where("event.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	if event.Template != nil && event.Template.ID == "" {
		event.Template = nil
	}
	return &event, nil
}

// ListEvents returns events by date, newest first, without image bytes.
func (d *DB) ListEvents(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := d.Bun.NewSelect().
		Model(&events).
		ExcludeColumn("image_data").
		Order("date DESC").
		Scan(ctx)
	return events, err
}

func (d *DB) UpdateEvent(ctx context.Context, event *models.Event) error {
	res, err := d.Bun.NewUpdate().
		Model(event).
		ExcludeColumn("id", "created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteEvent removes the event with all of its invites and their check-ins.
func (d *DB) DeleteEvent(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		invites := tx.NewSelect().
			Model((*models.Invite)(nil)).
			Column("id").
			Where("event_id = ?", id)

		if _, err := tx.NewDelete().
			Model((*models.CheckIn)(nil)).
			Where("invite_id IN (?)", invites).
			Exec(ctx); err != nil {
			return err
		}

		if _, err := tx.NewDelete().
			Model((*models.Invite)(nil)).
			Where("event_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}

		res, err := tx.NewDelete().
			Model((*models.Event)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}
