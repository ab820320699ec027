package store

import (
	"context"

	"github.com/uptrace/bun"

	"ms-invites/internal/models"
)

// CreateInvites inserts a batch of invites atomically.
func (d *DB) CreateInvites(ctx context.Context, invites []*models.Invite) error {
	if len(invites) == 0 {
		return nil
	}
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&invites).Exec(ctx)
		return err
	})
}

func orderedCheckIns(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Order("created_at ASC")
}

// GetInvite loads an invite with its event, contact and check-ins.
func (d *DB) GetInvite(ctx context.Context, id string) (*models.Invite, error) {
	var invite models.Invite
	err := d.Bun.NewSelect().
		Model(&invite).
		Relation("Event", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.ExcludeColumn("image_data")
		}).
		Relation("Contact").
		Relation("CheckIns", orderedCheckIns).
		Where("invite.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	normalizeInvite(&invite)
	return &invite, nil
}

// FindInviteByToken resolves a QR token to its invite, loading only what a check-in decision needs.
func (d *DB) FindInviteByToken(ctx context.Context, token string) (*models.Invite, error) {
	var invite models.Invite
	err := d.Bun.NewSelect().
		Model(&invite).
		Relation("Contact").
		Relation("CheckIns", orderedCheckIns).
		Where("invite.id = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	normalizeInvite(&invite)
	return &invite, nil
}

// ListInvitesByEvent returns the event's invites in creation order.
func (d *DB) ListInvitesByEvent(ctx context.Context, eventID string) ([]*models.Invite, error) {
	var invites []*models.Invite
	err := d.Bun.NewSelect().
		Model(&invites).
		Relation("Contact").
		Relation("CheckIns", orderedCheckIns).
		Where("invite.event_id = ?", eventID).
		OrderExpr("invite.created_at ASC, invite.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, invite := range invites {
		normalizeInvite(invite)
	}
	return invites, nil
}

func (d *DB) CountInvitesByEvent(ctx context.Context, eventID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Invite)(nil)).
		Where("event_id = ?", eventID).
		Count(ctx)
}

// DeleteInvite removes the invite and its check-ins.
func (d *DB) DeleteInvite(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.CheckIn)(nil)).
			Where("invite_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}

		res, err := tx.NewDelete().
			Model((*models.Invite)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}

// A LEFT JOIN on a missing contact can leave an empty struct behind.
func normalizeInvite(invite *models.Invite) {
	if invite.Contact != nil && invite.Contact.ID == "" {
		invite.Contact = nil
	}
	if invite.Event != nil && invite.Event.ID == "" {
		invite.Event = nil
	}
}
