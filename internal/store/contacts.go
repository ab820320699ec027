package store

import (
	"context"
	"strings"

	"github.com/uptrace/bun"

	"ms-invites/internal/models"
)

func (d *DB) CreateContact(ctx context.Context, contact *models.Contact) error {
	_, err := d.Bun.NewInsert().Model(contact).Exec(ctx)
	return err
}

// CreateContacts inserts all contacts or none.
func (d *DB) CreateContacts(ctx context.Context, contacts []*models.Contact) error {
	if len(contacts) == 0 {
		return nil
	}
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&contacts).Exec(ctx)
		return err
	})
}

func (d *DB) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	var contact models.Contact
	err := d.Bun.NewSelect().
		Model(&contact).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return &contact, nil
}

func (d *DB) GetContactsByIDs(ctx context.Context, ids []string) ([]models.Contact, error) {
	var contacts []models.Contact
	if len(ids) == 0 {
		return contacts, nil
	}
	err := d.Bun.NewSelect().
		Model(&contacts).
		Where("id IN (?)", bun.In(ids)).
		Order("name ASC").
		Scan(ctx)
	return contacts, err
}

// ListContacts returns contacts ordered by name, optionally filtered by a case-insensitive
// substring of name, email or phone.
func (d *DB) ListContacts(ctx context.Context, search string) ([]models.Contact, error) {
	var contacts []models.Contact
	q := d.Bun.NewSelect().Model(&contacts).Order("name ASC")
	if search = strings.TrimSpace(search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(name) LIKE ?", pattern).
				WhereOr("LOWER(email) LIKE ?", pattern).
				WhereOr("phone LIKE ?", pattern)
		})
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return contacts, nil
}

func (d *DB) UpdateContact(ctx context.Context, contact *models.Contact) error {
	res, err := d.Bun.NewUpdate().
		Model(contact).
		Column("name", "phone", "email").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteContact removes the contact together with its invites and their check-ins.
func (d *DB) DeleteContact(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		invites := tx.NewSelect().
			Model((*models.Invite)(nil)).
			Column("id").
			Where("contact_id = ?", id)

		if _, err := tx.NewDelete().
			Model((*models.CheckIn)(nil)).
			Where("invite_id IN (?)", invites).
			Exec(ctx); err != nil {
			return err
		}

		if _, err := tx.NewDelete().
			Model((*models.Invite)(nil)).
			Where("contact_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}

		res, err := tx.NewDelete().
			Model((*models.Contact)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}
