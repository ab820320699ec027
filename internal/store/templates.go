package store

import (
	"context"

	"github.com/uptrace/bun"

	"ms-invites/internal/models"
)

func (d *DB) CreateTemplate(ctx context.Context, template *models.Template) error {
	_, err := d.Bun.NewInsert().Model(template).Exec(ctx)
	return err
}

func (d *DB) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	var template models.Template
	err := d.Bun.NewSelect().
		Model(&template).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return &template, nil
}

// ListTemplates omits image bytes.
func (d *DB) ListTemplates(ctx context.Context) ([]models.Template, error) {
	var templates []models.Template
	err := d.Bun.NewSelect().
		Model(&templates).
		ExcludeColumn("image_data").
		Order("name ASC").
		Scan(ctx)
	return templates, err
}

// DeleteTemplate detaches the template from its events before removing it.
func (d *DB) DeleteTemplate(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*models.Event)(nil)).
			Set("template_id = NULL").
			Where("template_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}

		res, err := tx.NewDelete().
			Model((*models.Template)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}
