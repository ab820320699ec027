package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Template is a reusable card background shared by events that have no image of their own.
type Template struct {
	bun.BaseModel `bun:"table:templates"`

	ID          string    `bun:"id,pk" json:"id"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,notnull" json:"updated_at"`
	Name        string    `bun:"name,notnull" json:"name"`
	ImageData   []byte    `bun:"image_data,notnull" json:"-"`
	QRPositionX float64   `bun:"qr_position_x,notnull" json:"qr_position_x"`
	QRPositionY float64   `bun:"qr_position_y,notnull" json:"qr_position_y"`
	QRSize      float64   `bun:"qr_size,notnull" json:"qr_size"`
}

func (t *Template) Placement() Placement {
	return Placement{X: t.QRPositionX, Y: t.QRPositionY, Size: t.QRSize}
}
