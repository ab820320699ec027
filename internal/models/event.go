package models

import (
	"time"

	"github.com/uptrace/bun"
)

// DefaultQRSize is the QR edge length as a fraction of the card's shorter side.
const DefaultQRSize = 0.3

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID        string     `bun:"id,pk" json:"id"`
	CreatedAt time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time  `bun:"updated_at,notnull" json:"updated_at"`
	Title     string     `bun:"title,notnull" json:"title"`
	Subtitle  string     `bun:"subtitle,notnull" json:"subtitle"`
	Date      time.Time  `bun:"date,notnull" json:"date"`
	ExpiresAt *time.Time `bun:"expires_at" json:"expires_at,omitempty"`
	Address   *string    `bun:"address" json:"address,omitempty"`
	Latitude  *float64   `bun:"latitude" json:"latitude,omitempty"`
	Longitude *float64   `bun:"longitude" json:"longitude,omitempty"`

	// Invitation card background and QR placement
	ImageData   []byte  `bun:"image_data" json:"-"`
	QRPositionX float64 `bun:"qr_position_x,notnull" json:"qr_position_x"`
	QRPositionY float64 `bun:"qr_position_y,notnull" json:"qr_position_y"`
	QRSize      float64 `bun:"qr_size,notnull" json:"qr_size"`

	TemplateID *string   `bun:"template_id" json:"template_id,omitempty"`
	Template   *Template `bun:"rel:belongs-to,join:template_id=id" json:"template,omitempty"`

	Invites []*Invite `bun:"rel:has-many,join:id=event_id" json:"invites,omitempty"`
}

// HasImage reports whether the event carries its own card background.
func (e *Event) HasImage() bool {
	return len(e.ImageData) > 0
}

// Placement returns the QR placement of the event's own background.
func (e *Event) Placement() Placement {
	return Placement{X: e.QRPositionX, Y: e.QRPositionY, Size: e.QRSize}
}
