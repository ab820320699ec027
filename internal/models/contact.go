package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Contact is a person who can be invited to any number of events.
type Contact struct {
	bun.BaseModel `bun:"table:contacts"`

	ID        string    `bun:"id,pk" json:"id"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	Name      string    `bun:"name,notnull" json:"name"`
	Phone     *string   `bun:"phone" json:"phone,omitempty"`
	Email     *string   `bun:"email" json:"email,omitempty"`

	Invites []*Invite `bun:"rel:has-many,join:id=contact_id" json:"invites,omitempty"`
}
