package models

import (
	"time"

	"github.com/uptrace/bun"
)

// CheckIn records one admission through an invite. Rows are never updated.
type CheckIn struct {
	bun.BaseModel `bun:"table:check_ins"`

	ID        string    `bun:"id,pk" json:"id"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	InviteID  string    `bun:"invite_id,notnull" json:"invite_id"`
}
