package models

import (
	"time"

	"github.com/uptrace/bun"
)

// GeneralInviteLabel is shown for invites with neither a contact nor a stored name.
const GeneralInviteLabel = "General Invite"

type Invite struct {
	bun.BaseModel `bun:"table:invites"`

	ID          string    `bun:"id,pk" json:"id"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
	EventID     string    `bun:"event_id,notnull" json:"event_id"`
	ContactID   *string   `bun:"contact_id" json:"contact_id,omitempty"`
	ContactName *string   `bun:"contact_name" json:"contact_name,omitempty"`
	MaxCheckIns *int      `bun:"max_check_ins" json:"max_check_ins,omitempty"`

	Event    *Event     `bun:"rel:belongs-to,join:event_id=id" json:"event,omitempty"`
	Contact  *Contact   `bun:"rel:belongs-to,join:contact_id=id" json:"contact,omitempty"`
	CheckIns []*CheckIn `bun:"rel:has-many,join:id=invite_id" json:"check_ins,omitempty"`
}

// QRToken is the payload encoded in the invite's QR code. It is the invite id itself,
// so it never changes and is unique across the store.
func (i *Invite) QRToken() string {
	return i.ID
}

// DisplayName prefers the live contact, then the snapshot name, then a generic label.
func (i *Invite) DisplayName() string {
	if i.Contact != nil && i.Contact.Name != "" {
		return i.Contact.Name
	}
	if i.ContactName != nil && *i.ContactName != "" {
		return *i.ContactName
	}
	return GeneralInviteLabel
}

func (i *Invite) CheckInCount() int {
	return len(i.CheckIns)
}

// HasReachedLimit is true only when a maximum is configured and already used up.
func (i *Invite) HasReachedLimit() bool {
	return i.MaxCheckIns != nil && i.CheckInCount() >= *i.MaxCheckIns
}

// LastCheckIn returns the most recent check-in, or nil.
func (i *Invite) LastCheckIn() *CheckIn {
	var last *CheckIn
	for _, c := range i.CheckIns {
		if last == nil || c.CreatedAt.After(last.CreatedAt) {
			last = c
		}
	}
	return last
}
