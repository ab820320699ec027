package models

import (
	"time"

	"github.com/google/uuid"
)

// CheckInRecordedEvent is published on the check-in topic after a check-in commits.
type CheckInRecordedEvent struct {
	CheckInID   uuid.UUID `json:"check_in_id"`
	InviteID    uuid.UUID `json:"invite_id"`
	EventID     uuid.UUID `json:"event_id"`
	DisplayName string    `json:"display_name"`
	Count       int       `json:"count"`
	MaxCheckIns *int      `json:"max_check_ins,omitempty"`
	Repeat      bool      `json:"repeat"`
	CheckedInAt time.Time `json:"checked_in_at"`
}

// NewCheckInRecordedEvent builds the event for a check-in that was just stored on invite.
// The invite's CheckIns must already include the new row.
func NewCheckInRecordedEvent(invite *Invite, checkIn *CheckIn) (CheckInRecordedEvent, error) {
	checkInID, err := uuid.Parse(checkIn.ID)
	if err != nil {
		return CheckInRecordedEvent{}, err
	}
	inviteID, err := uuid.Parse(invite.ID)
	if err != nil {
		return CheckInRecordedEvent{}, err
	}
	eventID, err := uuid.Parse(invite.EventID)
	if err != nil {
		return CheckInRecordedEvent{}, err
	}

	count := invite.CheckInCount()
	return CheckInRecordedEvent{
		CheckInID:   checkInID,
		InviteID:    inviteID,
		EventID:     eventID,
		DisplayName: invite.DisplayName(),
		Count:       count,
		MaxCheckIns: invite.MaxCheckIns,
		Repeat:      count > 1,
		CheckedInAt: checkIn.CreatedAt,
	}, nil
}
