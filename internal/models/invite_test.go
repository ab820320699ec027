package models_test

import (
	"testing"
	"time"

	"ms-invites/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestInviteDisplayName(t *testing.T) {
	tests := []struct {
		name   string
		invite models.Invite
		want   string
	}{
		{
			name:   "contact wins over snapshot",
			invite: models.Invite{Contact: &models.Contact{Name: "Ada"}, ContactName: strPtr("Old Ada")},
			want:   "Ada",
		},
		{
			name:   "snapshot when contact missing",
			invite: models.Invite{ContactName: strPtr("General Invite #3")},
			want:   "General Invite #3",
		},
		{
			name:   "empty snapshot falls back to label",
			invite: models.Invite{ContactName: strPtr("")},
			want:   models.GeneralInviteLabel,
		},
		{
			name:   "nothing set",
			invite: models.Invite{},
			want:   models.GeneralInviteLabel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.invite.DisplayName())
		})
	}
}

func TestInviteHasReachedLimit(t *testing.T) {
	invite := models.Invite{}
	assert.False(t, invite.HasReachedLimit(), "unlimited invite never reaches a limit")

	invite.CheckIns = make([]*models.CheckIn, 50)
	assert.False(t, invite.HasReachedLimit())

	invite.MaxCheckIns = intPtr(2)
	invite.CheckIns = []*models.CheckIn{{}}
	assert.False(t, invite.HasReachedLimit())

	invite.CheckIns = append(invite.CheckIns, &models.CheckIn{})
	assert.True(t, invite.HasReachedLimit())
}

func TestInviteQRTokenIsID(t *testing.T) {
	id := uuid.New().String()
	invite := models.Invite{ID: id}
	assert.Equal(t, id, invite.QRToken())
}

func TestInviteLastCheckIn(t *testing.T) {
	now := time.Now()
	invite := models.Invite{}
	assert.Nil(t, invite.LastCheckIn())

	invite.CheckIns = []*models.CheckIn{
		{ID: "a", CreatedAt: now.Add(-time.Hour)},
		{ID: "b", CreatedAt: now},
		{ID: "c", CreatedAt: now.Add(-time.Minute)},
	}
	assert.Equal(t, "b", invite.LastCheckIn().ID)
}

func TestPlacementValidate(t *testing.T) {
	assert.NoError(t, models.DefaultPlacement().Validate())
	assert.NoError(t, models.Placement{X: 0, Y: 0, Size: 1}.Validate())
	assert.NoError(t, models.Placement{X: 1, Y: 1, Size: 0.01}.Validate())

	assert.Error(t, models.Placement{X: -0.1, Y: 0.5, Size: 0.3}.Validate())
	assert.Error(t, models.Placement{X: 0.5, Y: 1.1, Size: 0.3}.Validate())
	assert.Error(t, models.Placement{X: 0.5, Y: 0.5, Size: 0}.Validate())
	assert.Error(t, models.Placement{X: 0.5, Y: 0.5, Size: 1.5}.Validate())
}

func TestNewCheckInRecordedEvent(t *testing.T) {
	invite := &models.Invite{
		ID:          uuid.New().String(),
		EventID:     uuid.New().String(),
		ContactName: strPtr("Grace"),
		MaxCheckIns: intPtr(3),
	}
	checkIn := &models.CheckIn{ID: uuid.New().String(), InviteID: invite.ID, CreatedAt: time.Now()}
	invite.CheckIns = []*models.CheckIn{{ID: uuid.New().String()}, checkIn}

	evt, err := models.NewCheckInRecordedEvent(invite, checkIn)
	require.NoError(t, err)
	assert.Equal(t, invite.ID, evt.InviteID.String())
	assert.Equal(t, "Grace", evt.DisplayName)
	assert.Equal(t, 2, evt.Count)
	assert.True(t, evt.Repeat)

	invite.EventID = "not-a-uuid"
	_, err = models.NewCheckInRecordedEvent(invite, checkIn)
	assert.Error(t, err)
}
