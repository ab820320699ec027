package analytics

import (
	"context"
	"fmt"
	"slices"
	"time"

	"ms-invites/internal/models"
)

// StatsDB is the read side the analytics service needs
type StatsDB interface {
	CountInvitesByEventID(ctx context.Context, eventID string) (int, error)
	CountCheckedInInvitesByEventID(ctx context.Context, eventID string) (int, error)
	CountCheckInsByEventID(ctx context.Context, eventID string) (int, error)
	CheckInTimes(ctx context.Context, eventID string) ([]time.Time, error)
}

// Service handles analytics operations
type Service struct {
	db StatsDB
}

// NewService creates a new analytics service
func NewService(db StatsDB) *Service {
	return &Service{db: db}
}

// HourlyCheckIns is the number of check-ins that started within one hour
type HourlyCheckIns struct {
	Hour     time.Time `json:"hour"`
	CheckIns int       `json:"check_ins"`
}

// EventAnalytics is the attendance summary plus an arrival timeline
type EventAnalytics struct {
	models.EventStats
	Arrivals []HourlyCheckIns `json:"arrivals"`
}

// GetEventStats returns the attendance counters for an event
func (s *Service) GetEventStats(ctx context.Context, eventID string) (*models.EventStats, error) {
	total, err := s.db.CountInvitesByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to count invites: %w", err)
	}
	checkedIn, err := s.db.CountCheckedInInvitesByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to count checked-in invites: %w", err)
	}
	totalCheckIns, err := s.db.CountCheckInsByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to count check-ins: %w", err)
	}

	return &models.EventStats{
		EventID:       eventID,
		Total:         total,
		CheckedIn:     checkedIn,
		Remaining:     total - checkedIn,
		TotalCheckIns: totalCheckIns,
	}, nil
}

// GetEventAnalytics returns the counters together with check-ins bucketed per UTC hour
func (s *Service) GetEventAnalytics(ctx context.Context, eventID string) (*EventAnalytics, error) {
	stats, err := s.GetEventStats(ctx, eventID)
	if err != nil {
		return nil, err
	}
	times, err := s.db.CheckInTimes(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load check-in times: %w", err)
	}
	return &EventAnalytics{EventStats: *stats, Arrivals: bucketByHour(times)}, nil
}

func bucketByHour(times []time.Time) []HourlyCheckIns {
	slices.SortFunc(times, func(a, b time.Time) int { return a.Compare(b) })
	arrivals := []HourlyCheckIns{}
	for _, t := range times {
		hour := t.UTC().Truncate(time.Hour)
		if n := len(arrivals); n > 0 && arrivals[n-1].Hour.Equal(hour) {
			arrivals[n-1].CheckIns++
			continue
		}
		arrivals = append(arrivals, HourlyCheckIns{Hour: hour, CheckIns: 1})
	}
	return arrivals
}
