package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"ms-invites/internal/checkin"
)

// terminalDisplay prints each outcome in a colour matching its kind and holds it on screen
// for a fixed time before the next scan is accepted.
type terminalDisplay struct {
	w    io.Writer
	hold time.Duration
}

var kindColors = map[checkin.Kind]*color.Color{
	checkin.FirstCheckIn: color.New(color.FgGreen, color.Bold),
	checkin.Repeat:       color.New(color.FgYellow, color.Bold),
	checkin.LimitReached: color.New(color.FgRed, color.Bold),
	checkin.NotFound:     color.New(color.FgRed),
	checkin.Malformed:    color.New(color.FgRed),
	checkin.Failed:       color.New(color.FgMagenta, color.Bold),
}

func headline(out checkin.Outcome) string {
	switch out.Kind {
	case checkin.FirstCheckIn:
		return "WELCOME"
	case checkin.Repeat:
		return fmt.Sprintf("ALREADY CHECKED IN (%d before)", out.PriorCount)
	case checkin.LimitReached:
		return "CHECK-IN LIMIT REACHED"
	case checkin.NotFound:
		return "INVITE NOT FOUND"
	case checkin.Malformed:
		return "UNREADABLE CODE"
	default:
		return "CHECK-IN NOT SAVED, PLEASE RETRY"
	}
}

func (d *terminalDisplay) Show(ctx context.Context, out checkin.Outcome) error {
	c, ok := kindColors[out.Kind]
	if !ok {
		c = color.New(color.FgWhite)
	}
	c.Fprintln(d.w, headline(out))
	if out.Invite != nil {
		fmt.Fprintf(d.w, "  %s\n", out.Invite.DisplayName())
		if out.Invite.MaxCheckIns != nil {
			fmt.Fprintf(d.w, "  %d of %d admissions used\n", out.Invite.CheckInCount(), *out.Invite.MaxCheckIns)
		}
	}
	if out.Previous != nil {
		fmt.Fprintf(d.w, "  last check-in at %s\n", out.Previous.CreatedAt.Local().Format("15:04:05"))
	}
	if out.Reason != "" {
		fmt.Fprintf(d.w, "  %s\n", out.Reason)
	}

	if d.hold <= 0 {
		return nil
	}
	timer := time.NewTimer(d.hold)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
