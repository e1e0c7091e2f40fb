package auction

import (
	"fmt"
	"time"
)

// Countdown is the remaining time on an auction clock.
type Countdown struct {
	Days         int    `json:"days"`
	Hours        int    `json:"hours"`
	Minutes      int    `json:"minutes"`
	Seconds      int    `json:"seconds"`
	TotalSeconds int64  `json:"total_seconds"`
	Display      string `json:"display"`
	IsEnded      bool   `json:"is_ended"`
}

// TimeLeft computes the countdown from now to endsAt.
func TimeLeft(endsAt, now time.Time) Countdown {
	diff := endsAt.Sub(now)
	if diff <= 0 {
		return Countdown{Display: "Ended", IsEnded: true}
	}

	cd := Countdown{
		Days:         int(diff / (24 * time.Hour)),
		Hours:        int(diff % (24 * time.Hour) / time.Hour),
		Minutes:      int(diff % time.Hour / time.Minute),
		Seconds:      int(diff % time.Minute / time.Second),
		TotalSeconds: int64(diff / time.Second),
	}

	switch {
	case cd.Days > 0:
		cd.Display = fmt.Sprintf("%dd %dh", cd.Days, cd.Hours)
	case cd.Hours > 0:
		cd.Display = fmt.Sprintf("%dh %dm", cd.Hours, cd.Minutes)
	default:
		cd.Display = fmt.Sprintf("%dm %ds", cd.Minutes, cd.Seconds)
	}
	return cd
}
