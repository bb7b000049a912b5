// Package hosting derives where a memorial sits in its hosting lifecycle.
package hosting

import (
	"math"
	"time"
)

const (
	GracePeriodDays      = 30
	DataPreservationDays = 14
)

type Phase string

const (
	PhaseActive     Phase = "active"
	PhaseReminder90 Phase = "reminder_90"
	PhaseReminder30 Phase = "reminder_30"
	PhaseReminder7  Phase = "reminder_7"
	// PhaseGrace: expired but still viewable, not editable
	PhaseGrace Phase = "grace"
	// PhasePreserved: hidden from the public, data kept for renewal
	PhasePreserved Phase = "preserved"
	PhaseDeletable Phase = "deletable"
)

// ExpiresAt returns when hosting bought at start for years runs out
func ExpiresAt(start time.Time, years int) time.Time {
	return start.AddDate(years, 0, 0)
}

// PhaseAt returns the lifecycle phase at now for hosting that expires at expiresAt
func PhaseAt(expiresAt, now time.Time) Phase {
	if !expiresAt.Before(now) {
		daysLeft := ceilDays(expiresAt.Sub(now))
		switch {
		case daysLeft <= 8:
			return PhaseReminder7
		case daysLeft <= 31:
			return PhaseReminder30
		case daysLeft <= 91:
			return PhaseReminder90
		default:
			return PhaseActive
		}
	}

	daysExpired := ceilDays(now.Sub(expiresAt))
	switch {
	case daysExpired <= GracePeriodDays:
		return PhaseGrace
	case daysExpired <= GracePeriodDays+DataPreservationDays:
		return PhasePreserved
	default:
		return PhaseDeletable
	}
}

// Viewable reports whether the memorial page is still served publicly
func (p Phase) Viewable() bool {
	return p != PhasePreserved && p != PhaseDeletable
}

// Editable reports whether the owner may still change content
func (p Phase) Editable() bool {
	return p.Viewable() && p != PhaseGrace
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(d.Hours() / 24))
}

// Status is the hosting view returned with a redeemed code
type Status struct {
	ExpiresAt time.Time `json:"expiresAt"`
	Phase     Phase     `json:"phase"`
	Viewable  bool      `json:"viewable"`
	Editable  bool      `json:"editable"`
}

// StatusAt builds the hosting status at now
func StatusAt(expiresAt, now time.Time) Status {
	p := PhaseAt(expiresAt, now)
	return Status{ExpiresAt: expiresAt, Phase: p, Viewable: p.Viewable(), Editable: p.Editable()}
}
