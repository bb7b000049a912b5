package hosting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const day = 24 * time.Hour

func TestPhaseAt(t *testing.T) {
	expires := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want Phase
	}{
		{"well before expiry", expires.Add(-200 * day), PhaseActive},
		{"ninety days out", expires.Add(-90 * day), PhaseReminder90},
		{"thirty days out", expires.Add(-30 * day), PhaseReminder30},
		{"a week out", expires.Add(-7 * day), PhaseReminder7},
		{"at expiry", expires, PhaseReminder7},
		{"first day of grace", expires.Add(time.Hour), PhaseGrace},
		{"end of grace", expires.Add(30 * day), PhaseGrace},
		{"preserved", expires.Add(31 * day), PhasePreserved},
		{"last preserved day", expires.Add(44 * day), PhasePreserved},
		{"deletable", expires.Add(45 * day), PhaseDeletable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PhaseAt(expires, tt.now))
		})
	}
}

func TestPhaseVisibility(t *testing.T) {
	assert.True(t, PhaseReminder7.Editable())
	assert.True(t, PhaseGrace.Viewable())
	assert.False(t, PhaseGrace.Editable())
	assert.False(t, PhasePreserved.Viewable())
	assert.False(t, PhaseDeletable.Editable())
}

func TestExpiresAt(t *testing.T) {
	used := time.Date(2024, 2, 29, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2034, 3, 1, 10, 0, 0, 0, time.UTC), ExpiresAt(used, 10))
}
