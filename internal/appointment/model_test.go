package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" Scheduled ")
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, st)

	_, err = ParseStatus("confirmed")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("secretary")
	require.NoError(t, err)
	assert.Equal(t, RoleSecretary, r)

	_, err = ParseRole("Receptionist")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusScheduled.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestInterval_Overlaps(t *testing.T) {
	assert.True(t, iv(9, 0, 10, 0).Overlaps(iv(9, 30, 10, 30)))
	assert.True(t, iv(9, 0, 12, 0).Overlaps(iv(10, 0, 10, 30)))
	assert.False(t, iv(9, 0, 9, 30).Overlaps(iv(9, 30, 10, 0)), "half-open intervals touch without overlapping")
}

func TestProviderSchedule_Validate(t *testing.T) {
	valid := func() *ProviderSchedule {
		return &ProviderSchedule{
			ProviderID:  uuid.New(),
			Granularity: 30 * time.Minute,
			Timezone:    "UTC",
			Windows: []WeeklyWindow{
				{Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 12 * 60},
				{Weekday: time.Monday, StartMinute: 13 * 60, EndMinute: 17 * 60},
			},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(s *ProviderSchedule)
	}{
		{"missing provider", func(s *ProviderSchedule) { s.ProviderID = uuid.Nil }},
		{"zero granularity", func(s *ProviderSchedule) { s.Granularity = 0 }},
		{"sub-minute granularity", func(s *ProviderSchedule) { s.Granularity = 90 * time.Second }},
		{"unknown timezone", func(s *ProviderSchedule) { s.Timezone = "Mars/Olympus" }},
		{"empty window", func(s *ProviderSchedule) { s.Windows[0].EndMinute = s.Windows[0].StartMinute }},
		{"window past midnight", func(s *ProviderSchedule) { s.Windows[1].EndMinute = 25 * 60 }},
		{"invalid weekday", func(s *ProviderSchedule) { s.Windows[0].Weekday = 7 }},
		{"overlapping windows", func(s *ProviderSchedule) { s.Windows[1].StartMinute = 11 * 60 }},
		{"inverted blackout", func(s *ProviderSchedule) {
			s.Blackouts = []Blackout{{Start: at(12, 0), End: at(9, 0)}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidRequest)
		})
	}
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "slot_unavailable", Outcome(ErrSlotUnavailable))
	assert.Equal(t, "not_found", Outcome(ErrProviderNotFound))
	assert.Equal(t, "invalid_transition", Outcome(ErrInvalidTransition))
	assert.Equal(t, "error", Outcome(assert.AnError))
}
