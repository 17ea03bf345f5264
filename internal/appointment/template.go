package appointment

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// ScheduleTemplate is the file form of a provider schedule:
//
//	timezone = "Europe/Berlin"
//	granularity_minutes = 30
//
//	[[windows]]
//	weekday = "monday"
//	start = "09:00"
//	end = "12:00"
//
//	[[blackouts]]
//	start = 2025-12-24T00:00:00Z
//	end = 2025-12-27T00:00:00Z
//	reason = "Holidays"
type ScheduleTemplate struct {
	Timezone           string             `toml:"timezone"`
	GranularityMinutes int                `toml:"granularity_minutes"`
	Windows            []TemplateWindow   `toml:"windows"`
	Blackouts          []TemplateBlackout `toml:"blackouts"`
}

type TemplateWindow struct {
	Weekday string `toml:"weekday"`
	Start   string `toml:"start"`
	End     string `toml:"end"`
}

type TemplateBlackout struct {
	Start  time.Time `toml:"start"`
	End    time.Time `toml:"end"`
	Reason string    `toml:"reason"`
}

func LoadScheduleTemplate(path string) (*ScheduleTemplate, error) {
	var t ScheduleTemplate
	md, err := toml.DecodeFile(path, &t)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decode %s: unknown keys %v", path, undecoded)
	}
	return &t, nil
}

func DecodeScheduleTemplate(r io.Reader) (*ScheduleTemplate, error) {
	var t ScheduleTemplate
	md, err := toml.NewDecoder(r).Decode(&t)
	if err != nil {
		return nil, fmt.Errorf("decode schedule template: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decode schedule template: unknown keys %v", undecoded)
	}
	return &t, nil
}

// Build turns the template into a validated schedule for providerID.
func (t *ScheduleTemplate) Build(providerID uuid.UUID) (*ProviderSchedule, error) {
	s := &ProviderSchedule{
		ProviderID:  providerID,
		Timezone:    t.Timezone,
		Granularity: time.Duration(t.GranularityMinutes) * time.Minute,
	}
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	for _, w := range t.Windows {
		day, err := ParseWeekday(w.Weekday)
		if err != nil {
			return nil, err
		}
		start, err := ParseClock(w.Start)
		if err != nil {
			return nil, err
		}
		end, err := ParseClock(w.End)
		if err != nil {
			return nil, err
		}
		s.Windows = append(s.Windows, WeeklyWindow{Weekday: day, StartMinute: start, EndMinute: end})
	}
	for _, b := range t.Blackouts {
		s.Blackouts = append(s.Blackouts, Blackout{Start: b.Start, End: b.End, Reason: b.Reason})
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func ParseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(strings.TrimSpace(s), d.String()) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidRequest, s)
}

// ParseClock converts HH:MM to minutes from midnight. 24:00 is accepted as
// the end of the day.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("%w: invalid time of day %q", ErrInvalidRequest, s)
	}
	if h < 0 || m < 0 || m > 59 || h*60+m > 24*60 {
		return 0, fmt.Errorf("%w: invalid time of day %q", ErrInvalidRequest, s)
	}
	return h*60 + m, nil
}

func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
