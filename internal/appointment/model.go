package appointment

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus rejects anything outside the four lifecycle states.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusScheduled, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, s)
}

// Terminal statuses release the slot and accept no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CommittedStatuses hold a claim on a provider's time.
var CommittedStatuses = []Status{StatusPending, StatusScheduled}

type Role string

const (
	RolePatient   Role = "Patient"
	RoleDoctor    Role = "Doctor"
	RoleSecretary Role = "Secretary"
	RoleAdmin     Role = "Admin"
	RoleNurse     Role = "Nurse"
)

func ParseRole(s string) (Role, error) {
	for _, r := range []Role{RolePatient, RoleDoctor, RoleSecretary, RoleAdmin, RoleNurse} {
		if strings.EqualFold(strings.TrimSpace(s), string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidRequest, s)
}

// Actor is the caller on whose behalf an operation runs.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// SystemActor is used by background workers.
var SystemActor = Actor{ID: uuid.Nil, Role: RoleAdmin}

// Interval is a half-open [Start, End) range.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Slot is a bookable window produced by the availability calculator.
type Slot Interval

// WeeklyWindow is a recurring block of working time expressed in minutes from
// local midnight.
type WeeklyWindow struct {
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
}

type Blackout struct {
	ID     uuid.UUID
	Start  time.Time
	End    time.Time
	Reason string
}

type ProviderSchedule struct {
	ProviderID  uuid.UUID
	Windows     []WeeklyWindow
	Granularity time.Duration
	Timezone    string
	Blackouts   []Blackout
	UpdatedAt   time.Time
}

func (s *ProviderSchedule) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks the weekly template. Windows on the same weekday must not
// overlap.
func (s *ProviderSchedule) Validate() error {
	if s.ProviderID == uuid.Nil {
		return fmt.Errorf("%w: provider id is required", ErrInvalidRequest)
	}
	if s.Granularity <= 0 || s.Granularity%time.Minute != 0 {
		return fmt.Errorf("%w: granularity must be a positive whole number of minutes", ErrInvalidRequest)
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("%w: unknown timezone %q", ErrInvalidRequest, s.Timezone)
		}
	}

	byDay := make(map[time.Weekday][]WeeklyWindow)
	for _, w := range s.Windows {
		if w.Weekday < time.Sunday || w.Weekday > time.Saturday {
			return fmt.Errorf("%w: invalid weekday %d", ErrInvalidRequest, w.Weekday)
		}
		if w.StartMinute < 0 || w.EndMinute > 24*60 || w.StartMinute >= w.EndMinute {
			return fmt.Errorf("%w: invalid window %s %d-%d", ErrInvalidRequest, w.Weekday, w.StartMinute, w.EndMinute)
		}
		byDay[w.Weekday] = append(byDay[w.Weekday], w)
	}
	for day, ws := range byDay {
		sort.Slice(ws, func(i, j int) bool { return ws[i].StartMinute < ws[j].StartMinute })
		for i := 1; i < len(ws); i++ {
			if ws[i].StartMinute < ws[i-1].EndMinute {
				return fmt.Errorf("%w: overlapping windows on %s", ErrInvalidRequest, day)
			}
		}
	}

	for _, b := range s.Blackouts {
		if !b.Start.Before(b.End) {
			return fmt.Errorf("%w: blackout must end after it starts", ErrInvalidRequest)
		}
	}
	return nil
}

// DayBounds returns local midnight of date and of the following day in the
// schedule's timezone.
func (s *ProviderSchedule) DayBounds(date time.Time) (time.Time, time.Time) {
	loc := s.Location()
	y, m, d := date.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// WorkingHours projects the weekly template onto a calendar date.
func (s *ProviderSchedule) WorkingHours(date time.Time) []Interval {
	dayStart, _ := s.DayBounds(date)
	weekday := dayStart.Weekday()
	y, m, d := dayStart.Date()
	loc := dayStart.Location()

	var out []Interval
	for _, w := range s.Windows {
		if w.Weekday != weekday {
			continue
		}
		out = append(out, Interval{
			// Wall-clock minutes, so DST-change days keep the local hours.
			Start: time.Date(y, m, d, 0, w.StartMinute, 0, 0, loc),
			End:   time.Date(y, m, d, 0, w.EndMinute, 0, 0, loc),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// BlackoutsOn returns the blackout intervals touching date, clipped to the day.
func (s *ProviderSchedule) BlackoutsOn(date time.Time) []Interval {
	dayStart, dayEnd := s.DayBounds(date)
	day := Interval{Start: dayStart, End: dayEnd}

	var out []Interval
	for _, b := range s.Blackouts {
		iv := Interval{Start: b.Start, End: b.End}
		if !iv.Overlaps(day) {
			continue
		}
		out = append(out, clip(iv, day))
	}
	return out
}

type Appointment struct {
	ID              uuid.UUID
	ProviderID      uuid.UUID
	RequesterID     uuid.UUID
	Start           time.Time
	End             time.Time
	Status          Status
	Reason          string
	Notes           *string
	RescheduledFrom *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a *Appointment) Interval() Interval {
	return Interval{Start: a.Start, End: a.End}
}

func (a *Appointment) Committed() bool {
	return !a.Status.Terminal()
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// ListFilter narrows ListAppointments. Zero values mean "any".
type ListFilter struct {
	ProviderID  *uuid.UUID
	RequesterID *uuid.UUID
	Status      *Status
	From        *time.Time
	To          *time.Time
	Page        int
	PerPage     int
}

func (f *ListFilter) normalize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PerPage <= 0 {
		f.PerPage = 20 // default
	}
	if f.PerPage > 100 {
		f.PerPage = 100 // max
	}
}

func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

type AppointmentPage struct {
	Items   []Appointment
	Total   int
	Page    int
	PerPage int
}
