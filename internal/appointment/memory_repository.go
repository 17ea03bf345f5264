package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps everything in process. All writes run under one
// mutex, so InsertAppointment and Reschedule are atomic check-and-write
// operations.
type MemoryRepository struct {
	mu           sync.RWMutex
	schedules    map[uuid.UUID]*ProviderSchedule
	appointments map[uuid.UUID]*Appointment
	events       []EventLog
	now          func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		schedules:    make(map[uuid.UUID]*ProviderSchedule),
		appointments: make(map[uuid.UUID]*Appointment),
		now:          time.Now,
	}
}

func (r *MemoryRepository) GetSchedule(_ context.Context, providerID uuid.UUID) (*ProviderSchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schedules[providerID]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return copySchedule(s), nil
}

func (r *MemoryRepository) PutSchedule(_ context.Context, s *ProviderSchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := copySchedule(s)
	for i := range c.Blackouts {
		if c.Blackouts[i].ID == uuid.Nil {
			c.Blackouts[i].ID = uuid.New()
		}
	}
	c.UpdatedAt = r.now()
	r.schedules[s.ProviderID] = c
	return nil
}

func (r *MemoryRepository) ListCommitted(_ context.Context, providerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	window := Interval{Start: from, End: to}
	var out []Appointment
	for _, a := range r.appointments {
		if a.ProviderID != providerID || !a.Committed() || !a.Interval().Overlaps(window) {
			continue
		}
		out = append(out, copyAppointment(a))
	}
	sortByStart(out)
	return out, nil
}

func (r *MemoryRepository) GetAppointment(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	c := copyAppointment(a)
	return &c, nil
}

func (r *MemoryRepository) ListAppointments(_ context.Context, filter ListFilter) (*AppointmentPage, error) {
	filter.normalize()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Appointment
	for _, a := range r.appointments {
		if filter.ProviderID != nil && a.ProviderID != *filter.ProviderID {
			continue
		}
		if filter.RequesterID != nil && a.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		if filter.From != nil && a.Start.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !a.Start.Before(*filter.To) {
			continue
		}
		matched = append(matched, copyAppointment(a))
	}
	sortByStart(matched)

	page := &AppointmentPage{Total: len(matched), Page: filter.Page, PerPage: filter.PerPage}
	offset := filter.Offset()
	if offset < len(matched) {
		end := offset + filter.PerPage
		if end > len(matched) {
			end = len(matched)
		}
		page.Items = matched[offset:end]
	}
	return page, nil
}

func (r *MemoryRepository) InsertAppointment(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.Committed() && r.overlapsLocked(a, uuid.Nil) {
		return ErrConflict
	}
	r.storeLocked(a)
	return nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != from {
		return nil, ErrStatusChanged
	}
	a.Status = to
	a.UpdatedAt = r.now()
	c := copyAppointment(a)
	return &c, nil
}

func (r *MemoryRepository) Reschedule(_ context.Context, oldID uuid.UUID, from Status, next *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.appointments[oldID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if old.Status != from {
		return nil, ErrStatusChanged
	}
	if r.overlapsLocked(next, oldID) {
		return nil, ErrConflict
	}

	old.Status = StatusCancelled
	old.UpdatedAt = r.now()
	r.storeLocked(next)
	c := copyAppointment(next)
	return &c, nil
}

func (r *MemoryRepository) FindStalePending(_ context.Context, now time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.appointments {
		if a.Status == StatusPending && !a.Start.After(now) {
			out = append(out, copyAppointment(a))
		}
	}
	sortByStart(out)
	return out, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.now()
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the event log.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EventLog(nil), r.events...)
}

func (r *MemoryRepository) overlapsLocked(a *Appointment, ignore uuid.UUID) bool {
	for id, other := range r.appointments {
		if id == ignore || id == a.ID || other.ProviderID != a.ProviderID || !other.Committed() {
			continue
		}
		if other.Interval().Overlaps(a.Interval()) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) storeLocked(a *Appointment) {
	now := r.now()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	c := copyAppointment(a)
	r.appointments[a.ID] = &c
}

func copyAppointment(a *Appointment) Appointment {
	c := *a
	if a.Notes != nil {
		n := *a.Notes
		c.Notes = &n
	}
	if a.RescheduledFrom != nil {
		id := *a.RescheduledFrom
		c.RescheduledFrom = &id
	}
	return c
}

func copySchedule(s *ProviderSchedule) *ProviderSchedule {
	c := *s
	c.Windows = append([]WeeklyWindow(nil), s.Windows...)
	c.Blackouts = append([]Blackout(nil), s.Blackouts...)
	return &c
}

func sortByStart(appts []Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		if appts[i].Start.Equal(appts[j].Start) {
			return appts[i].CreatedAt.Before(appts[j].CreatedAt)
		}
		return appts[i].Start.Before(appts[j].Start)
	})
}
