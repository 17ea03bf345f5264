package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAppt(providerID uuid.UUID, span Interval, status Status) *Appointment {
	return &Appointment{
		ProviderID:  providerID,
		RequesterID: uuid.New(),
		Start:       span.Start,
		End:         span.End,
		Status:      status,
	}
}

func TestMemoryRepository_InsertRejectsOverlap(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	providerID := uuid.New()

	first := newAppt(providerID, iv(9, 0, 10, 0), StatusScheduled)
	require.NoError(t, repo.InsertAppointment(ctx, first))
	assert.NotEqual(t, uuid.Nil, first.ID)

	assert.ErrorIs(t, repo.InsertAppointment(ctx, newAppt(providerID, iv(9, 30, 10, 30), StatusPending)), ErrConflict)
	assert.NoError(t, repo.InsertAppointment(ctx, newAppt(providerID, iv(10, 0, 10, 30), StatusPending)), "touching is not overlapping")
	assert.NoError(t, repo.InsertAppointment(ctx, newAppt(uuid.New(), iv(9, 0, 10, 0), StatusPending)), "other provider")
	assert.NoError(t, repo.InsertAppointment(ctx, newAppt(providerID, iv(9, 0, 10, 0), StatusCancelled)), "terminal history")
}

func TestMemoryRepository_ListCommitted(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	providerID := uuid.New()

	late := newAppt(providerID, iv(14, 0, 14, 30), StatusPending)
	early := newAppt(providerID, iv(9, 0, 9, 30), StatusScheduled)
	done := newAppt(providerID, iv(10, 0, 10, 30), StatusCompleted)
	for _, a := range []*Appointment{late, early, done} {
		require.NoError(t, repo.InsertAppointment(ctx, a))
	}

	got, err := repo.ListCommitted(ctx, providerID, testDay, testDay.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, early.ID, got[0].ID)
	assert.Equal(t, late.ID, got[1].ID)
}

func TestMemoryRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	a := newAppt(uuid.New(), iv(9, 0, 9, 30), StatusPending)
	require.NoError(t, repo.InsertAppointment(ctx, a))

	updated, err := repo.UpdateStatus(ctx, a.ID, StatusPending, StatusScheduled)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, updated.Status)

	_, err = repo.UpdateStatus(ctx, a.ID, StatusPending, StatusCancelled)
	assert.ErrorIs(t, err, ErrStatusChanged)

	_, err = repo.UpdateStatus(ctx, uuid.New(), StatusPending, StatusCancelled)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestMemoryRepository_RescheduleIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	providerID := uuid.New()

	old := newAppt(providerID, iv(9, 0, 9, 30), StatusScheduled)
	blocker := newAppt(providerID, iv(11, 0, 11, 30), StatusScheduled)
	require.NoError(t, repo.InsertAppointment(ctx, old))
	require.NoError(t, repo.InsertAppointment(ctx, blocker))

	clash := newAppt(providerID, iv(11, 0, 11, 30), StatusScheduled)
	_, err := repo.Reschedule(ctx, old.ID, StatusScheduled, clash)
	require.ErrorIs(t, err, ErrConflict)

	stored, err := repo.GetAppointment(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, stored.Status, "old appointment untouched after failed reschedule")

	// Moving into its own former window is allowed.
	shifted := newAppt(providerID, iv(9, 0, 10, 0), StatusScheduled)
	created, err := repo.Reschedule(ctx, old.ID, StatusScheduled, shifted)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, created.Status)

	stored, err = repo.GetAppointment(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.Status)

	_, err = repo.Reschedule(ctx, old.ID, StatusScheduled, newAppt(providerID, iv(15, 0, 15, 30), StatusScheduled))
	assert.ErrorIs(t, err, ErrStatusChanged)
}

func TestMemoryRepository_ListAppointmentsFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	providerID := uuid.New()

	var requester uuid.UUID
	for i := 0; i < 5; i++ {
		a := newAppt(providerID, iv(9+i, 0, 9+i, 30), StatusScheduled)
		if i == 0 {
			requester = a.RequesterID
		}
		require.NoError(t, repo.InsertAppointment(ctx, a))
	}
	require.NoError(t, repo.InsertAppointment(ctx, newAppt(uuid.New(), iv(9, 0, 9, 30), StatusPending)))

	page, err := repo.ListAppointments(ctx, ListFilter{ProviderID: &providerID, PerPage: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Items, 2)
	assert.True(t, page.Items[0].Start.Equal(at(11, 0)))

	pending := StatusPending
	page, err = repo.ListAppointments(ctx, ListFilter{Status: &pending})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PerPage)

	page, err = repo.ListAppointments(ctx, ListFilter{RequesterID: &requester})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	from, to := at(10, 0), at(12, 0)
	page, err = repo.ListAppointments(ctx, ListFilter{ProviderID: &providerID, From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}

func TestMemoryRepository_ScheduleRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	providerID := uuid.New()

	_, err := repo.GetSchedule(ctx, providerID)
	assert.ErrorIs(t, err, ErrProviderNotFound)

	in := &ProviderSchedule{
		ProviderID:  providerID,
		Granularity: 30 * time.Minute,
		Timezone:    "UTC",
		Windows:     []WeeklyWindow{{Weekday: time.Monday, StartMinute: 540, EndMinute: 1020}},
		Blackouts:   []Blackout{{Start: at(12, 0), End: at(13, 0), Reason: "lunch"}},
	}
	require.NoError(t, repo.PutSchedule(ctx, in))

	got, err := repo.GetSchedule(ctx, providerID)
	require.NoError(t, err)
	assert.Equal(t, in.Windows, got.Windows)
	require.Len(t, got.Blackouts, 1)
	assert.NotEqual(t, uuid.Nil, got.Blackouts[0].ID)

	got.Windows[0].EndMinute = 600
	again, err := repo.GetSchedule(ctx, providerID)
	require.NoError(t, err)
	assert.Equal(t, 1020, again.Windows[0].EndMinute, "returned schedules are copies")
}

func TestMemoryRepository_FindStalePending(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	providerID := uuid.New()

	stale := newAppt(providerID, iv(9, 0, 9, 30), StatusPending)
	future := newAppt(providerID, iv(15, 0, 15, 30), StatusPending)
	confirmed := newAppt(providerID, iv(8, 0, 8, 30), StatusScheduled)
	for _, a := range []*Appointment{stale, future, confirmed} {
		require.NoError(t, repo.InsertAppointment(ctx, a))
	}

	got, err := repo.FindStalePending(ctx, at(9, 0))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stale.ID, got[0].ID)
}
