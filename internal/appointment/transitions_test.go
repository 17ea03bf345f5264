package appointment

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// expectedTransition restates the lifecycle rules case by case so the grid
// below does not share the engine's rule table.
func expectedTransition(from, to Status, who string, when string) bool {
	switch {
	case from == StatusPending && to == StatusScheduled:
		return who == "provider" || who == "admin"
	case from == StatusPending && to == StatusCancelled:
		return who == "provider" || who == "admin" || who == "requester"
	case from == StatusScheduled && to == StatusCompleted:
		return who == "provider" && when != "before"
	case from == StatusScheduled && to == StatusCancelled:
		return (who == "provider" || who == "admin" || who == "requester") && when == "before"
	default:
		return false
	}
}

func TestEngine_Check(t *testing.T) {
	providerID := uuid.New()
	requesterID := uuid.New()
	start := at(10, 0)

	actors := []struct {
		name  string
		actor Actor
	}{
		{"provider", Actor{ID: providerID, Role: RoleDoctor}},
		{"other doctor", Actor{ID: uuid.New(), Role: RoleDoctor}},
		{"requester", Actor{ID: requesterID, Role: RolePatient}},
		{"other patient", Actor{ID: uuid.New(), Role: RolePatient}},
		{"admin", Actor{ID: uuid.New(), Role: RoleAdmin}},
		{"secretary", Actor{ID: uuid.New(), Role: RoleSecretary}},
		{"nurse", Actor{ID: uuid.New(), Role: RoleNurse}},
	}
	moments := []struct {
		name string
		now  time.Time
	}{
		{"before", start.Add(-time.Minute)},
		{"at", start},
		{"after", start.Add(time.Hour)},
	}
	statuses := []Status{StatusPending, StatusScheduled, StatusCompleted, StatusCancelled}

	engine := NewEngine(true)
	allowed := 0
	for _, from := range statuses {
		for _, to := range statuses {
			for _, a := range actors {
				for _, m := range moments {
					want := expectedTransition(from, to, a.name, m.name)
					if want {
						allowed++
					}
					name := fmt.Sprintf("%s->%s/%s/%s", from, to, a.name, m.name)
					t.Run(name, func(t *testing.T) {
						appt := &Appointment{
							ID:          uuid.New(),
							ProviderID:  providerID,
							RequesterID: requesterID,
							Start:       start,
							End:         start.Add(30 * time.Minute),
							Status:      from,
						}
						err := engine.Check(appt, a.actor, to, m.now)
						if want {
							assert.NoError(t, err)
						} else {
							assert.ErrorIs(t, err, ErrInvalidTransition)
						}
						assert.Equal(t, from, appt.Status, "Check must not mutate")
					})
				}
			}
		}
	}
	// confirm 2x3, withdraw 3x3, complete 1x2, cancel 3x1
	assert.Equal(t, 6+9+2+3, allowed)
}

func TestEngine_InitialStatus(t *testing.T) {
	patient := Actor{ID: uuid.New(), Role: RolePatient}
	secretary := Actor{ID: uuid.New(), Role: RoleSecretary}

	assert.Equal(t, StatusPending, NewEngine(true).InitialStatus(patient))
	assert.Equal(t, StatusScheduled, NewEngine(true).InitialStatus(secretary))
	assert.Equal(t, StatusScheduled, NewEngine(false).InitialStatus(patient))
}

func TestEngine_AuthorizeBooking(t *testing.T) {
	engine := NewEngine(true)
	patientID := uuid.New()

	assert.NoError(t, engine.AuthorizeBooking(Actor{ID: patientID, Role: RolePatient}, patientID))
	assert.ErrorIs(t, engine.AuthorizeBooking(Actor{ID: patientID, Role: RolePatient}, uuid.New()), ErrForbidden)
	assert.NoError(t, engine.AuthorizeBooking(Actor{ID: uuid.New(), Role: RoleSecretary}, patientID))
	assert.NoError(t, engine.AuthorizeBooking(Actor{ID: uuid.New(), Role: RoleAdmin}, patientID))
	assert.ErrorIs(t, engine.AuthorizeBooking(Actor{ID: uuid.New(), Role: RoleDoctor}, patientID), ErrForbidden)
	assert.ErrorIs(t, engine.AuthorizeBooking(Actor{ID: uuid.New(), Role: RoleNurse}, patientID), ErrForbidden)
}
