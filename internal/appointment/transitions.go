package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type party uint8

const (
	partyProvider party = 1 << iota
	partyAdmin
	partyRequester
)

type timing uint8

const (
	anyTime timing = iota
	beforeStart
	atOrAfterStart
)

type rule struct {
	parties party
	when    timing
}

type edge struct {
	from, to Status
}

var transitionRules = map[edge]rule{
	{StatusPending, StatusScheduled}:   {parties: partyProvider | partyAdmin},
	{StatusPending, StatusCancelled}:   {parties: partyProvider | partyAdmin | partyRequester},
	{StatusScheduled, StatusCompleted}: {parties: partyProvider, when: atOrAfterStart},
	{StatusScheduled, StatusCancelled}: {parties: partyProvider | partyAdmin | partyRequester, when: beforeStart},
}

// Engine is the appointment lifecycle state machine.
type Engine struct {
	RequireConfirmation bool
}

func NewEngine(requireConfirmation bool) Engine {
	return Engine{RequireConfirmation: requireConfirmation}
}

// InitialStatus is pending only for patient bookings that need provider
// approval.
func (e Engine) InitialStatus(actor Actor) Status {
	if actor.Role == RolePatient && e.RequireConfirmation {
		return StatusPending
	}
	return StatusScheduled
}

// AuthorizeBooking checks that actor may create an appointment for requester.
func (e Engine) AuthorizeBooking(actor Actor, requesterID uuid.UUID) error {
	switch actor.Role {
	case RolePatient:
		if actor.ID != requesterID {
			return fmt.Errorf("%w: patients may only book for themselves", ErrForbidden)
		}
		return nil
	case RoleSecretary, RoleAdmin:
		return nil
	default:
		return fmt.Errorf("%w: role %s may not book appointments", ErrForbidden, actor.Role)
	}
}

// Check validates moving a to status `to` on behalf of actor at time now.
// It has no side effects.
func (e Engine) Check(a *Appointment, actor Actor, to Status, now time.Time) error {
	if a.Status.Terminal() {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, a.Status)
	}
	r, ok := transitionRules[edge{a.Status, to}]
	if !ok {
		return fmt.Errorf("%w: %s -> %s is not allowed", ErrInvalidTransition, a.Status, to)
	}
	if r.parties&partiesOf(a, actor) == 0 {
		return fmt.Errorf("%w: %s %s may not move %s -> %s", ErrInvalidTransition, actor.Role, actor.ID, a.Status, to)
	}

	switch r.when {
	case beforeStart:
		if !now.Before(a.Start) {
			return fmt.Errorf("%w: appointment has already started", ErrInvalidTransition)
		}
	case atOrAfterStart:
		if now.Before(a.Start) {
			return fmt.Errorf("%w: appointment has not started yet", ErrInvalidTransition)
		}
	}
	return nil
}

func partiesOf(a *Appointment, actor Actor) party {
	var p party
	switch actor.Role {
	case RoleDoctor:
		if actor.ID == a.ProviderID {
			p |= partyProvider
		}
	case RoleAdmin:
		p |= partyAdmin
	case RolePatient:
		if actor.ID == a.RequesterID {
			p |= partyRequester
		}
	}
	return p
}
