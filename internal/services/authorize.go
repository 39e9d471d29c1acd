package services

import "leadmarket/internal/models"

func requirePrivileged(actor models.Actor) error {
	if !actor.Authenticated() {
		return ErrUnauthenticated
	}
	if !actor.Privileged() {
		return ErrForbidden
	}
	return nil
}

func requireAdmin(actor models.Actor) error {
	if !actor.Authenticated() {
		return ErrUnauthenticated
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// requireActsFor allows the contractor itself and privileged callers.
func requireActsFor(actor models.Actor, contractorID string) error {
	if !actor.Authenticated() {
		return ErrUnauthenticated
	}
	if !actor.ActsFor(contractorID) {
		return ErrForbidden
	}
	return nil
}

// requireContractor allows only the contractor itself; an admin cannot buy
// leads on someone's behalf.
func requireContractor(actor models.Actor, contractorID string) error {
	if !actor.Authenticated() {
		return ErrUnauthenticated
	}
	if actor.Kind != models.ActorContractor || actor.ID != contractorID {
		return ErrForbidden
	}
	return nil
}
