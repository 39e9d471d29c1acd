package services

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrContractorNotFound = errors.New("contractor not found")
	ErrJobNotFound        = errors.New("job not found")
	ErrPurchaseNotFound   = errors.New("purchase not found")
	ErrJobNotAvailable    = errors.New("job not available")
	ErrAlreadyRefunded    = errors.New("purchase already refunded")
	ErrJobNotRefundable   = errors.New("job has progressed past unlocked")
	ErrInvalidTransition  = errors.New("invalid job status transition")
	ErrReferenceConflict  = errors.New("payment reference already credited to another contractor")
	ErrInvalidLocation    = errors.New("invalid location")
	ErrInvalidJob         = errors.New("invalid job")
	ErrAccountExists      = errors.New("contractor account already exists")
	ErrInvalidAccount     = errors.New("invalid contractor account")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrPersistence        = errors.New("persistence failure")
)

// InsufficientFundsError carries the balance observed when the debit was
// refused so callers can prompt for a top-up.
type InsufficientFundsError struct {
	Balance  int64
	Required int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %d, required %d", e.Balance, e.Required)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// PersistenceError wraps an unexpected storage failure. It matches both
// ErrPersistence and the underlying error.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrPersistence, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

var domainErrors = []error{
	ErrInvalidAmount, ErrInsufficientFunds, ErrContractorNotFound, ErrJobNotFound,
	ErrPurchaseNotFound, ErrJobNotAvailable, ErrAlreadyRefunded, ErrJobNotRefundable,
	ErrInvalidTransition, ErrReferenceConflict, ErrInvalidLocation, ErrInvalidJob,
	ErrAccountExists, ErrInvalidAccount, ErrUnauthenticated, ErrForbidden, ErrPersistence,
}

// classify passes typed outcomes through and wraps everything else.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range domainErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	return &PersistenceError{Op: op, Err: err}
}
