package orders

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrPersistence       = errors.New("persistence failure")

	// ErrDuplicateOrder means the idempotency key was already used by the user.
	ErrDuplicateOrder = errors.New("duplicate idempotency key")
)

// ValidationError reports malformed input. Nothing was mutated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError covers unknown products and orders, including orders that
// exist but belong to another user.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func ProductNotFound(id uuid.UUID) *NotFoundError {
	return &NotFoundError{Resource: "product", ID: id.String()}
}

func OrderNotFound(id uuid.UUID) *NotFoundError {
	return &NotFoundError{Resource: "order", ID: id.String()}
}

type InsufficientStockError struct {
	ProductID uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type InvalidStateTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

func (e *InvalidStateTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// PersistenceError wraps a storage failure. Error() does not expose the cause
// so it can be surfaced to callers verbatim; Unwrap keeps it for logs.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "internal storage error"
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Detail includes the wrapped cause, for logging only.
func (e *PersistenceError) Detail() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}
