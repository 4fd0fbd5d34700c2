package errors

import (
	"fmt"
)

// ErrNetwork is returned when a REST call did not complete. The core never
// auto-retries; callers decide whether to retry.
type ErrNetwork struct {
	Op  string
	Err error
}

func (e *ErrNetwork) Error() string {
	return fmt.Sprintf("network failure during %s: %v", e.Op, e.Err)
}

func (e *ErrNetwork) Unwrap() error {
	return e.Err
}

// ErrUnauthorized is returned on a 401-class failure. Outside of login it also
// triggers the global credential-clear side effect in the gateway.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrStateViolation is returned when an illegal order state transition is
// attempted. Local state is never mutated on this error.
type ErrStateViolation struct {
	OrderID string
	From    string
	Event   string
	Reason  string
}

func (e *ErrStateViolation) Error() string {
	msg := fmt.Sprintf("illegal transition %q from status %q", e.Event, e.From)
	if e.OrderID != "" {
		msg = fmt.Sprintf("order %s: %s", e.OrderID, msg)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// ErrStaleData is returned when an incoming update would move an order
// backward in its lifecycle. Expected under racing push/REST delivery, so it
// is logged and discarded rather than surfaced as a hard failure.
type ErrStaleData struct {
	OrderID string
	Current string
	Claimed string
}

func (e *ErrStaleData) Error() string {
	return fmt.Sprintf("stale update for order %s: local status %q, claimed %q", e.OrderID, e.Current, e.Claimed)
}

// ErrValidation is returned when a payload is malformed, e.g. a push event
// missing required order fields.
type ErrValidation struct {
	Message string
	Fields  map[string]string
}

func (e *ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// ErrNotFound is returned when an order (or an item within an order) is not
// present in the local collection.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrRequestFailed is returned when the upstream API rejects a call with a
// non-401 error status. Surfaced to the caller for local handling.
type ErrRequestFailed struct {
	Op     string
	Status int
	Body   string
}

func (e *ErrRequestFailed) Error() string {
	return fmt.Sprintf("%s failed: status %d: %s", e.Op, e.Status, e.Body)
}
