package ufo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/ufo/source"
)

var (
	// ErrInvalidConfig is the kind of every *ConfigError.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrReservation is the kind of every *ReservationError.
	ErrReservation = errors.New("address space reservation failed")

	// ErrBusy is returned by TryDestroy while a population is in flight.
	ErrBusy = errors.New("object busy")

	// ErrDestroyed is returned when a destroyed object is used or destroyed again.
	ErrDestroyed = errors.New("object destroyed")

	// ErrShutdown is returned once the instance no longer accepts the request.
	ErrShutdown = errors.New("instance shut down")

	// ErrNotInitialized is returned when the instance has not been initialized.
	ErrNotInitialized = errors.New("instance not initialized")

	// ErrAlreadyInitialized is returned by a second Init.
	ErrAlreadyInitialized = errors.New("instance already initialized")

	// ErrShutdownTimeout is returned when AwaitShutdown gives up waiting.
	ErrShutdownTimeout = errors.New("shutdown timed out")

	// ErrOutOfRange is returned for element or byte ranges outside an object.
	ErrOutOfRange = errors.New("range out of bounds")
)

// PopulationError is returned when a source fails to populate or write back a range.
type PopulationError = source.PopulationError

// ConfigError describes an invalid option or object configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// ReservationError describes a failure to reserve or commit memory.
// Op is "reserve" for address space and "commit" for backing memory.
type ReservationError struct {
	Op   string
	Size int64
	Err  error
}

func (e *ReservationError) Error() string {
	return fmt.Sprintf("%s %d bytes: %v", e.Op, e.Size, e.Err)
}

func (e *ReservationError) Unwrap() error { return e.Err }

// Is makes every ReservationError match ErrReservation.
func (e *ReservationError) Is(target error) bool { return target == ErrReservation }
