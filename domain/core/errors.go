package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound        = errors.New("resource not found")
	ErrRunNotFound     = fmt.Errorf("%w: run", ErrNotFound)
	ErrDatasetNotFound = fmt.Errorf("%w: dataset", ErrNotFound)

	// Inference errors
	ErrPriorViolation     = errors.New("parameter vector outside prior bounds")
	ErrIntegrationFailure = errors.New("scalar field integration failed")
	ErrDataIntegrity      = errors.New("observational data integrity violation")

	// Sampler errors
	ErrInvalidInitialState    = errors.New("could not seed walkers with finite log-probability")
	ErrRunInterrupted         = errors.New("sampler run interrupted")
	ErrInvalidPhaseTransition = errors.New("invalid sampler phase transition")
	ErrEmptyChain             = errors.New("chain contains no samples")

	// Determinism errors
	ErrNonDeterministic = errors.New("non-deterministic result")
	ErrHashMismatch     = errors.New("hash mismatch")
)

// DataIntegrityError describes a malformed observational record.
type DataIntegrityError struct {
	Source string // dataset name or file path
	Index  int    // record index, -1 when the error concerns the whole dataset
	Field  string
	Reason string
}

func (e *DataIntegrityError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s: %s", ErrDataIntegrity, e.Source, e.Reason)
	}
	return fmt.Sprintf("%s: %s record %d field %s: %s", ErrDataIntegrity, e.Source, e.Index, e.Field, e.Reason)
}

func (e *DataIntegrityError) Unwrap() error {
	return ErrDataIntegrity
}

// NewDataIntegrityError creates a record-level integrity error
func NewDataIntegrityError(source string, index int, field, reason string) error {
	return &DataIntegrityError{Source: source, Index: index, Field: field, Reason: reason}
}

// IntegrationError captures where the scalar field ODE solve broke down.
type IntegrationError struct {
	Step   int     // accepted integrator steps before failure
	A      float64 // scale factor reached
	Reason string
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("%s at a=%.6g after %d steps: %s", ErrIntegrationFailure, e.A, e.Step, e.Reason)
}

func (e *IntegrationError) Unwrap() error {
	return ErrIntegrationFailure
}

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

func NewPhaseTransitionError(from, to string) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidPhaseTransition, from, to)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsDataIntegrityError(err error) bool {
	return errors.Is(err, ErrDataIntegrity)
}

func IsIntegrationFailure(err error) bool {
	return errors.Is(err, ErrIntegrationFailure)
}

func IsDeterminismError(err error) bool {
	return errors.Is(err, ErrNonDeterministic) ||
		errors.Is(err, ErrHashMismatch)
}
