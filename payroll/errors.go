/*
errors.go - Error taxonomy for the settlement engine

PURPOSE:
  All engine error types in one place. The pure calculation and aggregation
  functions never fail for valid inputs; only the configuration, ingestion
  and persistence boundaries produce these errors, and each carries enough
  context (field, stage, reason) for an actionable message. Failures are
  never silently defaulted to zero.

CATEGORIES:
  1. ErrConfigMissing     - no active rate config; hard precondition, blocks
                            all day-record creation (recoverable by the user
                            configuring rates)
  2. ErrUnsupportedFormat - ingestion input is not a recognized document or
                            image type (user-correctable)
  3. ErrExtractionFailed  - external extraction service error (retryable,
                            nothing partial is committed)
  4. ErrEmptyExtraction   - service succeeded but found no day entries
                            (non-fatal, manual entry remains available)
  5. ValidationError      - a day record or settlement header fails a
                            required-field/range check (field-scoped)

USAGE:
  Callers classify with errors.Is / errors.As:

    if errors.Is(err, payroll.ErrConfigMissing) { ... }
    var verr *payroll.ValidationError
    if errors.As(err, &verr) { ... verr.Field ... }
*/
package payroll

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConfigMissing is returned when a driver has no active rate config.
	// Downstream components must refuse to compute without one: defaulting
	// rates would corrupt payroll figures.
	ErrConfigMissing = errors.New("no active rate config for driver")

	// ErrUnsupportedFormat is returned when an ingestion input is neither a
	// paginated document nor a still image.
	ErrUnsupportedFormat = errors.New("unsupported input format")

	// ErrExtractionFailed is returned when the external extraction service
	// fails or times out. Retryable; no partial day set is committed.
	ErrExtractionFailed = errors.New("document extraction failed")

	// ErrEmptyExtraction is returned when extraction succeeds but yields no
	// day entries. Non-fatal: the caller reports "no data extracted".
	ErrEmptyExtraction = errors.New("no data extracted from document")

	// ErrValidation is the sentinel wrapped by every ValidationError.
	ErrValidation = errors.New("validation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigMissingError identifies the driver lacking an active config.
type ConfigMissingError struct {
	DriverID DriverID
}

func (e *ConfigMissingError) Error() string {
	return fmt.Sprintf("no active rate config for driver %s", e.DriverID)
}

func (e *ConfigMissingError) Unwrap() error { return ErrConfigMissing }

// ValidationError is a field-scoped check failure on a day record or
// settlement header. Blocks submission.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ExtractionError reports which pipeline stage failed so the caller can show
// an actionable message.
type ExtractionError struct {
	Stage  string // "conversion", "extraction" or "validation"
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("ingestion %s stage failed: %s", e.Stage, e.Reason)
}

func (e *ExtractionError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrExtractionFailed
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the failed operation might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrExtractionFailed)
}

// IsClientError returns true if the error is due to invalid or missing
// user input rather than a system fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrConfigMissing)
}
