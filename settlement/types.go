/*
Package settlement implements the Acerto CLT settlement entity and lifecycle.

PURPOSE:
  A Settlement is one driver's payroll settlement for a period: a header
  (code, period, base salary, status, payment metadata) owning an ordered
  collection of day records. This package layers the entity, its status
  machine and the orchestration service on top of the payroll engine.

KEY RULES:
  - The settlement code is derived once at creation from the period start
    and the driver's first name; it is never re-derived on edit.
  - Totals are recomputed from the full day set on every mutation, never
    patched incrementally.
  - Dates are unique within one settlement's day set.
  - Day records become immutable once the status leaves "open"; only the
    header (notes, status, payment metadata) may change after that.

SEE ALSO:
  - lifecycle.go: status machine
  - service.go:   mutation orchestration and recomputation
  - code.go:      settlement code derivation
*/
package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frotaops/settlement-engine/payroll"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNotFound = errors.New("settlement not found")

	// ErrSettlementLocked is returned when a day-record mutation is attempted
	// after the settlement left the open status.
	ErrSettlementLocked = errors.New("settlement is no longer open: day records are immutable")

	// ErrInvalidStatusChange is returned for a transition the status machine
	// does not allow.
	ErrInvalidStatusChange = errors.New("invalid status change")

	// ErrPaymentDetailsRequired is returned when transitioning to paid
	// without a payment date and method.
	ErrPaymentDetailsRequired = errors.New("payment date and method are required to mark as paid")

	// ErrDuplicateDate is returned when adding a day whose date already
	// exists in the settlement.
	ErrDuplicateDate = errors.New("settlement already has a record for this date")

	ErrDayNotFound = errors.New("day record not found in settlement")
)

// =============================================================================
// SETTLEMENT - Header plus owned day records
// =============================================================================

// Payment records how and when a settlement was paid out.
type Payment struct {
	Date   payroll.Date
	Method string // e.g. "pix", "transferencia", "dinheiro"
}

// Settlement is a driver's labor settlement for a period.
type Settlement struct {
	ID         string
	Code       string // CLT-MMYYYY-FIRSTNAME, fixed at creation
	DriverID   payroll.DriverID
	DriverName string

	PeriodStart payroll.Date
	PeriodEnd   payroll.Date

	// BaseSalary is copied from the active rate config at creation time and
	// remains editable on the header while the settlement is open.
	BaseSalary decimal.Decimal

	EntryType payroll.EntryType
	Status    Status
	Notes     string
	Payment   *Payment

	Totals     payroll.SettlementTotals
	Deductions []payroll.Deduction

	Days []payroll.DayRecord

	CreatedAt time.Time
}

// IsOpen reports whether day records may still be mutated.
func (s *Settlement) IsOpen() bool { return s.Status == StatusOpen }

// DayByID finds a day record by its identifier.
func (s *Settlement) DayByID(dayID string) (int, bool) {
	for i := range s.Days {
		if s.Days[i].ID == dayID {
			return i, true
		}
	}
	return 0, false
}

// HasDate reports whether the settlement already holds a record for a date.
func (s *Settlement) HasDate(date payroll.Date) bool {
	for i := range s.Days {
		if s.Days[i].Date.Equal(date) {
			return true
		}
	}
	return false
}

// effectiveConfig returns the active rate config with the settlement's own
// (possibly edited) base salary substituted in, so gross totals and the
// night-premium base follow the header value.
func (s *Settlement) effectiveConfig(config payroll.RateConfig) payroll.RateConfig {
	config.BaseSalary = s.BaseSalary
	return config
}

// Validate checks the header invariants.
func (s *Settlement) Validate() error {
	if s.DriverID == "" {
		return &payroll.ValidationError{Field: "driver_id", Message: "is required"}
	}
	if s.DriverName == "" {
		return &payroll.ValidationError{Field: "driver_name", Message: "is required"}
	}
	if s.PeriodStart.IsZero() || s.PeriodEnd.IsZero() {
		return &payroll.ValidationError{Field: "period", Message: "start and end are required"}
	}
	if s.PeriodEnd.Before(s.PeriodStart) {
		return &payroll.ValidationError{Field: "period_end", Message: "must not be before period start"}
	}
	if s.BaseSalary.IsNegative() {
		return &payroll.ValidationError{Field: "base_salary", Message: "must not be negative"}
	}
	return nil
}

// =============================================================================
// STORE - Persistence contract
// =============================================================================

// Store persists settlements. Day-set writes are always whole-collection
// (delete-all-then-insert-all) so stored days can never drift from the
// aggregated header.
type Store interface {
	CreateSettlement(ctx context.Context, s *Settlement) error
	UpdateSettlement(ctx context.Context, s *Settlement, replaceDays bool) error
	GetSettlement(ctx context.Context, id string) (*Settlement, error)
	ListSettlements(ctx context.Context, driverID payroll.DriverID) ([]*Settlement, error)
	ListOpenSettlements(ctx context.Context) ([]*Settlement, error)
	DeleteSettlement(ctx context.Context, id string) error
}
