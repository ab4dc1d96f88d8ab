/*
service.go - Settlement orchestration service

PURPOSE:
  Coordinates the payroll engine, the rate-config resolver, the holiday
  list and the settlement store. Every day-set mutation goes through here
  so the recompute rule holds: edit -> full per-day recompute -> full
  aggregation -> whole-day-set persist, synchronously and atomically
  relative to the triggering call.

ORDERING:
  A single mutex serializes mutations, so no two recomputations for the
  same settlement can interleave. Settlements are independent of each
  other; the lock is only as wide as this service instance.

SEE ALSO:
  - payroll/aggregate.go: the reduction re-run on every mutation
  - lifecycle.go:         the status machine guarding day immutability
*/
package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/frotaops/settlement-engine/payroll"
)

// Service orchestrates settlement creation, mutation and lifecycle.
type Service struct {
	store    Store
	configs  payroll.RateConfigStore
	holidays payroll.HolidayStore
	log      *logrus.Logger

	mu sync.Mutex
}

func NewService(store Store, configs payroll.RateConfigStore, holidays payroll.HolidayStore, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{store: store, configs: configs, holidays: holidays, log: log}
}

// =============================================================================
// CREATION
// =============================================================================

// CreateParams carries everything needed to open a settlement.
type CreateParams struct {
	DriverID    payroll.DriverID
	DriverName  string
	PeriodStart payroll.Date
	PeriodEnd   payroll.Date
	Notes       string
	Days        []payroll.DayRecord
	Deductions  []payroll.Deduction
}

// Create opens a settlement: resolves the active rate config (hard
// precondition), copies the base salary onto the header, derives the code
// and aggregates the initial day set.
func (svc *Service) Create(ctx context.Context, params CreateParams) (*Settlement, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	config, err := svc.configs.GetActiveConfig(ctx, params.DriverID)
	if err != nil {
		return nil, err
	}

	s := &Settlement{
		ID:          uuid.NewString(),
		DriverID:    params.DriverID,
		DriverName:  params.DriverName,
		PeriodStart: params.PeriodStart,
		PeriodEnd:   params.PeriodEnd,
		BaseSalary:  config.BaseSalary,
		Status:      StatusOpen,
		Notes:       params.Notes,
		Deductions:  params.Deductions,
		Days:        params.Days,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s.Code = DeriveCode(s.PeriodStart, s.DriverName)

	seen := map[string]bool{}
	for i := range s.Days {
		key := s.Days[i].Date.String()
		if seen[key] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDate, key)
		}
		seen[key] = true
		if s.Days[i].ID == "" {
			s.Days[i].ID = uuid.NewString()
		}
	}

	if err := svc.recompute(s, config); err != nil {
		return nil, err
	}
	if err := svc.store.CreateSettlement(ctx, s); err != nil {
		return nil, err
	}

	svc.log.WithFields(logrus.Fields{
		"settlement": s.Code,
		"driver":     s.DriverID,
		"days":       len(s.Days),
		"entry_type": s.EntryType,
	}).Info("settlement created")
	return s, nil
}

// =============================================================================
// DAY-SET MUTATIONS (open settlements only)
// =============================================================================

// AddDays appends computed day records (from either ingestion adapter) to an
// open settlement and re-aggregates. Dates must be unique within the
// settlement; the whole batch is rejected on the first duplicate.
func (svc *Service) AddDays(ctx context.Context, id string, days []payroll.DayRecord) (*Settlement, error) {
	return svc.mutateDays(ctx, id, func(s *Settlement) error {
		for _, day := range days {
			if s.HasDate(day.Date) {
				return fmt.Errorf("%w: %s", ErrDuplicateDate, day.Date)
			}
			if day.ID == "" {
				day.ID = uuid.NewString()
			}
			s.Days = append(s.Days, day)
		}
		return nil
	})
}

// EditDayHours replaces the worked hours of one day and re-derives its whole
// breakdown. Partial updates of derived fields are not possible by design.
func (svc *Service) EditDayHours(ctx context.Context, id, dayID string, totalHours decimal.Decimal) (*Settlement, error) {
	return svc.mutateDays(ctx, id, func(s *Settlement) error {
		i, ok := s.DayByID(dayID)
		if !ok {
			return ErrDayNotFound
		}
		in := payroll.DayInput{
			Date:       s.Days[i].Date,
			TotalHours: totalHours,
			NightHours: s.Days[i].NightHours,
			DistanceKm: s.Days[i].DistanceKm,
			IsHoliday:  s.Days[i].IsHoliday,
		}
		if err := in.Validate(); err != nil {
			return err
		}
		s.Days[i].TotalHours = totalHours
		return nil
	})
}

// RemoveDay deletes a single day record before submission.
func (svc *Service) RemoveDay(ctx context.Context, id, dayID string) (*Settlement, error) {
	return svc.mutateDays(ctx, id, func(s *Settlement) error {
		i, ok := s.DayByID(dayID)
		if !ok {
			return ErrDayNotFound
		}
		s.Days = append(s.Days[:i], s.Days[i+1:]...)
		return nil
	})
}

// mutateDays loads an open settlement, applies the mutation, recomputes every
// day and the totals from scratch, and persists the whole day set.
func (svc *Service) mutateDays(ctx context.Context, id string, mutate func(*Settlement) error) (*Settlement, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	s, err := svc.store.GetSettlement(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.IsOpen() {
		return nil, ErrSettlementLocked
	}
	config, err := svc.configs.GetActiveConfig(ctx, s.DriverID)
	if err != nil {
		return nil, err
	}
	if err := mutate(s); err != nil {
		return nil, err
	}
	if err := svc.recompute(s, config); err != nil {
		return nil, err
	}
	if err := svc.store.UpdateSettlement(ctx, s, true); err != nil {
		return nil, err
	}
	return s, nil
}

// recompute re-derives every day record and the settlement totals using the
// header's base salary. Called on every mutation; never incremental.
func (svc *Service) recompute(s *Settlement, config payroll.RateConfig) error {
	effective := s.effectiveConfig(config)
	for i := range s.Days {
		payroll.Recompute(effective, &s.Days[i])
		if !s.Days[i].DayTotal.Equal(s.Days[i].ComponentSum()) {
			return fmt.Errorf("day total drifted from components on %s", s.Days[i].Date)
		}
	}
	s.EntryType = payroll.DeriveEntryType(s.Days)
	s.Totals = payroll.Aggregate(effective, s.Days, s.Deductions)
	return nil
}

// =============================================================================
// HEADER AND LIFECYCLE
// =============================================================================

// HeaderUpdate carries the editable header fields. Nil means "leave as is".
// BaseSalary and Deductions are only editable while the settlement is open.
type HeaderUpdate struct {
	Notes      *string
	BaseSalary *decimal.Decimal
	Deductions []payroll.Deduction
}

// UpdateHeader edits the settlement header. Base-salary or deduction changes
// trigger a full recompute of the day set and totals.
func (svc *Service) UpdateHeader(ctx context.Context, id string, update HeaderUpdate) (*Settlement, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	s, err := svc.store.GetSettlement(ctx, id)
	if err != nil {
		return nil, err
	}
	if update.Notes != nil {
		s.Notes = *update.Notes
	}

	moneyChanged := update.BaseSalary != nil || update.Deductions != nil
	if moneyChanged {
		if !s.IsOpen() {
			return nil, ErrSettlementLocked
		}
		if update.BaseSalary != nil {
			if update.BaseSalary.IsNegative() {
				return nil, &payroll.ValidationError{Field: "base_salary", Message: "must not be negative"}
			}
			s.BaseSalary = *update.BaseSalary
		}
		if update.Deductions != nil {
			s.Deductions = update.Deductions
		}
		config, err := svc.configs.GetActiveConfig(ctx, s.DriverID)
		if err != nil {
			return nil, err
		}
		if err := svc.recompute(s, config); err != nil {
			return nil, err
		}
	}

	if err := svc.store.UpdateSettlement(ctx, s, moneyChanged); err != nil {
		return nil, err
	}
	return s, nil
}

// Transition moves the settlement through its lifecycle. Header-only write:
// the day set is untouched.
func (svc *Service) Transition(ctx context.Context, id string, next Status, payment *Payment) (*Settlement, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	s, err := svc.store.GetSettlement(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Transition(next, payment); err != nil {
		return nil, err
	}
	if err := svc.store.UpdateSettlement(ctx, s, false); err != nil {
		return nil, err
	}
	svc.log.WithFields(logrus.Fields{"settlement": s.Code, "status": s.Status}).Info("settlement status changed")
	return s, nil
}

// Get returns one settlement with its day set.
func (svc *Service) Get(ctx context.Context, id string) (*Settlement, error) {
	return svc.store.GetSettlement(ctx, id)
}

// ListByDriver returns a driver's settlements.
func (svc *Service) ListByDriver(ctx context.Context, driverID payroll.DriverID) ([]*Settlement, error) {
	return svc.store.ListSettlements(ctx, driverID)
}

// Delete removes a settlement. Paid settlements cannot be deleted.
func (svc *Service) Delete(ctx context.Context, id string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	s, err := svc.store.GetSettlement(ctx, id)
	if err != nil {
		return err
	}
	if s.Status == StatusPaid {
		return ErrInvalidStatusChange
	}
	return svc.store.DeleteSettlement(ctx, id)
}

// =============================================================================
// HOLIDAY OVERLAY
// =============================================================================

// DeclareHoliday saves a holiday and retroactively applies it to every open
// settlement containing the date, recomputing the affected day records and
// totals. Idempotent per date: redeclaring updates the name only.
func (svc *Service) DeclareHoliday(ctx context.Context, holiday payroll.Holiday) (payroll.Holiday, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if holiday.Date.IsZero() {
		return payroll.Holiday{}, &payroll.ValidationError{Field: "date", Message: "is required"}
	}
	if holiday.Name == "" {
		return payroll.Holiday{}, &payroll.ValidationError{Field: "name", Message: "is required"}
	}
	if holiday.ID == "" {
		holiday.ID = uuid.NewString()
	}
	if err := svc.holidays.SaveHoliday(ctx, holiday); err != nil {
		return payroll.Holiday{}, err
	}

	if err := svc.overlayOpenSettlements(ctx, func(config payroll.RateConfig, days []*payroll.DayRecord) int {
		return payroll.ApplyHoliday(config, days, holiday)
	}); err != nil {
		return payroll.Holiday{}, err
	}
	return holiday, nil
}

// RevokeHoliday deletes a declared holiday and clears it from every open
// settlement containing the date.
func (svc *Service) RevokeHoliday(ctx context.Context, holidayID string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	holidays, err := svc.holidays.ListHolidays(ctx)
	if err != nil {
		return err
	}
	var revoked *payroll.Holiday
	for i := range holidays {
		if holidays[i].ID == holidayID {
			revoked = &holidays[i]
			break
		}
	}
	if revoked == nil {
		return &payroll.ValidationError{Field: "holiday_id", Message: "not found"}
	}
	if err := svc.holidays.DeleteHoliday(ctx, holidayID); err != nil {
		return err
	}

	return svc.overlayOpenSettlements(ctx, func(config payroll.RateConfig, days []*payroll.DayRecord) int {
		return payroll.RevokeHoliday(config, days, revoked.Date)
	})
}

// overlayOpenSettlements runs an overlay across all open settlements and
// persists (whole day set) only those actually affected. Settlements are
// independent: a failure on one (say, a driver whose config was never set)
// must not strand the others stale, so the loop continues and the
// per-settlement failures are joined into the returned error.
func (svc *Service) overlayOpenSettlements(ctx context.Context, overlay func(payroll.RateConfig, []*payroll.DayRecord) int) error {
	open, err := svc.store.ListOpenSettlements(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, s := range open {
		if err := svc.overlayOne(ctx, s, overlay); err != nil {
			svc.log.WithError(err).WithFields(logrus.Fields{"settlement": s.Code}).Warn("holiday overlay skipped settlement")
			errs = append(errs, fmt.Errorf("settlement %s: %w", s.Code, err))
		}
	}
	return errors.Join(errs...)
}

func (svc *Service) overlayOne(ctx context.Context, s *Settlement, overlay func(payroll.RateConfig, []*payroll.DayRecord) int) error {
	config, err := svc.configs.GetActiveConfig(ctx, s.DriverID)
	if err != nil {
		return err
	}
	effective := s.effectiveConfig(config)

	refs := make([]*payroll.DayRecord, len(s.Days))
	for i := range s.Days {
		refs[i] = &s.Days[i]
	}
	if overlay(effective, refs) == 0 {
		return nil
	}
	if err := svc.recompute(s, config); err != nil {
		return err
	}
	if err := svc.store.UpdateSettlement(ctx, s, true); err != nil {
		return err
	}
	svc.log.WithFields(logrus.Fields{"settlement": s.Code}).Info("holiday overlay applied")
	return nil
}
