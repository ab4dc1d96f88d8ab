/*
Package memory provides an in-memory implementation of the storage
interfaces for tests and local development.

PURPOSE:
  Implements payroll.RateConfigStore, payroll.HolidayStore and
  settlement.Store with plain maps behind a RWMutex. Values are copied on
  the way in and out so callers cannot alias stored state.

SEE ALSO:
  - store/sqlite/sqlite.go: the production implementation
*/
package memory

import (
	"context"
	"sync"

	"github.com/frotaops/settlement-engine/payroll"
	"github.com/frotaops/settlement-engine/settlement"
)

// Store is an in-memory implementation of all storage interfaces.
type Store struct {
	mu          sync.RWMutex
	configs     map[payroll.DriverID]payroll.RateConfig // active config per driver
	holidays    map[string]payroll.Holiday              // by holiday ID
	settlements map[string]*settlement.Settlement       // by settlement ID
}

func New() *Store {
	return &Store{
		configs:     make(map[payroll.DriverID]payroll.RateConfig),
		holidays:    make(map[string]payroll.Holiday),
		settlements: make(map[string]*settlement.Settlement),
	}
}

// =============================================================================
// RATE CONFIGS
// =============================================================================

func (s *Store) GetActiveConfig(ctx context.Context, driverID payroll.DriverID) (payroll.RateConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	config, ok := s.configs[driverID]
	if !ok {
		return payroll.RateConfig{}, &payroll.ConfigMissingError{DriverID: driverID}
	}
	return config, nil
}

func (s *Store) SaveConfig(ctx context.Context, config payroll.RateConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Upsert-by-driver: the new config is the single active row.
	config.Active = true
	s.configs[config.DriverID] = config
	return nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (s *Store) ListHolidays(ctx context.Context) ([]payroll.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]payroll.Holiday, 0, len(s.holidays))
	for _, h := range s.holidays {
		out = append(out, h)
	}
	return out, nil
}

func (s *Store) SaveHoliday(ctx context.Context, holiday payroll.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// One declaration per date: redeclaring a date replaces it.
	for id, existing := range s.holidays {
		if existing.Date.Equal(holiday.Date) && id != holiday.ID {
			delete(s.holidays, id)
		}
	}
	s.holidays[holiday.ID] = holiday
	return nil
}

func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.holidays, id)
	return nil
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

func (s *Store) CreateSettlement(ctx context.Context, st *settlement.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settlements[st.ID] = copySettlement(st)
	return nil
}

func (s *Store) UpdateSettlement(ctx context.Context, st *settlement.Settlement, replaceDays bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.settlements[st.ID]
	if !ok {
		return settlement.ErrNotFound
	}
	updated := copySettlement(st)
	if !replaceDays {
		updated.Days = existing.Days
	}
	s.settlements[st.ID] = updated
	return nil
}

func (s *Store) GetSettlement(ctx context.Context, id string) (*settlement.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.settlements[id]
	if !ok {
		return nil, settlement.ErrNotFound
	}
	return copySettlement(st), nil
}

func (s *Store) ListSettlements(ctx context.Context, driverID payroll.DriverID) ([]*settlement.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*settlement.Settlement
	for _, st := range s.settlements {
		if st.DriverID == driverID {
			out = append(out, copySettlement(st))
		}
	}
	return out, nil
}

func (s *Store) ListOpenSettlements(ctx context.Context) ([]*settlement.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*settlement.Settlement
	for _, st := range s.settlements {
		if st.Status == settlement.StatusOpen {
			out = append(out, copySettlement(st))
		}
	}
	return out, nil
}

func (s *Store) DeleteSettlement(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.settlements[id]; !ok {
		return settlement.ErrNotFound
	}
	delete(s.settlements, id)
	return nil
}

func copySettlement(st *settlement.Settlement) *settlement.Settlement {
	out := *st
	out.Days = make([]payroll.DayRecord, len(st.Days))
	copy(out.Days, st.Days)
	out.Deductions = make([]payroll.Deduction, len(st.Deductions))
	copy(out.Deductions, st.Deductions)
	if st.Payment != nil {
		payment := *st.Payment
		out.Payment = &payment
	}
	return &out
}
