/*
store.go - Persistence interfaces for rate configs and holidays

PURPOSE:
  Interface definitions the engine depends on. Implementations live in
  store/sqlite (production) and store/memory (tests).

CONTRACTS:
  RateConfigStore.GetActiveConfig is the resolver from the engine's point
  of view: it either returns the single active config for a driver or fails
  with ErrConfigMissing. There is no soft default.

  RateConfigStore.SaveConfig is an upsert-by-driver: persisting a new config
  deactivates any prior active row for the same driver, keeping the
  single-active-row invariant.

SEE ALSO:
  - store/sqlite/sqlite.go: SQLite implementation
  - store/memory/memory.go: in-memory implementation for tests
*/
package payroll

import "context"

// RateConfigStore resolves and persists per-driver rate configurations.
type RateConfigStore interface {
	// GetActiveConfig returns the single active config for the driver.
	// Fails with an error wrapping ErrConfigMissing when none exists.
	GetActiveConfig(ctx context.Context, driverID DriverID) (RateConfig, error)

	// SaveConfig validates and persists a config as the driver's active one,
	// deactivating any prior active config for the same driver.
	SaveConfig(ctx context.Context, config RateConfig) error
}

// HolidayStore persists the user-declared holiday list.
type HolidayStore interface {
	ListHolidays(ctx context.Context) ([]Holiday, error)
	SaveHoliday(ctx context.Context, holiday Holiday) error
	DeleteHoliday(ctx context.Context, id string) error
}
