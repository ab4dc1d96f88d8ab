/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements payroll.RateConfigStore, payroll.HolidayStore and
  settlement.Store on database/sql + mattn/go-sqlite3. The same SQL shapes
  apply to PostgreSQL with only dialect differences.

KEY TABLES:
  rate_configs:     one row per saved config; at most one active per driver
  holidays:         user-declared holidays, unique per date
  settlements:      settlement headers with aggregated totals
  settlement_days:  owned day records, unique (settlement_id, date)

INVARIANTS ENFORCED HERE:
  - Saving a rate config deactivates any prior active row for the driver,
    inside one transaction (upsert-by-driver, single active row).
  - Day-set writes are whole-collection: delete-all-then-insert-all inside
    the header's transaction, so persisted days can never drift from the
    aggregated header.

DECIMALS:
  Money and hours are stored as TEXT in decimal string form; SQLite REAL
  would reintroduce the float rounding the engine exists to avoid.

WAL MODE:
  Opened with WAL and foreign keys on, as usual for this kind of workload.

USAGE:
  store, err := sqlite.New("./data/acerto.db")   // or ":memory:"

SEE ALSO:
  - payroll/store.go:     RateConfigStore/HolidayStore contracts
  - settlement/types.go:  Store contract
  - store/memory:         in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/frotaops/settlement-engine/payroll"
	"github.com/frotaops/settlement-engine/settlement"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (and migrates) a SQLite store. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rate_configs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		driver_id TEXT NOT NULL,
		base_salary TEXT NOT NULL,
		per_diem_value TEXT NOT NULL,
		overtime_hour_rate TEXT NOT NULL,
		weekend_hour_rate TEXT NOT NULL,
		holiday_hour_rate TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	-- Single active config per driver
	CREATE UNIQUE INDEX IF NOT EXISTS idx_rate_configs_active
		ON rate_configs(driver_id) WHERE active = 1;

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settlements (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		driver_id TEXT NOT NULL,
		driver_name TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		base_salary TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		payment_date TEXT,
		payment_method TEXT,
		totals_json TEXT NOT NULL,
		deductions_json TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_settlements_driver ON settlements(driver_id);
	CREATE INDEX IF NOT EXISTS idx_settlements_status ON settlements(status);

	CREATE TABLE IF NOT EXISTS settlement_days (
		id TEXT PRIMARY KEY,
		settlement_id TEXT NOT NULL REFERENCES settlements(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		total_hours TEXT NOT NULL,
		normal_hours TEXT NOT NULL,
		overtime_hours TEXT NOT NULL,
		night_hours TEXT NOT NULL,
		distance_km TEXT NOT NULL,
		is_holiday INTEGER NOT NULL DEFAULT 0,
		holiday_name TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL,
		tracker_raw_payload BLOB,
		per_diem_value TEXT NOT NULL,
		overtime_value TEXT NOT NULL,
		weekend_premium_value TEXT NOT NULL,
		holiday_premium_value TEXT NOT NULL,
		night_premium_value TEXT NOT NULL,
		day_total TEXT NOT NULL
	);

	-- Dates are unique within one settlement
	CREATE UNIQUE INDEX IF NOT EXISTS idx_settlement_days_date
		ON settlement_days(settlement_id, date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RATE CONFIGS
// =============================================================================

func (s *Store) GetActiveConfig(ctx context.Context, driverID payroll.DriverID) (payroll.RateConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT driver_id, base_salary, per_diem_value, overtime_hour_rate,
		       weekend_hour_rate, holiday_hour_rate
		FROM rate_configs WHERE driver_id = ? AND active = 1`, string(driverID))

	var config payroll.RateConfig
	var base, perDiem, overtime, weekend, holiday string
	err := row.Scan(&config.DriverID, &base, &perDiem, &overtime, &weekend, &holiday)
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.RateConfig{}, &payroll.ConfigMissingError{DriverID: driverID}
	}
	if err != nil {
		return payroll.RateConfig{}, err
	}

	if config.BaseSalary, err = decimal.NewFromString(base); err != nil {
		return payroll.RateConfig{}, err
	}
	if config.PerDiemValue, err = decimal.NewFromString(perDiem); err != nil {
		return payroll.RateConfig{}, err
	}
	if config.OvertimeHourRate, err = decimal.NewFromString(overtime); err != nil {
		return payroll.RateConfig{}, err
	}
	if config.WeekendHourRate, err = decimal.NewFromString(weekend); err != nil {
		return payroll.RateConfig{}, err
	}
	if config.HolidayHourRate, err = decimal.NewFromString(holiday); err != nil {
		return payroll.RateConfig{}, err
	}
	config.Active = true
	return config, nil
}

func (s *Store) SaveConfig(ctx context.Context, config payroll.RateConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Deactivate any prior active config for the driver, then insert the
	// new one as the single active row.
	if _, err := tx.ExecContext(ctx,
		`UPDATE rate_configs SET active = 0 WHERE driver_id = ? AND active = 1`,
		string(config.DriverID)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rate_configs
			(driver_id, base_salary, per_diem_value, overtime_hour_rate,
			 weekend_hour_rate, holiday_hour_rate, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?)`,
		string(config.DriverID),
		config.BaseSalary.String(),
		config.PerDiemValue.String(),
		config.OvertimeHourRate.String(),
		config.WeekendHourRate.String(),
		config.HolidayHourRate.String(),
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (s *Store) ListHolidays(ctx context.Context) ([]payroll.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, date, name FROM holidays ORDER BY date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.Holiday
	for rows.Next() {
		var h payroll.Holiday
		var date string
		if err := rows.Scan(&h.ID, &date, &h.Name); err != nil {
			return nil, err
		}
		if h.Date, err = payroll.ParseDate(date); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) SaveHoliday(ctx context.Context, holiday payroll.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// One declaration per date: redeclaring replaces the row, adopting the
	// new declaration's ID so the caller's handle stays revocable.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (id, date, name) VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET id = excluded.id, name = excluded.name`,
		holiday.ID, holiday.Date.String(), holiday.Name)
	return err
}

func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM holidays WHERE id = ?`, id)
	return err
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

func (s *Store) CreateSettlement(ctx context.Context, st *settlement.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertHeader(ctx, tx, st); err != nil {
		return err
	}
	if err := insertDays(ctx, tx, st); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) UpdateSettlement(ctx context.Context, st *settlement.Settlement, replaceDays bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := updateHeader(ctx, tx, st); err != nil {
		return err
	}
	if replaceDays {
		// Whole-collection replacement: never a partial day-set update.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM settlement_days WHERE settlement_id = ?`, st.ID); err != nil {
			return err
		}
		if err := insertDays(ctx, tx, st); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) GetSettlement(ctx context.Context, id string) (*settlement.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := s.scanHeader(ctx, `SELECT `+headerColumns+` FROM settlements WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if err := s.loadDays(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) ListSettlements(ctx context.Context, driverID payroll.DriverID) ([]*settlement.Settlement, error) {
	return s.list(ctx, `SELECT `+headerColumns+` FROM settlements WHERE driver_id = ? ORDER BY period_start DESC`, string(driverID))
}

func (s *Store) ListOpenSettlements(ctx context.Context) ([]*settlement.Settlement, error) {
	return s.list(ctx, `SELECT `+headerColumns+` FROM settlements WHERE status = ? ORDER BY period_start DESC`, string(settlement.StatusOpen))
}

func (s *Store) DeleteSettlement(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM settlements WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return settlement.ErrNotFound
	}
	return nil
}

// =============================================================================
// ROW MAPPING
// =============================================================================

const headerColumns = `id, code, driver_id, driver_name, period_start, period_end,
	base_salary, entry_type, status, notes, payment_date, payment_method,
	totals_json, deductions_json, created_at`

func insertHeader(ctx context.Context, tx *sql.Tx, st *settlement.Settlement) error {
	totals, deductions, err := marshalAggregates(st)
	if err != nil {
		return err
	}
	paymentDate, paymentMethod := paymentColumns(st)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO settlements
			(id, code, driver_id, driver_name, period_start, period_end,
			 base_salary, entry_type, status, notes, payment_date, payment_method,
			 totals_json, deductions_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.Code, string(st.DriverID), st.DriverName,
		st.PeriodStart.String(), st.PeriodEnd.String(),
		st.BaseSalary.String(), string(st.EntryType), string(st.Status), st.Notes,
		paymentDate, paymentMethod, totals, deductions,
		st.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

func updateHeader(ctx context.Context, tx *sql.Tx, st *settlement.Settlement) error {
	totals, deductions, err := marshalAggregates(st)
	if err != nil {
		return err
	}
	paymentDate, paymentMethod := paymentColumns(st)
	res, err := tx.ExecContext(ctx, `
		UPDATE settlements SET
			base_salary = ?, entry_type = ?, status = ?, notes = ?,
			payment_date = ?, payment_method = ?, totals_json = ?, deductions_json = ?
		WHERE id = ?`,
		st.BaseSalary.String(), string(st.EntryType), string(st.Status), st.Notes,
		paymentDate, paymentMethod, totals, deductions, st.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return settlement.ErrNotFound
	}
	return nil
}

func insertDays(ctx context.Context, tx *sql.Tx, st *settlement.Settlement) error {
	for i := range st.Days {
		d := &st.Days[i]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO settlement_days
				(id, settlement_id, date, total_hours, normal_hours, overtime_hours,
				 night_hours, distance_km, is_holiday, holiday_name, source,
				 tracker_raw_payload, per_diem_value, overtime_value,
				 weekend_premium_value, holiday_premium_value, night_premium_value,
				 day_total)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, st.ID, d.Date.String(),
			d.TotalHours.String(), d.NormalHours.String(), d.OvertimeHours.String(),
			d.NightHours.String(), d.DistanceKm.String(),
			boolToInt(d.IsHoliday), d.HolidayName, string(d.Source), d.TrackerRawPayload,
			d.PerDiemValue.String(), d.OvertimeValue.String(),
			d.WeekendPremiumValue.String(), d.HolidayPremiumValue.String(),
			d.NightPremiumValue.String(), d.DayTotal.String(),
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) scanHeader(ctx context.Context, query string, args ...any) (*settlement.Settlement, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	st, err := scanHeaderRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, settlement.ErrNotFound
	}
	return st, err
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*settlement.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*settlement.Settlement
	for rows.Next() {
		st, err := scanHeaderRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, st := range out {
		if err := s.loadDays(ctx, st); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanHeaderRow(scan func(...any) error) (*settlement.Settlement, error) {
	var st settlement.Settlement
	var driverID, periodStart, periodEnd, baseSalary, entryType, status string
	var paymentDate, paymentMethod sql.NullString
	var totalsJSON, deductionsJSON, createdAt string

	err := scan(&st.ID, &st.Code, &driverID, &st.DriverName, &periodStart, &periodEnd,
		&baseSalary, &entryType, &status, &st.Notes, &paymentDate, &paymentMethod,
		&totalsJSON, &deductionsJSON, &createdAt)
	if err != nil {
		return nil, err
	}

	st.DriverID = payroll.DriverID(driverID)
	st.EntryType = payroll.EntryType(entryType)
	st.Status = settlement.Status(status)
	if st.PeriodStart, err = payroll.ParseDate(periodStart); err != nil {
		return nil, err
	}
	if st.PeriodEnd, err = payroll.ParseDate(periodEnd); err != nil {
		return nil, err
	}
	if st.BaseSalary, err = decimal.NewFromString(baseSalary); err != nil {
		return nil, err
	}
	if paymentDate.Valid && paymentMethod.Valid {
		date, err := payroll.ParseDate(paymentDate.String)
		if err != nil {
			return nil, err
		}
		st.Payment = &settlement.Payment{Date: date, Method: paymentMethod.String}
	}
	if err := json.Unmarshal([]byte(totalsJSON), &st.Totals); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(deductionsJSON), &st.Deductions); err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		st.CreatedAt = t
	}
	return &st, nil
}

func (s *Store) loadDays(ctx context.Context, st *settlement.Settlement) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, total_hours, normal_hours, overtime_hours, night_hours,
		       distance_km, is_holiday, holiday_name, source, tracker_raw_payload,
		       per_diem_value, overtime_value, weekend_premium_value,
		       holiday_premium_value, night_premium_value, day_total
		FROM settlement_days WHERE settlement_id = ? ORDER BY date`, st.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	st.Days = nil
	for rows.Next() {
		var d payroll.DayRecord
		var date, source string
		var isHoliday int
		var cols [11]string
		if err := rows.Scan(&d.ID, &date, &cols[0], &cols[1], &cols[2], &cols[3],
			&cols[4], &isHoliday, &d.HolidayName, &source, &d.TrackerRawPayload,
			&cols[5], &cols[6], &cols[7], &cols[8], &cols[9], &cols[10]); err != nil {
			return err
		}
		if d.Date, err = payroll.ParseDate(date); err != nil {
			return err
		}
		d.IsHoliday = isHoliday != 0
		d.Source = payroll.DaySource(source)

		fields := []*decimal.Decimal{
			&d.TotalHours, &d.NormalHours, &d.OvertimeHours, &d.NightHours,
			&d.DistanceKm, &d.PerDiemValue, &d.OvertimeValue,
			&d.WeekendPremiumValue, &d.HolidayPremiumValue, &d.NightPremiumValue,
			&d.DayTotal,
		}
		for i, field := range fields {
			if *field, err = decimal.NewFromString(cols[i]); err != nil {
				return err
			}
		}
		st.Days = append(st.Days, d)
	}
	return rows.Err()
}

func marshalAggregates(st *settlement.Settlement) (totals, deductions string, err error) {
	t, err := json.Marshal(st.Totals)
	if err != nil {
		return "", "", err
	}
	deds := st.Deductions
	if deds == nil {
		deds = []payroll.Deduction{}
	}
	d, err := json.Marshal(deds)
	if err != nil {
		return "", "", err
	}
	return string(t), string(d), nil
}

func paymentColumns(st *settlement.Settlement) (date, method sql.NullString) {
	if st.Payment != nil {
		date = sql.NullString{String: st.Payment.Date.String(), Valid: true}
		method = sql.NullString{String: st.Payment.Method, Valid: true}
	}
	return date, method
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
