package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for schedule persistence.
type Repository interface {
	// List returns every schedule in creation order.
	List(ctx context.Context) ([]Schedule, error)
	// Create inserts s and sets its ID.
	Create(ctx context.Context, s *Schedule) error
	SetEnabled(ctx context.Context, id int64, enabled bool) error
	Delete(ctx context.Context, id int64) error
	SetLastFired(ctx context.Context, id int64, minute time.Time) error

	CreateRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context, scheduleID int64, limit int) ([]Run, error)
}

const scheduleColumns = `id, hour, minute, action, enabled, last_fired_at, created_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List retrieves all schedules ordered by id, which is creation order.
func (r *SQLiteRepository) List(ctx context.Context) ([]Schedule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+scheduleColumns+` FROM schedules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying schedules: %w", err)
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schedules: %w", err)
	}
	return out, nil
}

// Create inserts a new schedule. The id comes from AUTOINCREMENT and is
// never reused.
func (r *SQLiteRepository) Create(ctx context.Context, s *Schedule) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	ts := s.CreatedAt.UTC().Format(time.RFC3339Nano)

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO schedules (hour, minute, action, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.Time.Hour, s.Time.Minute, string(s.Action), boolToInt(s.Enabled), ts, ts,
	)
	if err != nil {
		return fmt.Errorf("inserting schedule: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading schedule id: %w", err)
	}
	s.ID = id
	return nil
}

// SetEnabled updates the enabled flag.
func (r *SQLiteRepository) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	return r.execOne(ctx, "updating schedule",
		`UPDATE schedules SET enabled = ?, updated_at = ? WHERE id = ?`,
		boolToInt(enabled), time.Now().UTC().Format(time.RFC3339Nano), id)
}

// Delete removes a schedule. Its runs go with it.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, "deleting schedule", `DELETE FROM schedules WHERE id = ?`, id)
}

// SetLastFired records the minute a schedule last fired.
func (r *SQLiteRepository) SetLastFired(ctx context.Context, id int64, minute time.Time) error {
	return r.execOne(ctx, "marking schedule fired",
		`UPDATE schedules SET last_fired_at = ? WHERE id = ?`,
		minute.UTC().Format(time.RFC3339), id)
}

func (r *SQLiteRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateRun inserts a run record and sets its ID.
func (r *SQLiteRepository) CreateRun(ctx context.Context, run *Run) error {
	failed := run.FailedDevices
	if failed == nil {
		failed = []string{}
	}
	failedJSON, err := json.Marshal(failed)
	if err != nil {
		return fmt.Errorf("marshalling failed devices: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO schedule_runs (
			schedule_id, fired_at, action, success, devices_total, devices_failed, failed_devices
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ScheduleID,
		run.FiredAt.UTC().Format(time.RFC3339),
		string(run.Action),
		boolToInt(run.Success),
		run.DevicesTotal,
		run.DevicesFailed,
		string(failedJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting schedule run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading run id: %w", err)
	}
	run.ID = id
	return nil
}

// ListRuns returns the most recent runs of a schedule, newest first.
// A limit of zero or less returns all of them.
func (r *SQLiteRepository) ListRuns(ctx context.Context, scheduleID int64, limit int) ([]Run, error) {
	query := `
		SELECT id, schedule_id, fired_at, action, success, devices_total, devices_failed, failed_devices
		FROM schedule_runs WHERE schedule_id = ? ORDER BY fired_at DESC, id DESC`
	args := []any{scheduleID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying schedule runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			run        Run
			firedAt    string
			action     string
			success    int
			failedJSON string
		)
		if err := rows.Scan(&run.ID, &run.ScheduleID, &firedAt, &action, &success,
			&run.DevicesTotal, &run.DevicesFailed, &failedJSON); err != nil {
			return nil, fmt.Errorf("scanning schedule run: %w", err)
		}
		if run.FiredAt, err = time.Parse(time.RFC3339, firedAt); err != nil {
			return nil, fmt.Errorf("parsing fired_at: %w", err)
		}
		if err := json.Unmarshal([]byte(failedJSON), &run.FailedDevices); err != nil {
			return nil, fmt.Errorf("unmarshalling failed devices: %w", err)
		}
		run.Action = Action(action)
		run.Success = success != 0
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schedule runs: %w", err)
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (Schedule, error) {
	var (
		s         Schedule
		action    string
		enabled   int
		lastFired sql.NullString
		createdAt string
	)
	err := row.Scan(&s.ID, &s.Time.Hour, &s.Time.Minute, &action, &enabled, &lastFired, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Schedule{}, ErrNotFound
		}
		return Schedule{}, fmt.Errorf("scanning schedule: %w", err)
	}

	s.Action = Action(action)
	s.Enabled = enabled != 0
	if s.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Schedule{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if lastFired.Valid {
		if s.lastFired, err = time.Parse(time.RFC3339, lastFired.String); err != nil {
			return Schedule{}, fmt.Errorf("parsing last_fired_at: %w", err)
		}
	}
	return s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
