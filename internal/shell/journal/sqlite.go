package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/composeshift/internal/core/rollout"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultListLimit bounds ListRuns when no limit is given.
const DefaultListLimit = 20

// timeLayout has a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
}

// =============================================================================
// Store
// =============================================================================

// Store records runs in a SQLite database.
type Store struct {
	db *sqlx.DB
}

// Open opens the journal at dsn and migrates its schema.
// Use ":memory:" for a throwaway journal.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("Open", "", "failed to open database", ErrConnectionFailed)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("Open", "", fmt.Sprintf("failed to ping database: %v", err), ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("Open", "", err.Error(), ErrMigrationFailed)
	}

	return &Store{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// Rows
// =============================================================================

type runRow struct {
	ID           string `db:"id"`
	Mode         string `db:"mode"`
	Project      string `db:"project"`
	Prefix       string `db:"prefix"`
	Descriptor   string `db:"descriptor"`
	Succeeded    bool   `db:"succeeded"`
	Routes       string `db:"routes"`
	ErrorMessage string `db:"error_message"`
	StartedAt    string `db:"started_at"`
	FinishedAt   string `db:"finished_at"`
	UnitCount    int    `db:"unit_count"`
	FailedCount  int    `db:"failed_count"`
}

type unitRow struct {
	RunID        string `db:"run_id"`
	Position     int    `db:"position"`
	Service      string `db:"service"`
	Name         string `db:"name"`
	State        string `db:"state"`
	Reached      string `db:"reached"`
	ErrorMessage string `db:"error_message"`
}

const selectRuns = `
	SELECT r.*,
		(SELECT COUNT(*) FROM run_units u WHERE u.run_id = r.id) AS unit_count,
		(SELECT COUNT(*) FROM run_units u WHERE u.run_id = r.id AND u.state != 'done') AS failed_count
	FROM runs r`

// =============================================================================
// Operations
// =============================================================================

// RecordRun stores a run and its units in one transaction.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("RecordRun", run.ID, "failed to begin transaction", ErrTxFailed)
	}

	if err := recordRun(ctx, tx, run); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("RecordRun", run.ID, fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("RecordRun", run.ID, "failed to commit transaction", ErrTxFailed)
	}
	return nil
}

func recordRun(ctx context.Context, exec executor, run *Run) error {
	query := `
		INSERT INTO runs (
			id, mode, project, prefix, descriptor, succeeded, routes,
			error_message, started_at, finished_at
		) VALUES (
			:id, :mode, :project, :prefix, :descriptor, :succeeded, :routes,
			:error_message, :started_at, :finished_at
		)`

	row := map[string]any{
		"id":            run.ID,
		"mode":          string(run.Mode),
		"project":       run.Project,
		"prefix":        run.Prefix,
		"descriptor":    run.Descriptor,
		"succeeded":     run.Succeeded,
		"routes":        run.Routes,
		"error_message": run.Error,
		"started_at":    run.StartedAt.UTC().Format(timeLayout),
		"finished_at":   run.FinishedAt.UTC().Format(timeLayout),
	}

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: runs.id") {
			return NewStoreError("RecordRun", run.ID, "run already exists", ErrDuplicateID)
		}
		return NewStoreError("RecordRun", run.ID, err.Error(), err)
	}

	unitQuery := `
		INSERT INTO run_units (
			run_id, position, service, name, state, reached, error_message
		) VALUES (
			:run_id, :position, :service, :name, :state, :reached, :error_message
		)`

	for i, u := range run.Units {
		row := unitRow{
			RunID:        run.ID,
			Position:     i,
			Service:      u.Service,
			Name:         u.Name,
			State:        string(u.State),
			Reached:      string(u.Reached),
			ErrorMessage: u.Error,
		}
		if _, err := exec.NamedExecContext(ctx, unitQuery, row); err != nil {
			return NewStoreError("RecordRun", run.ID, fmt.Sprintf("unit %s: %v", u.Name, err), err)
		}
	}
	return nil
}

// ListRuns returns the most recent runs first, without their units.
// A limit of zero or less uses DefaultListLimit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var rows []runRow
	query := selectRuns + ` ORDER BY r.started_at DESC, r.id LIMIT ?`
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, NewStoreError("ListRuns", "", err.Error(), err)
	}

	runs := make([]Run, 0, len(rows))
	for _, row := range rows {
		run, err := rowToRun(&row)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

// GetRun returns a run with its units. id may be a unique prefix of a run ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewStoreError("GetRun", id, "run ID is required", ErrNotFound)
	}

	var rows []runRow
	query := selectRuns + ` WHERE r.id = ? OR r.id LIKE ? ESCAPE '\' ORDER BY r.id LIMIT 2`
	if err := s.db.SelectContext(ctx, &rows, query, id, escapeLike(id)+"%"); err != nil {
		return nil, NewStoreError("GetRun", id, err.Error(), err)
	}

	switch {
	case len(rows) == 0:
		return nil, NewStoreError("GetRun", id, "run not found", ErrNotFound)
	case len(rows) > 1 && rows[0].ID != id:
		return nil, NewStoreError("GetRun", id, "several runs match", ErrAmbiguousID)
	}

	run, err := rowToRun(&rows[0])
	if err != nil {
		return nil, err
	}

	var units []unitRow
	unitQuery := `SELECT * FROM run_units WHERE run_id = ? ORDER BY position`
	if err := s.db.SelectContext(ctx, &units, unitQuery, run.ID); err != nil {
		return nil, NewStoreError("GetRun", run.ID, err.Error(), err)
	}

	run.Units = make([]Unit, 0, len(units))
	for _, u := range units {
		run.Units = append(run.Units, Unit{
			Service: u.Service,
			Name:    u.Name,
			State:   rollout.State(u.State),
			Reached: rollout.State(u.Reached),
			Error:   u.ErrorMessage,
		})
	}
	return run, nil
}

func rowToRun(row *runRow) (*Run, error) {
	started, err := time.Parse(timeLayout, row.StartedAt)
	if err != nil {
		return nil, NewStoreError("rowToRun", row.ID, "invalid started_at", err)
	}
	finished, err := time.Parse(timeLayout, row.FinishedAt)
	if err != nil {
		return nil, NewStoreError("rowToRun", row.ID, "invalid finished_at", err)
	}

	return &Run{
		ID:          row.ID,
		Mode:        rollout.Mode(row.Mode),
		Project:     row.Project,
		Prefix:      row.Prefix,
		Descriptor:  row.Descriptor,
		Succeeded:   row.Succeeded,
		Routes:      row.Routes,
		Error:       row.ErrorMessage,
		StartedAt:   started,
		FinishedAt:  finished,
		UnitCount:   row.UnitCount,
		FailedCount: row.FailedCount,
	}, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
