package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Sync state keys
const (
	KeyLastActivitySync = "last_activity_sync"
	KeyLastSyncRun      = "last_sync_run"
	KeyLoadModel        = "load_model"      // settings the stored daily_load rows were computed under
	KeyLoadGeneration   = "load_generation" // bumped on every daily_load invalidation
)

// GetSyncState retrieves a sync state value by key
// Returns empty string if key doesn't exist
func (s *Store) GetSyncState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM sync_state WHERE key = ?
	`, key).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetSyncState sets a sync state value
func (s *Store) SetSyncState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// StartSyncRun records the beginning of a sync attempt
func (s *Store) StartSyncRun(ctx context.Context, id string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, started_at) VALUES (?, ?)
	`, id, startedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("starting sync run: %w", err)
	}
	return s.SetSyncState(ctx, KeyLastSyncRun, id)
}

// FinishSyncRun records the outcome of a sync attempt
func (s *Store) FinishSyncRun(ctx context.Context, run *SyncRun) error {
	finished := time.Now().UTC()
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}
	var errText sql.NullString
	if run.Error != "" {
		errText = sql.NullString{String: run.Error, Valid: true}
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE sync_runs
		SET finished_at = ?, fetched = ?, stored = ?, error = ?
		WHERE id = ?
	`, finished.Format(time.RFC3339), run.Fetched, run.Stored, errText, run.ID)
	if err != nil {
		return fmt.Errorf("finishing sync run: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSyncRun retrieves a sync run by ID
func (s *Store) GetSyncRun(ctx context.Context, id string) (*SyncRun, error) {
	var run SyncRun
	var startedAt string
	var finishedAt, errText sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, fetched, stored, error
		FROM sync_runs WHERE id = ?
	`, id).Scan(&run.ID, &startedAt, &finishedAt, &run.Fetched, &run.Stored, &errText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if run.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	if finishedAt.Valid {
		t, err := time.Parse(time.RFC3339, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing finished_at: %w", err)
		}
		run.FinishedAt = &t
	}
	run.Error = errText.String
	return &run, nil
}

// LastSyncRun returns the most recently started sync run, or ErrNotFound
// when no sync has run yet
func (s *Store) LastSyncRun(ctx context.Context) (*SyncRun, error) {
	id, err := s.GetSyncState(ctx, KeyLastSyncRun)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrNotFound
	}
	return s.GetSyncRun(ctx, id)
}
