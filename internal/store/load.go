package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// ErrStaleLoad is returned by SaveLoadSnapshots when stored history was
// invalidated after the caller read the load generation
var ErrStaleLoad = errors.New("load history changed during computation")

// LoadSpan describes the stored load history
type LoadSpan struct {
	First string `json:"first,omitempty"`
	Last  string `json:"last,omitempty"`
	Days  int    `json:"days"`
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// LoadGeneration returns the daily_load invalidation counter. It advances
// whenever stored snapshots are deleted.
func (s *Store) LoadGeneration(ctx context.Context) (int64, error) {
	return loadGeneration(ctx, s.db)
}

func loadGeneration(ctx context.Context, q rowQuerier) (int64, error) {
	var v string
	err := q.QueryRowContext(ctx, `SELECT value FROM sync_state WHERE key = ?`, KeyLoadGeneration).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func bumpLoadGeneration(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, '1', CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = CAST(value AS INTEGER) + 1,
			updated_at = CURRENT_TIMESTAMP
	`, KeyLoadGeneration)
	if err != nil {
		return fmt.Errorf("advancing load generation: %w", err)
	}
	return nil
}

// SaveLoadSnapshots upserts daily load points in a single transaction.
// generation is the value of LoadGeneration read before the points were
// computed; if snapshots were deleted since, nothing is written and
// ErrStaleLoad is returned.
func (s *Store) SaveLoadSnapshots(ctx context.Context, generation int64, snapshots []LoadSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_load (date, tss, ctl, atl, tsb, raw_ctl, raw_atl, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(date) DO UPDATE SET
			tss = excluded.tss,
			ctl = excluded.ctl,
			atl = excluded.atl,
			tsb = excluded.tsb,
			raw_ctl = excluded.raw_ctl,
			raw_atl = excluded.raw_atl,
			computed_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, sn := range snapshots {
		if _, err := stmt.ExecContext(ctx, sn.Date, sn.TSS, sn.CTL, sn.ATL, sn.TSB, sn.RawCTL, sn.RawATL); err != nil {
			return fmt.Errorf("saving load for %s: %w", sn.Date, err)
		}
	}

	// The writes above hold the write lock, so no delete can slip in
	// between this check and the commit.
	current, err := loadGeneration(ctx, tx)
	if err != nil {
		return fmt.Errorf("reading load generation: %w", err)
	}
	if current != generation {
		return ErrStaleLoad
	}
	return tx.Commit()
}

// LoadSnapshotBefore returns the latest snapshot dated strictly before date
func (s *Store) LoadSnapshotBefore(ctx context.Context, date string) (*LoadSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT date, tss, ctl, atl, tsb, raw_ctl, raw_atl
		FROM daily_load
		WHERE date < ?
		ORDER BY date DESC
		LIMIT 1
	`, date)

	var sn LoadSnapshot
	err := row.Scan(&sn.Date, &sn.TSS, &sn.CTL, &sn.ATL, &sn.TSB, &sn.RawCTL, &sn.RawATL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sn, nil
}

// LoadHistorySpan returns the first and last stored days and the row count
func (s *Store) LoadHistorySpan(ctx context.Context) (LoadSpan, error) {
	var span LoadSpan
	var first, last sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT MIN(date), MAX(date), COUNT(*) FROM daily_load
	`).Scan(&first, &last, &span.Days)
	if err != nil {
		return LoadSpan{}, fmt.Errorf("querying daily load: %w", err)
	}
	span.First, span.Last = first.String, last.String
	return span, nil
}

// DeleteLoadSnapshotsFrom removes snapshots on or after date and advances
// the load generation. Called when an activity lands inside
// already-computed history. An empty date clears everything.
func (s *Store) DeleteLoadSnapshotsFrom(ctx context.Context, date string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	n, err := deleteLoadFrom(ctx, tx, date)
	if err != nil {
		return 0, err
	}
	if err := bumpLoadGeneration(ctx, tx); err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func deleteLoadFrom(ctx context.Context, tx *sql.Tx, date string) (int64, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM daily_load WHERE date >= ?`, date)
	if err != nil {
		return 0, fmt.Errorf("deleting daily load: %w", err)
	}
	return result.RowsAffected()
}

// ResetLoadHistory clears stored snapshots when model differs from the
// model they were computed under, and records model as current. It
// reports whether a reset happened.
func (s *Store) ResetLoadHistory(ctx context.Context, model string) (bool, error) {
	stored, err := s.GetSyncState(ctx, KeyLoadModel)
	if err != nil {
		return false, fmt.Errorf("reading load model: %w", err)
	}
	if stored == model {
		return false, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := deleteLoadFrom(ctx, tx, ""); err != nil {
		return false, err
	}
	if err := bumpLoadGeneration(ctx, tx); err != nil {
		return false, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, KeyLoadModel, model)
	if err != nil {
		return false, fmt.Errorf("saving load model: %w", err)
	}
	return true, tx.Commit()
}
