package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const activityColumns = `id, athlete_id, name, type, start_date, start_date_local, timezone,
	distance, moving_time, elapsed_time, average_heartrate, max_heartrate, has_heartrate`

// UpsertActivity inserts or updates an activity
func (s *Store) UpsertActivity(ctx context.Context, a *Activity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activities (
			id, athlete_id, name, type, start_date, start_date_local, timezone,
			distance, moving_time, elapsed_time, average_heartrate, max_heartrate,
			has_heartrate, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			athlete_id = excluded.athlete_id,
			name = excluded.name,
			type = excluded.type,
			start_date = excluded.start_date,
			start_date_local = excluded.start_date_local,
			timezone = excluded.timezone,
			distance = excluded.distance,
			moving_time = excluded.moving_time,
			elapsed_time = excluded.elapsed_time,
			average_heartrate = excluded.average_heartrate,
			max_heartrate = excluded.max_heartrate,
			has_heartrate = excluded.has_heartrate,
			updated_at = CURRENT_TIMESTAMP
	`,
		a.ID, a.AthleteID, a.Name, a.Type,
		a.StartDate.Format(time.RFC3339), a.StartDateLocal.Format(time.RFC3339), a.Timezone,
		a.Distance, a.MovingTime, a.ElapsedTime, a.AverageHeartrate, a.MaxHeartrate,
		boolToInt(a.HasHeartrate),
	)
	if err != nil {
		return fmt.Errorf("upserting activity %d: %w", a.ID, err)
	}
	return nil
}

// GetActivity retrieves an activity by ID
func (s *Store) GetActivity(ctx context.Context, id int64) (*Activity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE id = ?`, id)
	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// ListActivities returns activities whose local start falls in [from, to),
// oldest first. A zero bound is open.
func (s *Store) ListActivities(ctx context.Context, from, to time.Time) ([]Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE 1 = 1`
	var args []any
	if !from.IsZero() {
		query += ` AND start_date_local >= ?`
		args = append(args, from.Format(time.RFC3339))
	}
	if !to.IsZero() {
		query += ` AND start_date_local < ?`
		args = append(args, to.Format(time.RFC3339))
	}
	query += ` ORDER BY start_date_local ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}

// CountActivities returns the total number of stored activities
func (s *Store) CountActivities(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities`).Scan(&count)
	return count, err
}

// LatestActivityStart returns the UTC start of the most recent activity,
// or the zero time when none are stored
func (s *Store) LatestActivityStart(ctx context.Context) (time.Time, error) {
	var start sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(start_date) FROM activities`).Scan(&start); err != nil {
		return time.Time{}, err
	}
	if !start.Valid {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, start.String)
}

// EarliestActivityDay returns the local start of the oldest activity,
// or the zero time when none are stored
func (s *Store) EarliestActivityDay(ctx context.Context) (time.Time, error) {
	var start sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MIN(start_date_local) FROM activities`).Scan(&start); err != nil {
		return time.Time{}, err
	}
	if !start.Valid {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, start.String)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (*Activity, error) {
	var a Activity
	var startDate, startDateLocal string
	var timezone sql.NullString
	var avgHR, maxHR sql.NullFloat64
	var hasHR int

	err := row.Scan(
		&a.ID, &a.AthleteID, &a.Name, &a.Type, &startDate, &startDateLocal, &timezone,
		&a.Distance, &a.MovingTime, &a.ElapsedTime, &avgHR, &maxHR, &hasHR,
	)
	if err != nil {
		return nil, err
	}

	if a.StartDate, err = time.Parse(time.RFC3339, startDate); err != nil {
		return nil, fmt.Errorf("parsing start_date for activity %d: %w", a.ID, err)
	}
	if a.StartDateLocal, err = time.Parse(time.RFC3339, startDateLocal); err != nil {
		return nil, fmt.Errorf("parsing start_date_local for activity %d: %w", a.ID, err)
	}
	a.Timezone = timezone.String
	if avgHR.Valid {
		a.AverageHeartrate = &avgHR.Float64
	}
	if maxHR.Valid {
		a.MaxHeartrate = &maxHR.Float64
	}
	a.HasHeartrate = hasHR == 1
	return &a, nil
}
