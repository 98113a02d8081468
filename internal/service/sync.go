package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"formcoach/internal/analysis"
	"formcoach/internal/store"
	"formcoach/internal/strava"
)

// ActivityFetcher pages through the provider's activity list. On a failed
// page it returns what it fetched so far alongside the error.
type ActivityFetcher interface {
	GetAllActivities(ctx context.Context, after time.Time, onProgress func(fetched int)) ([]strava.Activity, error)
}

// SyncService orchestrates syncing activities from Strava into the store
type SyncService struct {
	fetcher ActivityFetcher
	store   *store.Store
	logger  *slog.Logger
	now     func() time.Time
}

// NewSyncService creates a new sync service
func NewSyncService(fetcher ActivityFetcher, st *store.Store, logger *slog.Logger) *SyncService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SyncService{
		fetcher: fetcher,
		store:   st,
		logger:  logger,
		now:     time.Now,
	}
}

// SyncResult contains the results of a sync operation
type SyncResult struct {
	RunID             string    `json:"runId"`
	After             time.Time `json:"after"`
	ActivitiesFetched int       `json:"activitiesFetched"`
	ActivitiesStored  int       `json:"activitiesStored"`
	WithHeartRate     int       `json:"withHeartRate"`
	// Earliest local day touched; cached load history from here on was dropped
	InvalidatedFrom string  `json:"invalidatedFrom,omitempty"`
	Errors          []error `json:"-"`
}

// Partial reports whether the run kept data despite errors
func (r *SyncResult) Partial() bool {
	return len(r.Errors) > 0
}

// Sync fetches activities started after since and stores them. A zero since
// resumes from the last recorded sync. Fetch and per-activity storage errors
// are collected in the result rather than aborting; the returned error is
// reserved for failures of the run bookkeeping itself.
func (s *SyncService) Sync(ctx context.Context, since time.Time) (*SyncResult, error) {
	after := since
	if after.IsZero() {
		last, err := s.store.GetSyncState(ctx, store.KeyLastActivitySync)
		if err != nil {
			return nil, fmt.Errorf("reading sync state: %w", err)
		}
		if last != "" {
			if after, err = time.Parse(time.RFC3339, last); err != nil {
				s.logger.Warn("ignoring unreadable sync marker", "value", last, "error", err)
				after = time.Time{}
			}
		}
	}

	result := &SyncResult{RunID: uuid.NewString(), After: after}
	logger := s.logger.With("run", result.RunID)
	if err := s.store.StartSyncRun(ctx, result.RunID, s.now()); err != nil {
		return nil, err
	}
	logger.Info("sync started", "after", after)

	activities, fetchErr := s.fetcher.GetAllActivities(ctx, after, func(fetched int) {
		logger.Debug("activities fetched", "count", fetched)
	})
	if fetchErr != nil {
		result.Errors = append(result.Errors, fetchErr)
		logger.Warn("fetch incomplete, keeping partial data", "fetched", len(activities), "error", fetchErr)
	}
	result.ActivitiesFetched = len(activities)

	var latest time.Time
	for _, a := range activities {
		sa := convertActivity(a)
		if err := s.store.UpsertActivity(ctx, sa); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("storing activity %d: %w", a.ID, err))
			continue
		}
		result.ActivitiesStored++
		if sa.HasHeartrate {
			result.WithHeartRate++
		}
		if sa.StartDate.After(latest) {
			latest = sa.StartDate
		}
		day := analysis.FormatDate(sa.StartDateLocal)
		if result.InvalidatedFrom == "" || day < result.InvalidatedFrom {
			result.InvalidatedFrom = day
		}
	}

	if result.InvalidatedFrom != "" {
		n, err := s.store.DeleteLoadSnapshotsFrom(ctx, result.InvalidatedFrom)
		if err != nil {
			result.Errors = append(result.Errors, err)
		} else if n > 0 {
			logger.Debug("load history invalidated", "from", result.InvalidatedFrom, "days", n)
		}
	}

	if !latest.IsZero() {
		if err := s.store.SetSyncState(ctx, store.KeyLastActivitySync, latest.UTC().Format(time.RFC3339)); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("saving sync marker: %w", err))
		}
	}

	finished := s.now()
	run := &store.SyncRun{
		ID:         result.RunID,
		FinishedAt: &finished,
		Fetched:    result.ActivitiesFetched,
		Stored:     result.ActivitiesStored,
	}
	if err := errors.Join(result.Errors...); err != nil {
		run.Error = err.Error()
	}
	if err := s.store.FinishSyncRun(ctx, run); err != nil {
		return result, err
	}

	logger.Info("sync finished",
		"fetched", result.ActivitiesFetched,
		"stored", result.ActivitiesStored,
		"errors", len(result.Errors))
	return result, nil
}

// convertActivity maps a Strava summary onto the stored representation.
// Strava's start_date_local carries the athlete's wall clock with a Z
// suffix, so it is kept as-is and its calendar day is the training day.
func convertActivity(a strava.Activity) *store.Activity {
	avg, max := a.HeartRate()
	local := a.StartDateLocal
	if local.IsZero() {
		local = a.StartDate
	}
	return &store.Activity{
		ID:               a.ID,
		AthleteID:        a.Athlete.ID,
		Name:             a.Name,
		Type:             a.ActivityType(),
		StartDate:        a.StartDate.UTC(),
		StartDateLocal:   local,
		Timezone:         a.Timezone,
		Distance:         a.Distance,
		MovingTime:       a.MovingTime,
		ElapsedTime:      a.ElapsedTime,
		AverageHeartrate: avg,
		MaxHeartrate:     max,
		HasHeartrate:     avg != nil,
	}
}
