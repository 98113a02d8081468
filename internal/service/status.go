package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"formcoach/internal/analysis"
	"formcoach/internal/store"
)

// Status describes what is stored locally: the activity range, the last
// sync run and how much load history is cached
type Status struct {
	Activities    int            `json:"activities"`
	FirstActivity string         `json:"firstActivity,omitempty"`
	LastActivity  *time.Time     `json:"lastActivity,omitempty"`
	LastSync      *store.SyncRun `json:"lastSync,omitempty"`
	LoadHistory   store.LoadSpan `json:"loadHistory"`
	LoadModel     string         `json:"loadModel"`
}

// Status reports the local data state. LastSync is nil before the first sync.
func (s *FormService) Status(ctx context.Context) (*Status, error) {
	count, err := s.store.CountActivities(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting activities: %w", err)
	}
	st := &Status{Activities: count, LoadModel: s.model}

	first, err := s.store.EarliestActivityDay(ctx)
	if err != nil {
		return nil, fmt.Errorf("finding first activity: %w", err)
	}
	if !first.IsZero() {
		st.FirstActivity = analysis.FormatDate(first)
	}
	last, err := s.store.LatestActivityStart(ctx)
	if err != nil {
		return nil, fmt.Errorf("finding latest activity: %w", err)
	}
	if !last.IsZero() {
		st.LastActivity = &last
	}

	run, err := s.store.LastSyncRun(ctx)
	switch {
	case err == nil:
		st.LastSync = run
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("loading last sync run: %w", err)
	}

	if st.LoadHistory, err = s.store.LoadHistorySpan(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

// ActivityStress scores one stored activity with the configured athlete.
// A missing activity is a ValidationError on id.
func (s *FormService) ActivityStress(ctx context.Context, id int64) (*analysis.ActivityStress, error) {
	a, err := s.store.GetActivity(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &analysis.ValidationError{
			Param:    "id",
			Value:    id,
			Expected: "the id of a synced activity",
		}
	}
	if err != nil {
		return nil, fmt.Errorf("loading activity %d: %w", id, err)
	}
	scored := analysis.ScoreActivity(toAnalysis([]store.Activity{*a})[0], s.stress)
	return &scored, nil
}
