package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"formcoach/internal/analysis"
	"formcoach/internal/config"
	"formcoach/internal/store"
)

// FormService answers load and form queries from stored activities. Computed
// load points are persisted so later queries resume from the stored filter
// state instead of replaying the full history.
type FormService struct {
	store      *store.Store
	stress     analysis.StressConfig
	load       analysis.LoadConfig
	taper      config.TaperConfig
	classifier *analysis.ZoneClassifier
	analyzer   *analysis.TrendAnalyzer
	predictor  *analysis.Predictor
	model      string // fingerprint of the settings stored history depends on
	logger     *slog.Logger
	now        func() time.Time
}

// NewFormService wires the analysis engine with the configured athlete,
// time constants, zone overrides and taper defaults
func NewFormService(st *store.Store, cfg *config.Config, logger *slog.Logger) (*FormService, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	classifier, err := cfg.ZoneClassifier()
	if err != nil {
		return nil, fmt.Errorf("building zone classifier: %w", err)
	}
	load := cfg.LoadConfig()
	predictor, err := analysis.NewPredictor(classifier,
		analysis.WithLogger(logger),
		analysis.WithLoadConfig(load))
	if err != nil {
		return nil, fmt.Errorf("building predictor: %w", err)
	}
	return &FormService{
		store:      st,
		stress:     cfg.StressConfig(),
		load:       load,
		taper:      cfg.Taper,
		classifier: classifier,
		analyzer:   analysis.NewTrendAnalyzer(classifier, analysis.WithLogger(logger)),
		predictor:  predictor,
		model:      loadModel(cfg.StressConfig(), load),
		logger:     logger,
		now:        time.Now,
	}, nil
}

// BalanceQuery selects the window of a balance result. CTLDays and ATLDays
// override the configured time constants for this call only.
type BalanceQuery struct {
	Days          int     `json:"days,omitempty" form:"days"`
	IncludeSeries bool    `json:"includeSeries,omitempty" form:"includeSeries"`
	CTLDays       float64 `json:"ctlDays,omitempty" form:"ctlDays"`
	ATLDays       float64 `json:"atlDays,omitempty" form:"atlDays"`
}

// TrainingStressBalance returns the current load state over a trailing window
func (s *FormService) TrainingStressBalance(ctx context.Context, q BalanceQuery) (*analysis.TrainingStressBalanceResult, error) {
	days, err := windowDays(q.Days, DefaultBalanceDays)
	if err != nil {
		return nil, err
	}

	load, persist := s.load, true
	if q.CTLDays != 0 || q.ATLDays != 0 {
		if q.CTLDays != 0 {
			load.CTLDays = q.CTLDays
		}
		if q.ATLDays != 0 {
			load.ATLDays = q.ATLDays
		}
		// stored history belongs to the configured constants
		persist = false
	}

	h, err := s.history(ctx, days, load, persist)
	if err != nil {
		return nil, err
	}
	res := analysis.BuildBalanceResult(h.points, h.days, s.classifier, q.IncludeSeries)
	return &res, nil
}

// AnalysisQuery selects the window of a form analysis and an optional
// projection PredictDays ahead at PlannedTSS (default: last week's average)
type AnalysisQuery struct {
	Days            int      `json:"days,omitempty" form:"days"`
	PredictDays     int      `json:"predictDays,omitempty" form:"predictDays"`
	PlannedTSS      *float64 `json:"plannedTSS,omitempty" form:"plannedTSS"`
	WithCorrelation bool     `json:"includeCorrelation,omitempty" form:"includeCorrelation"`
}

// AnalyzeForm runs multi-period trend analysis over the trailing window
func (s *FormService) AnalyzeForm(ctx context.Context, q AnalysisQuery) (*analysis.FormAnalysis, error) {
	days, err := windowDays(q.Days, DefaultAnalysisDays)
	if err != nil {
		return nil, err
	}
	if q.PredictDays < 0 || q.PredictDays > analysis.MaxProjectionDays {
		return nil, &analysis.ValidationError{
			Param:    "predictDays",
			Value:    q.PredictDays,
			Expected: fmt.Sprintf("a horizon between 0 and %d days", analysis.MaxProjectionDays),
		}
	}

	h, err := s.history(ctx, days, s.load, true)
	if err != nil {
		return nil, err
	}
	snapshots := s.classifier.Snapshots(h.points)

	var prediction *analysis.Prediction
	if q.PredictDays > 0 && len(h.points) > 0 {
		planned := recentAverageTSS(h.points, 7)
		if q.PlannedTSS != nil {
			planned = *q.PlannedTSS
		}
		today := s.now()
		prediction, err = s.predictor.PredictFutureForm(analysis.PredictionRequest{
			Today:      today,
			TargetDate: analysis.FormatDate(today.AddDate(0, 0, q.PredictDays)),
			PlannedTSS: analysis.ConstantTSS(planned),
			Current:    analysis.StateOf(analysis.CurrentLoad(h.points)),
		})
		if err != nil {
			return nil, err
		}
	}

	fa := analysis.BuildFormAnalysis(snapshots, s.analyzer, prediction, q.WithCorrelation)
	return &fa, nil
}

// PredictForm projects today's state to req.TargetDate
func (s *FormService) PredictForm(ctx context.Context, req analysis.PredictionRequest) (*analysis.Prediction, error) {
	current, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	req.Today = s.now()
	req.Current = current
	return s.predictor.PredictFutureForm(req)
}

// PlanTaper builds a taper from today's state. Unset request fields take
// the configured taper defaults.
func (s *FormService) PlanTaper(ctx context.Context, req analysis.TaperRequest) (*analysis.TaperPlan, error) {
	current, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	if req.DurationDays == 0 {
		req.DurationDays = s.taper.DurationDays
	}
	if req.TargetTSB == nil {
		target := s.taper.TargetTSB
		req.TargetTSB = &target
	}
	if req.Strategy == "" {
		req.Strategy = analysis.TaperStrategy(s.taper.Strategy)
	}
	if req.VolumeReduction == nil {
		reduction := s.taper.VolumeReduction
		req.VolumeReduction = &reduction
	}
	req.MaintainIntensity = req.MaintainIntensity || s.taper.MaintainIntensity
	req.Today = s.now()
	req.Current = current
	return s.predictor.GenerateTaperPlan(req)
}

// EstimateRecovery projects rest or light load from today's state
func (s *FormService) EstimateRecovery(ctx context.Context, req analysis.RecoveryRequest) (*analysis.RecoveryEstimate, error) {
	current, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	req.Current = current
	return s.predictor.EstimateRecoveryTime(req)
}

// Simulate runs a what-if plan from today's state
func (s *FormService) Simulate(ctx context.Context, days int, plan analysis.TSSPlan) ([]analysis.ScenarioDay, error) {
	current, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	return s.predictor.Simulate(current, days, plan)
}

// Current returns today's load state, zero when nothing is stored
func (s *FormService) Current(ctx context.Context) (analysis.State, error) {
	h, err := s.history(ctx, 1, s.load, true)
	if err != nil {
		return analysis.State{}, err
	}
	return analysis.StateOf(analysis.CurrentLoad(h.points)), nil
}

type history struct {
	points []analysis.LoadPoint   // the requested window, ending today
	days   []analysis.DailyStress // daily stress behind points
}

// history computes the load series for the trailing window of days ending
// today. The filter starts from the newest persisted point before the
// window, or from the first stored activity on a cold start. With persist
// set the computed points are stored for the next call, unless a sync
// invalidated the stored history while they were being computed.
func (s *FormService) history(ctx context.Context, days int, load analysis.LoadConfig, persist bool) (*history, error) {
	count, err := s.store.CountActivities(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting activities: %w", err)
	}
	if count == 0 {
		return &history{}, nil
	}

	var generation int64
	if persist {
		reset, err := s.store.ResetLoadHistory(ctx, s.model)
		if err != nil {
			return nil, fmt.Errorf("checking load model: %w", err)
		}
		if reset {
			s.logger.Info("load model changed, stored history cleared", "model", s.model)
		}
		if generation, err = s.store.LoadGeneration(ctx); err != nil {
			return nil, fmt.Errorf("reading load generation: %w", err)
		}
	}

	end := calendarDay(s.now())
	from := end.AddDate(0, 0, -(days - 1))

	seed, start, err := s.seed(ctx, from, persist)
	if err != nil {
		return nil, err
	}

	activities, err := s.store.ListActivities(ctx, start, end.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("loading activities: %w", err)
	}
	scores := analysis.ScoreActivities(toAnalysis(activities), s.stress)

	series, err := analysis.BuildDailySeries(scores, analysis.FormatDate(start), analysis.FormatDate(end))
	if err != nil {
		return nil, err
	}
	points, states, err := analysis.CalculateLoadState(series, seed, load)
	if err != nil {
		return nil, err
	}

	if persist {
		err := s.store.SaveLoadSnapshots(ctx, generation, toSnapshots(points, states))
		switch {
		case errors.Is(err, store.ErrStaleLoad):
			s.logger.Debug("load history changed during computation, not saved")
		case err != nil:
			return nil, fmt.Errorf("saving load history: %w", err)
		}
	}
	s.logger.Debug("load history computed",
		"start", analysis.FormatDate(start),
		"end", analysis.FormatDate(end),
		"replayed", len(points),
		"activities", len(activities))

	return &history{
		points: points[len(points)-days:],
		days:   series[len(series)-days:],
	}, nil
}

// seed picks the carry-in state and the first day to replay for a window
// starting at from
func (s *FormService) seed(ctx context.Context, from time.Time, useStored bool) (analysis.Seed, time.Time, error) {
	if useStored {
		snap, err := s.store.LoadSnapshotBefore(ctx, analysis.FormatDate(from))
		switch {
		case err == nil:
			day, err := analysis.ParseDate("date", snap.Date)
			if err != nil {
				return analysis.Seed{}, from, err
			}
			return analysis.Seed{CTL: snap.RawCTL, ATL: snap.RawATL}, day.AddDate(0, 0, 1), nil
		case !errors.Is(err, store.ErrNotFound):
			return analysis.Seed{}, from, fmt.Errorf("loading carry-in state: %w", err)
		}
	}

	earliest, err := s.store.EarliestActivityDay(ctx)
	if err != nil {
		return analysis.Seed{}, from, fmt.Errorf("finding first activity: %w", err)
	}
	if !earliest.IsZero() && earliest.Before(from) {
		return analysis.Seed{}, earliest, nil
	}
	return analysis.Seed{}, from, nil
}

// loadModel identifies the scoring and filter settings a stored load
// history was computed under
func loadModel(stress analysis.StressConfig, load analysis.LoadConfig) string {
	return fmt.Sprintf("hr=%g/%g/%g load=%g/%g",
		stress.RestingHR, stress.MaxHR, stress.ThresholdHR, load.CTLDays, load.ATLDays)
}

func windowDays(days, def int) (int, error) {
	if days == 0 {
		return def, nil
	}
	if days < 1 || days > MaxWindowDays {
		return 0, &analysis.ValidationError{
			Param:    "days",
			Value:    days,
			Expected: fmt.Sprintf("a window between 1 and %d days", MaxWindowDays),
		}
	}
	return days, nil
}

// calendarDay is the local calendar date of t as UTC midnight, matching
// how activity local start times are stored
func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func recentAverageTSS(points []analysis.LoadPoint, days int) float64 {
	if len(points) > days {
		points = points[len(points)-days:]
	}
	var total float64
	for _, p := range points {
		total += p.TSS
	}
	return total / float64(len(points))
}

func toAnalysis(activities []store.Activity) []analysis.Activity {
	out := make([]analysis.Activity, len(activities))
	for i, a := range activities {
		out[i] = analysis.Activity{
			ID:              a.ID,
			Type:            a.Type,
			StartTime:       a.StartDateLocal,
			DurationSeconds: a.MovingTime,
			AverageHR:       a.AverageHeartrate,
			MaxHR:           a.MaxHeartrate,
		}
	}
	return out
}

func toSnapshots(points []analysis.LoadPoint, states []analysis.Seed) []store.LoadSnapshot {
	out := make([]store.LoadSnapshot, len(points))
	for i, p := range points {
		out[i] = store.LoadSnapshot{
			Date:   p.Date,
			TSS:    p.TSS,
			CTL:    p.CTL,
			ATL:    p.ATL,
			TSB:    p.TSB,
			RawCTL: states[i].CTL,
			RawATL: states[i].ATL,
		}
	}
	return out
}
