package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron"

	"formcoach/internal/analysis"
	"formcoach/internal/api"
	"formcoach/internal/report"
	"formcoach/internal/service"
)

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"sync":     runSync,
	"balance":  runBalance,
	"analyze":  runAnalyze,
	"predict":  runPredict,
	"taper":    runTaper,
	"recovery": runRecovery,
	"scenario": runScenario,
	"status":   runStatus,
	"serve":    runServe,
}

type globalFlags struct {
	json  bool
	quiet bool
}

func parseGlobal(args []string) (globalFlags, []string, error) {
	var g globalFlags
	fs := flag.NewFlagSet("formcoach", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	fs.BoolVar(&g.json, "json", false, "print raw JSON instead of the rendered report")
	fs.BoolVar(&g.quiet, "quiet", false, "only log warnings and errors")
	if err := fs.Parse(args); err != nil {
		return g, nil, err
	}
	return g, fs.Args(), nil
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet("formcoach "+name, flag.ContinueOnError)
}

// output prints v as JSON or through the given renderer
func (a *app) output(v any, render func() string) error {
	if a.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Println(render())
	return nil
}

func (a *app) formService() (*service.FormService, error) {
	return service.NewFormService(a.store, a.cfg, a.logger)
}

func (a *app) syncService(ctx context.Context) (*service.SyncService, error) {
	if err := a.cfg.ValidateStrava(); err != nil {
		return nil, err
	}
	client, err := service.NewStravaClient(ctx, a.cfg.Strava, a.store, a.logger)
	if err != nil {
		return nil, err
	}
	return service.NewSyncService(client, a.store, a.logger), nil
}

func runSync(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("sync")
	since := fs.String("since", "", "fetch activities after this date (YYYY-MM-DD) instead of resuming")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var after time.Time
	if *since != "" {
		t, err := analysis.ParseDate("since", *since)
		if err != nil {
			return err
		}
		after = t
	}

	svc, err := a.syncService(ctx)
	if err != nil {
		return err
	}
	res, err := svc.Sync(ctx, after)
	if err != nil {
		return err
	}
	return a.output(res, func() string { return report.Sync(res) })
}

func runBalance(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("balance")
	var q service.BalanceQuery
	fs.IntVar(&q.Days, "days", service.DefaultBalanceDays, "trailing window in days")
	fs.BoolVar(&q.IncludeSeries, "series", true, "include the daily series")
	fs.Float64Var(&q.CTLDays, "ctl-days", 0, "override the fitness time constant")
	fs.Float64Var(&q.ATLDays, "atl-days", 0, "override the fatigue time constant")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, err := a.formService()
	if err != nil {
		return err
	}
	res, err := svc.TrainingStressBalance(ctx, q)
	if err != nil {
		return err
	}
	return a.output(res, func() string { return report.Balance(res) })
}

func analyzeFlags(q *service.AnalysisQuery) (*flag.FlagSet, *string) {
	fs := newFlagSet("analyze")
	fs.IntVar(&q.Days, "days", service.DefaultAnalysisDays, "history window in days")
	fs.IntVar(&q.PredictDays, "predict", service.DefaultPredictionDays, "days to project ahead, 0 disables")
	fs.BoolVar(&q.WithCorrelation, "correlation", false, "include the correlation between daily TSS and next-day TSB change")
	planned := fs.String("tss", "", "planned daily TSS for the prediction")
	return fs, planned
}

func runAnalyze(ctx context.Context, a *app, args []string) error {
	var q service.AnalysisQuery
	fs, planned := analyzeFlags(&q)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *planned != "" {
		v, err := strconv.ParseFloat(*planned, 64)
		if err != nil {
			return &analysis.ValidationError{Param: "tss", Expected: "a number", Value: *planned}
		}
		q.PlannedTSS = &v
	}

	svc, err := a.formService()
	if err != nil {
		return err
	}
	fa, err := svc.AnalyzeForm(ctx, q)
	if err != nil {
		return err
	}
	return a.output(fa, func() string { return report.Analysis(fa) })
}

func runPredict(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("predict")
	var req analysis.PredictionRequest
	fs.StringVar(&req.TargetDate, "date", "", "target date (YYYY-MM-DD)")
	fs.BoolVar(&req.Trajectory, "trajectory", false, "include the day-by-day trajectory")
	planned := fs.String("tss", "0", "planned TSS: one value per day or a single constant, comma separated")
	recovery := fs.String("rest", "", "comma separated day offsets (0 = tomorrow) forced to rest")
	if err := fs.Parse(args); err != nil {
		return err
	}

	plan, err := parsePlan("tss", *planned)
	if err != nil {
		return err
	}
	req.PlannedTSS = plan
	if req.RecoveryDays, err = parseOffsets("rest", *recovery); err != nil {
		return err
	}

	svc, err := a.formService()
	if err != nil {
		return err
	}
	pred, err := svc.PredictForm(ctx, req)
	if err != nil {
		return err
	}
	return a.output(pred, func() string { return report.Prediction(pred) })
}

func runTaper(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("taper")
	var req analysis.TaperRequest
	fs.StringVar(&req.RaceDate, "race", "", "race date (YYYY-MM-DD)")
	fs.IntVar(&req.DurationDays, "days", 0, "taper length, defaults to the configured value")
	strategy := fs.String("strategy", "", "linear, exponential or step")
	target := fs.String("target", "", "target race-day TSB")
	reduction := fs.String("reduction", "", "volume reduction percent")
	fs.BoolVar(&req.MaintainIntensity, "intensity", false, "keep short quality sessions")
	fs.Float64Var(&req.PeakTSS, "peak", 0, "pre-taper daily TSS, defaults to current CTL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req.Strategy = analysis.TaperStrategy(*strategy)
	var err error
	if req.TargetTSB, err = optionalFloat("target", *target); err != nil {
		return err
	}
	if req.VolumeReduction, err = optionalFloat("reduction", *reduction); err != nil {
		return err
	}

	svc, err := a.formService()
	if err != nil {
		return err
	}
	plan, err := svc.PlanTaper(ctx, req)
	if err != nil {
		return err
	}
	return a.output(plan, func() string { return report.Taper(plan) })
}

func runRecovery(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("recovery")
	var req analysis.RecoveryRequest
	zone := fs.String("zone", string(analysis.ZoneMaintenance), "zone to recover to")
	fs.BoolVar(&req.Rest, "rest", false, "complete rest instead of light active recovery")
	fs.Float64Var(&req.ActiveRecoveryTSS, "tss", 0, "daily active recovery TSS")
	fs.IntVar(&req.MaxDays, "max-days", 0, "give up after this many days")
	if err := fs.Parse(args); err != nil {
		return err
	}
	req.TargetZone = analysis.FormZone(*zone)

	svc, err := a.formService()
	if err != nil {
		return err
	}
	est, err := svc.EstimateRecovery(ctx, req)
	if err != nil {
		return err
	}
	return a.output(est, func() string { return report.Recovery(est) })
}

func runScenario(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("scenario")
	days := fs.Int("days", 14, "days to simulate")
	planned := fs.String("tss", "", "planned TSS: one value per day or a single constant, comma separated")
	if err := fs.Parse(args); err != nil {
		return err
	}
	plan, err := parsePlan("tss", *planned)
	if err != nil {
		return err
	}

	svc, err := a.formService()
	if err != nil {
		return err
	}
	out, err := svc.Simulate(ctx, *days, plan)
	if err != nil {
		return err
	}
	return a.output(out, func() string { return report.Scenario(out) })
}

func runStatus(ctx context.Context, a *app, args []string) error {
	if err := newFlagSet("status").Parse(args); err != nil {
		return err
	}
	svc, err := a.formService()
	if err != nil {
		return err
	}
	st, err := svc.Status(ctx)
	if err != nil {
		return err
	}
	return a.output(st, func() string { return report.Status(st) })
}

func runServe(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("serve")
	addr := fs.String("addr", a.cfg.Server.Addr, "listen address")
	schedule := fs.String("schedule", a.cfg.Server.SyncSchedule, "cron spec for background sync, empty disables")
	if err := fs.Parse(args); err != nil {
		return err
	}

	form, err := a.formService()
	if err != nil {
		return err
	}

	// Sync is optional: without credentials the API still serves stored data
	var syncer api.Syncer
	syncSvc, err := a.syncService(ctx)
	if err != nil {
		a.logger.Warn("sync disabled", "error", err)
	} else {
		syncer = syncSvc
	}

	if syncSvc != nil && *schedule != "" {
		c := cron.New()
		err := c.AddFunc(*schedule, func() {
			res, err := syncSvc.Sync(ctx, time.Time{})
			if err != nil {
				a.logger.Error("scheduled sync failed", "error", err)
				return
			}
			a.logger.Info("scheduled sync finished",
				"run", res.RunID,
				"fetched", res.ActivitiesFetched,
				"stored", res.ActivitiesStored,
				"partial", res.Partial())
		})
		if err != nil {
			return fmt.Errorf("invalid sync schedule %q: %w", *schedule, err)
		}
		c.Start()
		defer c.Stop()
		a.logger.Info("scheduled sync enabled", "schedule", *schedule)
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.SetupRouter(form, syncer, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", *addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// parsePlan reads "60" as a constant plan and "60,0,80" as a daily plan.
// An empty value plans no load.
func parsePlan(param, s string) (analysis.TSSPlan, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return analysis.ConstantTSS(0), nil
	}
	parts := strings.Split(s, ",")
	values := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return analysis.TSSPlan{}, &analysis.ValidationError{Param: param, Expected: "comma separated numbers", Value: s}
		}
		values[i] = v
	}
	if len(values) == 1 {
		return analysis.ConstantTSS(values[0]), nil
	}
	return analysis.DailyTSS(values), nil
}

func parseOffsets(param, s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int
	for _, p := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, &analysis.ValidationError{Param: param, Expected: "comma separated day offsets", Value: s}
		}
		out = append(out, v)
	}
	return out, nil
}

func optionalFloat(param, s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, &analysis.ValidationError{Param: param, Expected: "a number", Value: s}
	}
	return &v, nil
}
