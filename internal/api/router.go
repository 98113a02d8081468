package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"formcoach/internal/analysis"
	"formcoach/internal/service"
)

// FormQuerier is the form side of the service layer
type FormQuerier interface {
	TrainingStressBalance(ctx context.Context, q service.BalanceQuery) (*analysis.TrainingStressBalanceResult, error)
	AnalyzeForm(ctx context.Context, q service.AnalysisQuery) (*analysis.FormAnalysis, error)
	PredictForm(ctx context.Context, req analysis.PredictionRequest) (*analysis.Prediction, error)
	PlanTaper(ctx context.Context, req analysis.TaperRequest) (*analysis.TaperPlan, error)
	EstimateRecovery(ctx context.Context, req analysis.RecoveryRequest) (*analysis.RecoveryEstimate, error)
	Simulate(ctx context.Context, days int, plan analysis.TSSPlan) ([]analysis.ScenarioDay, error)
	ActivityStress(ctx context.Context, id int64) (*analysis.ActivityStress, error)
	Status(ctx context.Context) (*service.Status, error)
}

// Syncer triggers an activity sync. A zero since resumes from the last run.
type Syncer interface {
	Sync(ctx context.Context, since time.Time) (*service.SyncResult, error)
}

// ScenarioRequest is the body of a what-if simulation
type ScenarioRequest struct {
	Days       int              `json:"days"`
	PlannedTSS analysis.TSSPlan `json:"plannedTSS"`
}

// SyncResponse summarises a sync run for HTTP callers
type SyncResponse struct {
	*service.SyncResult
	Errors []string `json:"errors,omitempty"`
}

type handler struct {
	form FormQuerier
	sync Syncer
}

// SetupRouter builds the HTTP API. sync may be nil, in which case the sync
// endpoint is not registered.
func SetupRouter(form FormQuerier, sync Syncer, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &handler{form: form, sync: sync}

	r := gin.New()
	r.Use(RequestID(), Logger(logger), gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		form := v1.Group("/form")
		{
			form.GET("/balance", h.balance)
			form.GET("/analysis", h.analysis)
			form.POST("/predict", h.predict)
			form.POST("/taper", h.taper)
			form.POST("/recovery", h.recovery)
			form.POST("/scenario", h.scenario)
		}
		v1.GET("/activities/:id/stress", h.activityStress)
		v1.GET("/status", h.status)
		if sync != nil {
			v1.POST("/sync", h.runSync)
		}
	}
	return r
}

func (h *handler) balance(c *gin.Context) {
	var q service.BalanceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		BadRequest(c, "invalid query: "+err.Error())
		return
	}
	res, err := h.form.TrainingStressBalance(c.Request.Context(), q)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, res)
}

func (h *handler) analysis(c *gin.Context) {
	var q service.AnalysisQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		BadRequest(c, "invalid query: "+err.Error())
		return
	}
	res, err := h.form.AnalyzeForm(c.Request.Context(), q)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, res)
}

func (h *handler) predict(c *gin.Context) {
	var req analysis.PredictionRequest
	if !bindBody(c, &req) {
		return
	}
	res, err := h.form.PredictForm(c.Request.Context(), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, res)
}

func (h *handler) taper(c *gin.Context) {
	var req analysis.TaperRequest
	if !bindBody(c, &req) {
		return
	}
	res, err := h.form.PlanTaper(c.Request.Context(), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, res)
}

func (h *handler) recovery(c *gin.Context) {
	var req analysis.RecoveryRequest
	if !bindBody(c, &req) {
		return
	}
	res, err := h.form.EstimateRecovery(c.Request.Context(), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, res)
}

func (h *handler) scenario(c *gin.Context) {
	var req ScenarioRequest
	if !bindBody(c, &req) {
		return
	}
	res, err := h.form.Simulate(c.Request.Context(), req.Days, req.PlannedTSS)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, res)
}

func (h *handler) activityStress(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		Fail(c, &analysis.ValidationError{Param: "id", Value: c.Param("id"), Expected: "a numeric activity id"})
		return
	}
	res, err := h.form.ActivityStress(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, res)
}

func (h *handler) status(c *gin.Context) {
	res, err := h.form.Status(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, res)
}

func (h *handler) runSync(c *gin.Context) {
	var since time.Time
	if s := c.Query("since"); s != "" {
		t, err := analysis.ParseDate("since", s)
		if err != nil {
			Fail(c, err)
			return
		}
		since = t
	}
	res, err := h.sync.Sync(c.Request.Context(), since)
	if err != nil {
		Fail(c, err)
		return
	}
	out := SyncResponse{SyncResult: res}
	for _, e := range res.Errors {
		out.Errors = append(out.Errors, e.Error())
	}
	Success(c, out)
}

// bindBody decodes a JSON body, answering 400 itself on failure
func bindBody(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var verr *analysis.ValidationError
		if errors.As(err, &verr) {
			Fail(c, err)
			return false
		}
		BadRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}
