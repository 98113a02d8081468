package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"formcoach/internal/analysis"
	"formcoach/internal/service"
)

const (
	chartHeight = 10
	chartWidth  = 60
)

// Balance renders the current load state and, when a series is attached,
// a CTL/ATL/TSB chart
func Balance(res *analysis.TrainingStressBalanceResult) string {
	cur := res.Current
	sections := []string{
		titleStyle.Render("Training Stress Balance"),
		card("Today "+cur.Date,
			metric("Fitness (CTL)", fmt.Sprintf("%.1f", cur.CTL)),
			metric("Fatigue (ATL)", fmt.Sprintf("%.1f", cur.ATL)),
			metric("Form (TSB)", fmt.Sprintf("%+.1f", cur.TSB)),
			metric("Zone", zoneStyle(res.Zone).Render(zoneLabel(res.ZoneInfo, res.Zone))),
			mutedStyle.Render(res.Description),
		),
	}

	if res.Summary.Days > 0 {
		s := res.Summary
		sections = append(sections, card(fmt.Sprintf("Last %d days", s.Days),
			metric("Total TSS", fmt.Sprintf("%.1f", s.TotalTSS)),
			metric("Daily average", fmt.Sprintf("%.1f", s.AverageDailyTSS)),
			metric("Activities", fmt.Sprintf("%d (%d HR, %d estimated)", s.ActivityCount, s.HRBasedActivities, s.EstimatedActivities)),
			metric("Active days", fmt.Sprintf("%d (%d HR, %d estimated)", s.HRBasedDays+s.EstimatedDays, s.HRBasedDays, s.EstimatedDays)),
			metric("Ramp rate", fmt.Sprintf("%+.1f CTL/week", s.RampRate)),
			metric("Peak CTL", fmt.Sprintf("%.1f", s.PeakCTL)),
		))
		if len(s.Weeks) > 0 {
			sections = append(sections, weekTable(s.Weeks))
		}
	}

	if chart := loadChart(res.Series); chart != "" {
		sections = append(sections, card("CTL / ATL / TSB", chart))
	}

	sections = append(sections, bullets(successStyle, res.Recommendations)...)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func weekTable(weeks []analysis.WeeklyLoad) string {
	rows := []string{tableHeaderStyle.Render(fmt.Sprintf("%-12s %8s %10s %6s", "Week of", "TSS", "Activities", "Days"))}
	for _, w := range weeks {
		rows = append(rows, fmt.Sprintf("%-12s %8.1f %10d %6d", w.WeekStart, w.TotalTSS, w.ActivityCount, w.ActiveDays))
	}
	return card("Weekly load", rows...)
}

// loadChart plots fitness, fatigue and form together; short series are skipped
func loadChart(points []analysis.LoadPoint) string {
	if len(points) < 2 {
		return ""
	}
	ctl := make([]float64, len(points))
	atl := make([]float64, len(points))
	tsb := make([]float64, len(points))
	for i, p := range points {
		ctl[i], atl[i], tsb[i] = p.CTL, p.ATL, p.TSB
	}
	return asciigraph.PlotMany([][]float64{ctl, atl, tsb},
		asciigraph.Height(chartHeight),
		asciigraph.Width(chartWidth),
		asciigraph.Precision(1),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red, asciigraph.Green),
		asciigraph.Caption(fmt.Sprintf("%s .. %s  blue CTL, red ATL, green TSB", points[0].Date, points[len(points)-1].Date)),
	)
}

// Analysis renders trends, warnings and an optional prediction
func Analysis(fa *analysis.FormAnalysis) string {
	cur := fa.Current
	sections := []string{
		titleStyle.Render("Form Analysis"),
		card("Current form",
			metric("TSB", fmt.Sprintf("%+.1f", cur.TSB)),
			metric("Zone", zoneStyle(cur.Zone).Render(zoneLabel(cur.ZoneInfo, cur.Zone))),
			metric("Day change", fmt.Sprintf("%+.1f", cur.TSBDelta)),
		),
		trendTable(fa.Trends),
	}

	if fa.Acceleration.Accelerating {
		sections = append(sections, warningStyle.Render(fa.Acceleration.Interpretation))
	}
	if fa.Correlation != nil {
		sections = append(sections, metric("TSS vs TSB change", fmt.Sprintf("%.2f", *fa.Correlation)))
	}
	if fa.Prediction != nil {
		sections = append(sections, predictionCard(fa.Prediction))
	}
	sections = append(sections, bullets(errorStyle, fa.Warnings)...)
	sections = append(sections, bullets(successStyle, fa.Recommendations)...)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func trendTable(t analysis.MultiPeriodTrend) string {
	header := tableHeaderStyle.Render(fmt.Sprintf("%-10s %-10s %8s %-10s %7s %11s %6s",
		"Period", "Direction", "Slope", "Velocity", "Avg", "Range", "Vol"))
	rows := []string{header}
	for _, tr := range []analysis.Trend{t.Week, t.Fortnight, t.Month} {
		if tr.Days == 0 {
			continue
		}
		rows = append(rows, fmt.Sprintf("%-10s %-10s %+8.2f %-10s %7.1f %5.1f..%-5.1f %6.1f",
			tr.Period, tr.Direction, tr.Slope, tr.Velocity, tr.Average, tr.Min, tr.Max, tr.Volatility))
	}
	if len(rows) == 1 {
		rows = append(rows, mutedStyle.Render("Not enough history"))
	}
	return card("Trends", rows...)
}

// Prediction renders a single projection
func Prediction(p *analysis.Prediction) string {
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Form Prediction"),
		predictionCard(p),
		lipgloss.JoinVertical(lipgloss.Left, bullets(successStyle, p.Recommendations)...),
	)
}

func predictionCard(p *analysis.Prediction) string {
	lines := []string{
		metric("Target date", fmt.Sprintf("%s (%d days)", p.TargetDate, p.DaysAhead)),
		metric("Predicted TSB", fmt.Sprintf("%+.1f", p.PredictedTSB)),
		metric("Predicted CTL/ATL", fmt.Sprintf("%.1f / %.1f", p.PredictedCTL, p.PredictedATL)),
		metric("Zone", zoneStyle(p.PredictedZone).Render(zoneLabel(p.ZoneInfo, p.PredictedZone))),
		metric("Confidence", fmt.Sprintf("%.0f%%", p.Confidence*100)),
		metric("Fitness retained", fmt.Sprintf("%.1f%%", p.Decay.FitnessRetainedPct)),
	}
	return card("Prediction", lines...)
}

// Taper renders a taper plan as a day table
func Taper(plan *analysis.TaperPlan) string {
	header := tableHeaderStyle.Render(fmt.Sprintf("%-4s %-10s %7s %6s %7s %7s %7s  %s",
		"Day", "Date", "TSS", "Cut", "CTL", "ATL", "TSB", "Zone"))
	rows := []string{header}
	for _, d := range plan.Schedule {
		rows = append(rows, fmt.Sprintf("%-4d %-10s %7.1f %5.0f%% %7.1f %7.1f %+7.1f  %s",
			d.Day, d.Date, d.PlannedTSS, d.ReductionPct, d.PredictedCTL, d.PredictedATL, d.PredictedTSB,
			zoneStyle(d.PredictedZone).Render(string(d.PredictedZone))))
	}

	target := plan.TargetState
	reached := errorStyle.Render("missed")
	if target.TargetReached {
		reached = successStyle.Render("reached")
	}

	sections := []string{
		titleStyle.Render("Taper Plan: race " + plan.RaceDate),
		card(fmt.Sprintf("%s taper, %d days from %s", plan.Strategy.Name, plan.TaperDurationDays, plan.TaperStartDate),
			mutedStyle.Render(plan.Strategy.Description),
			metric("Peak / floor TSS", fmt.Sprintf("%.1f / %.1f", plan.Strategy.PeakTSS, plan.Strategy.FloorTSS)),
			metric("Race-day TSB", fmt.Sprintf("%+.1f (target %+.1f, %s)", target.PredictedTSB, target.TargetTSB, reached)),
			metric("Fitness retained", fmt.Sprintf("%.1f%%", target.FitnessRetainedPct)),
		),
		strings.Join(rows, "\n"),
	}
	if len(plan.CriticalWorkouts) > 0 {
		sections = append(sections, card("Key sessions", bullets(metricValueStyle, plan.CriticalWorkouts)...))
	}
	sections = append(sections, bullets(warningStyle, plan.Warnings)...)
	sections = append(sections, bullets(successStyle, plan.Recommendations)...)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// Recovery renders a recovery estimate
func Recovery(est *analysis.RecoveryEstimate) string {
	outcome := fmt.Sprintf("%d days", est.Days)
	if !est.Reached {
		outcome = errorStyle.Render(fmt.Sprintf("not reached within %d days", est.Days))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Recovery Estimate"),
		card(fmt.Sprintf("To %s (%s)", est.TargetZone, est.TargetRange),
			metric("Mode", fmt.Sprintf("%s at %.0f TSS/day", est.Mode, est.DailyTSS)),
			metric("Time needed", outcome),
			metric("Projected TSB", fmt.Sprintf("%+.1f", est.ProjectedState.TSB)),
			metric("Projected zone", zoneStyle(est.ProjectedZone).Render(string(est.ProjectedZone))),
		),
		lipgloss.JoinVertical(lipgloss.Left, bullets(successStyle, est.Recommendations)...),
	)
}

// Scenario renders a simulated trajectory with a TSB chart
func Scenario(days []analysis.ScenarioDay) string {
	if len(days) == 0 {
		return mutedStyle.Render("Empty scenario")
	}
	header := tableHeaderStyle.Render(fmt.Sprintf("%-4s %7s %7s %7s %7s  %s", "Day", "TSS", "CTL", "ATL", "TSB", "Zone"))
	rows := []string{header}
	tsb := make([]float64, len(days))
	for i, d := range days {
		tsb[i] = d.TSB
		rows = append(rows, fmt.Sprintf("%-4d %7.1f %7.1f %7.1f %+7.1f  %s",
			d.Day, d.TSS, d.CTL, d.ATL, d.TSB, zoneStyle(d.Zone).Render(string(d.Zone))))
	}
	sections := []string{titleStyle.Render("Scenario"), strings.Join(rows, "\n")}
	if len(tsb) >= 2 {
		sections = append(sections, card("TSB", asciigraph.Plot(tsb,
			asciigraph.Height(chartHeight),
			asciigraph.Width(chartWidth),
			asciigraph.Precision(1),
		)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// Sync renders the outcome of a sync run
func Sync(res *service.SyncResult) string {
	lines := []string{
		metric("Run", res.RunID),
		metric("Fetched", fmt.Sprintf("%d", res.ActivitiesFetched)),
		metric("Stored", fmt.Sprintf("%d (%d with HR)", res.ActivitiesStored, res.WithHeartRate)),
	}
	if res.InvalidatedFrom != "" {
		lines = append(lines, metric("Recompute from", res.InvalidatedFrom))
	}
	title := successStyle.Render("Sync complete")
	if res.Partial() {
		title = warningStyle.Render("Sync finished with errors; partial data kept")
		for _, err := range res.Errors {
			lines = append(lines, errorStyle.Render("• "+err.Error()))
		}
	}
	return card("Sync", append([]string{title}, lines...)...)
}

// Status renders the local data state
func Status(st *service.Status) string {
	data := []string{metric("Activities", fmt.Sprintf("%d", st.Activities))}
	if st.FirstActivity != "" {
		data = append(data, metric("First", st.FirstActivity))
	}
	if st.LastActivity != nil {
		data = append(data, metric("Latest", st.LastActivity.Format("2006-01-02 15:04")))
	}
	h := st.LoadHistory
	if h.Days > 0 {
		data = append(data, metric("Cached load", fmt.Sprintf("%d days (%s to %s)", h.Days, h.First, h.Last)))
	} else {
		data = append(data, metric("Cached load", "none"))
	}
	data = append(data, metric("Model", st.LoadModel))

	lines := []string{mutedStyle.Render("Never synced")}
	if run := st.LastSync; run != nil {
		lines = []string{
			metric("Run", run.ID),
			metric("Started", run.StartedAt.Format("2006-01-02 15:04")),
		}
		switch {
		case run.FinishedAt == nil:
			lines = append(lines, warningStyle.Render("Did not finish"))
		case run.Error != "":
			lines = append(lines, metric("Stored", fmt.Sprintf("%d of %d", run.Stored, run.Fetched)), errorStyle.Render("• "+run.Error))
		default:
			lines = append(lines, metric("Stored", fmt.Sprintf("%d of %d", run.Stored, run.Fetched)))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Status"),
		card("Data", data...),
		card("Last sync", lines...),
	)
}

func zoneLabel(info analysis.ZoneInfo, z analysis.FormZone) string {
	if info.Label != "" {
		return info.Label
	}
	return string(z)
}
