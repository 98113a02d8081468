package analysis

import (
	"sort"
	"time"
)

// ActivitySummary is the per-activity slice of a DailyStress entry
type ActivitySummary struct {
	ActivityID int64        `json:"activityId"`
	Type       string       `json:"activityType"`
	TSS        float64      `json:"tss"`
	Method     StressMethod `json:"method"`
	Confidence Confidence   `json:"confidence"`
}

// DailyStress is the summed stress for one calendar day
type DailyStress struct {
	Date          string            `json:"date"` // YYYY-MM-DD
	TotalTSS      float64           `json:"totalTSS"`
	ActivityCount int               `json:"activityCount"`
	Activities    []ActivitySummary `json:"activities,omitempty"`
}

// WeeklyLoad is a Monday-based weekly aggregate of daily stress
type WeeklyLoad struct {
	WeekStart     string  `json:"weekStart"`
	TotalTSS      float64 `json:"totalTSS"`
	ActivityCount int     `json:"activityCount"`
	ActiveDays    int     `json:"activeDays"`
}

// AggregateDaily sums same-day TSS values. Days are keyed by the calendar
// date of each activity's start time in its own location.
func AggregateDaily(stresses []ActivityStress) []DailyStress {
	byDate := make(map[string]*DailyStress)
	for _, s := range stresses {
		key := FormatDate(s.StartTime)
		day, ok := byDate[key]
		if !ok {
			day = &DailyStress{Date: key}
			byDate[key] = day
		}
		day.TotalTSS += s.TSS
		day.ActivityCount++
		day.Activities = append(day.Activities, ActivitySummary{
			ActivityID: s.ActivityID,
			Type:       s.ActivityType,
			TSS:        s.TSS,
			Method:     s.Method,
			Confidence: s.Confidence,
		})
	}

	days := make([]DailyStress, 0, len(byDate))
	for _, day := range byDate {
		day.TotalTSS = round1(day.TotalTSS)
		days = append(days, *day)
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Date < days[j].Date
	})
	return days
}

// FillGaps returns a gap-free series covering [from, to] inclusive. Missing
// days become zero-stress entries. Empty from/to default to the series bounds.
// Entries outside the range are dropped.
func FillGaps(days []DailyStress, from, to string) ([]DailyStress, error) {
	if len(days) == 0 && (from == "" || to == "") {
		return nil, nil
	}

	byDate := make(map[string]DailyStress, len(days))
	for _, d := range days {
		if _, err := ParseDate("date", d.Date); err != nil {
			return nil, err
		}
		if existing, ok := byDate[d.Date]; ok {
			existing.TotalTSS = round1(existing.TotalTSS + d.TotalTSS)
			existing.ActivityCount += d.ActivityCount
			existing.Activities = append(existing.Activities, d.Activities...)
			byDate[d.Date] = existing
			continue
		}
		byDate[d.Date] = d
	}

	start, end, err := seriesBounds(days, from, to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, invalid("to", FormatDate(end), "a date on or after "+FormatDate(start))
	}

	filled := make([]DailyStress, 0, daysBetween(start, end)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := FormatDate(d)
		if day, ok := byDate[key]; ok {
			filled = append(filled, day)
			continue
		}
		filled = append(filled, DailyStress{Date: key})
	}
	return filled, nil
}

func seriesBounds(days []DailyStress, from, to string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if from != "" {
		if start, err = ParseDate("from", from); err != nil {
			return start, end, err
		}
	}
	if to != "" {
		if end, err = ParseDate("to", to); err != nil {
			return start, end, err
		}
	}

	for _, d := range days {
		t, _ := time.Parse(DateLayout, d.Date)
		if from == "" && (start.IsZero() || t.Before(start)) {
			start = t
		}
		if to == "" && (end.IsZero() || t.After(end)) {
			end = t
		}
	}
	return start, end, nil
}

// BuildDailySeries aggregates activity stress and fills gaps over [from, to]
func BuildDailySeries(stresses []ActivityStress, from, to string) ([]DailyStress, error) {
	return FillGaps(AggregateDaily(stresses), from, to)
}

// IsGapFree reports whether the series is strictly consecutive calendar days
func IsGapFree(days []DailyStress) bool {
	for i := 1; i < len(days); i++ {
		prev, err1 := time.Parse(DateLayout, days[i-1].Date)
		cur, err2 := time.Parse(DateLayout, days[i].Date)
		if err1 != nil || err2 != nil || daysBetween(prev, cur) != 1 {
			return false
		}
	}
	return true
}

// AggregateWeekly groups a daily series into Monday-based weeks
func AggregateWeekly(days []DailyStress) []WeeklyLoad {
	byWeek := make(map[string]*WeeklyLoad)
	var order []string

	for _, d := range days {
		t, err := time.Parse(DateLayout, d.Date)
		if err != nil {
			continue
		}
		offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
		key := FormatDate(t.AddDate(0, 0, -offset))

		week, ok := byWeek[key]
		if !ok {
			week = &WeeklyLoad{WeekStart: key}
			byWeek[key] = week
			order = append(order, key)
		}
		week.TotalTSS += d.TotalTSS
		week.ActivityCount += d.ActivityCount
		if d.ActivityCount > 0 {
			week.ActiveDays++
		}
	}

	sort.Strings(order)
	weeks := make([]WeeklyLoad, 0, len(order))
	for _, key := range order {
		w := byWeek[key]
		w.TotalTSS = round1(w.TotalTSS)
		weeks = append(weeks, *w)
	}
	return weeks
}
