package analysis

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DateLayout is the calendar-day format used for every surfaced date
const DateLayout = "2006-01-02"

// ErrInvalidInput matches every *ValidationError via errors.Is
var ErrInvalidInput = errors.New("invalid input")

// ErrSeriesGap is returned when the load filter is handed a daily series with missing days
var ErrSeriesGap = errors.New("daily series is not gap-free")

// ValidationError reports a caller-input problem. It names the offending
// parameter and the format or range that was expected.
type ValidationError struct {
	Param    string
	Expected string
	Value    any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: expected %s", e.Param, e.Value, e.Expected)
}

// Is makes errors.Is(err, ErrInvalidInput) true for validation errors
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(param string, value any, expected string) error {
	return &ValidationError{Param: param, Value: value, Expected: expected}
}

// ParseDate parses a YYYY-MM-DD string, reporting failures against param
func ParseDate(param, value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, invalid(param, value, "date in YYYY-MM-DD format")
	}
	return t, nil
}

// FormatDate formats a time as a calendar day
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// daysBetween counts calendar days from a to b (negative when b is before a)
func daysBetween(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Round(b.Sub(a).Hours() / 24))
}

// round1 rounds to one decimal place
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
