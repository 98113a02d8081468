package service

const (
	// Trailing windows, in days including today
	DefaultBalanceDays  = 90
	DefaultAnalysisDays = 60
	MaxWindowDays       = 730

	// Horizon used when an analysis asks for a prediction without a date
	DefaultPredictionDays = 7
)
