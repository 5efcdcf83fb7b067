package usage

import (
	"github.com/goodtune/timeguardian/internal/mockdata"
)

// Band is an app's relationship to its daily limit.
type Band string

const (
	UnderLimit  Band = "UNDER_LIMIT"
	Approaching Band = "APPROACHING"
	Exceeded    Band = "EXCEEDED"
)

// Band thresholds in percent of the daily limit.
const (
	ApproachingPercent = 90.0
	ExceededPercent    = 100.0
)

// PercentUsed returns timeMs as a percentage of limitMs.
// A non-positive limit counts as fully used.
func PercentUsed(timeMs, limitMs int64) float64 {
	if limitMs <= 0 {
		return ExceededPercent
	}
	return float64(timeMs) / float64(limitMs) * 100
}

// Classify returns the band for timeMs against limitMs.
func Classify(timeMs, limitMs int64) Band {
	p := PercentUsed(timeMs, limitMs)
	switch {
	case p >= ExceededPercent:
		return Exceeded
	case p >= ApproachingPercent:
		return Approaching
	default:
		return UnderLimit
	}
}

// AppUsage is a record annotated with its limit and band.
type AppUsage struct {
	mockdata.UsageRecord
	LimitMinutes int     `json:"limitMinutes"`
	PercentUsed  float64 `json:"percentUsed"`
	Band         Band    `json:"band"`
	Formatted    string  `json:"formatted"`
}

// Annotate computes the band for a record under limitMinutes.
func Annotate(r mockdata.UsageRecord, limitMinutes int) AppUsage {
	limitMs := int64(limitMinutes) * 60000
	return AppUsage{
		UsageRecord:  r,
		LimitMinutes: limitMinutes,
		PercentUsed:  PercentUsed(r.TimeInMillis, limitMs),
		Band:         Classify(r.TimeInMillis, limitMs),
		Formatted:    mockdata.FormatTime(r.TimeInMillis),
	}
}
