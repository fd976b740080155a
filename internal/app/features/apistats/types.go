// Package apistats serves delivery API request statistics to operators.
package apistats

import (
	"time"

	"github.com/dalemusser/stratanotify/internal/app/store/apistats"
)

// Response is the stats view for one time range.
type Response struct {
	Range     string                 `json:"range"`
	Start     time.Time              `json:"start"`
	End       time.Time              `json:"end"`
	Bucket    string                 `json:"bucket"`
	Summaries []SummaryView          `json:"summaries"`
	Series    map[string][]DataPoint `json:"series"`
}

// SummaryView totals one stat type over the range.
type SummaryView struct {
	StatType      string  `json:"stat_type"`
	Label         string  `json:"label"`
	TotalRequests int64   `json:"requests"`
	TotalErrors   int64   `json:"errors"`
	ErrorRate     float64 `json:"error_rate"`
	AvgMs         float64 `json:"avg_ms"`
	MinMs         int64   `json:"min_ms"`
	MaxMs         int64   `json:"max_ms"`
}

// DataPoint is one bucket of a series.
type DataPoint struct {
	Timestamp time.Time `json:"t"`
	Requests  int64     `json:"requests"`
	Errors    int64     `json:"errors"`
	AvgMs     float64   `json:"avg_ms"`
	MinMs     int64     `json:"min_ms"`
	MaxMs     int64     `json:"max_ms"`
}

// bucketOptions are the recording bucket durations operators may choose.
var bucketOptions = []string{"1m", "5m", "15m", "30m", "1h", "2h", "6h", "12h", "24h"}

// rangeDurations maps the accepted ?range= values to their length.
var rangeDurations = map[string]time.Duration{
	"1h":  time.Hour,
	"6h":  6 * time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// StatTypeLabel returns a human-readable label for a stat type.
func StatTypeLabel(st apistats.StatType) string {
	switch st {
	case apistats.StatTypeListTemplates:
		return "List Templates"
	case apistats.StatTypeGetTemplate:
		return "Get Template"
	default:
		return string(st)
	}
}

func isBucketOption(s string) bool {
	for _, b := range bucketOptions {
		if b == s {
			return true
		}
	}
	return false
}
