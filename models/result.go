package models

import "time"

// RunResult holds the overall result of one scrape invocation.
type RunResult struct {
	Products  []*Product
	StartTime time.Time
	EndTime   time.Time

	Total     int
	Succeeded int
	Failed    int // Total - Succeeded, skipped identifiers included
	Skipped   int

	FailedSKUs   []string
	ErrorsByType map[string]int
	RetryCount   int
	RequestCount int
}

// Duration returns the wall time of the run.
func (r *RunResult) Duration() time.Duration {
	if r == nil || r.EndTime.Before(r.StartTime) {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}
