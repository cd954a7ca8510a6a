package core

import "time"

// Run describes one executed comparison.
type Run struct {
	ID         string        `json:"run_id"`
	Base       string        `json:"base"`
	Actual     string        `json:"actual"`
	Rows       int           `json:"rows"`
	Duration   time.Duration `json:"duration"`
	ExecutedAt time.Time     `json:"executed_at"`
	Summary    []SummaryRow  `json:"summary,omitempty"`
}
