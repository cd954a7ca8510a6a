package amqp

import (
	"encoding/json"
	"time"

	"comparativo/internal/core"
)

// ComparisonExecutedMessage announces a finished comparison run together with
// its unfiltered per-status summary.
type ComparisonExecutedMessage struct {
	RunID      string            `json:"run_id"`
	Base       string            `json:"base"`
	Actual     string            `json:"actual"`
	Rows       int               `json:"rows"`
	DurationMS int64             `json:"duration_ms"`
	ExecutedAt time.Time         `json:"executed_at"`
	Summary    []core.SummaryRow `json:"summary"`
	Timestamp  time.Time         `json:"timestamp"`
}

// NewComparisonExecutedMessage builds the event for run.
func NewComparisonExecutedMessage(run core.Run) *ComparisonExecutedMessage {
	return &ComparisonExecutedMessage{
		RunID:      run.ID,
		Base:       run.Base,
		Actual:     run.Actual,
		Rows:       run.Rows,
		DurationMS: run.Duration.Milliseconds(),
		ExecutedAt: run.ExecutedAt,
		Summary:    run.Summary,
		Timestamp:  time.Now(),
	}
}

// Run rebuilds the comparison run described by the message.
func (m *ComparisonExecutedMessage) Run() core.Run {
	return core.Run{
		ID:         m.RunID,
		Base:       m.Base,
		Actual:     m.Actual,
		Rows:       m.Rows,
		Duration:   time.Duration(m.DurationMS) * time.Millisecond,
		ExecutedAt: m.ExecutedAt,
		Summary:    m.Summary,
	}
}

// ToJSON converts the message to JSON bytes
func (m *ComparisonExecutedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ComparisonExecutedMessageFromJSON decodes a message.
func ComparisonExecutedMessageFromJSON(data []byte) (*ComparisonExecutedMessage, error) {
	var msg ComparisonExecutedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
