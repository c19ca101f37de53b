package sinks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the payload delivered downstream for one finished calculation.
type Event struct {
	ID          string          `json:"id"`
	JobID       string          `json:"job_id"`
	Mode        string          `json:"mode"`
	Symbol      string          `json:"symbol,omitempty"`
	Indicators  []string        `json:"indicators"`
	TaskID      string          `json:"task_id,omitempty"`
	Result      json.RawMessage `json:"result"`
	CompletedAt time.Time       `json:"completed_at"`
}

// NewEvent constructs an Event with a fresh id for the given job result.
func NewEvent(jobID, mode, symbol string, indicators []string, taskID string, result json.RawMessage) Event {
	return Event{
		ID:          uuid.NewString(),
		JobID:       jobID,
		Mode:        mode,
		Symbol:      symbol,
		Indicators:  indicators,
		TaskID:      taskID,
		Result:      result,
		CompletedAt: time.Now().UTC(),
	}
}
