package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity re-checks the double-entry identity of the trial balance.
	TaskLedgerIntegrity = "ledger:integrity"
)

// IntegrityPayload bounds the integrity check. Empty dates are open bounds.
type IntegrityPayload struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

func (p IntegrityPayload) dates() (start, end *time.Time, err error) {
	parse := func(raw string) (*time.Time, error) {
		if raw == "" {
			return nil, nil
		}
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return nil, fmt.Errorf("integrity payload: %w", err)
		}
		return &d, nil
	}
	if start, err = parse(p.StartDate); err != nil {
		return nil, nil, err
	}
	if end, err = parse(p.EndDate); err != nil {
		return nil, nil, err
	}
	return start, end, nil
}

// NewIntegrityTask constructs a ledger integrity task.
func NewIntegrityTask(payload IntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}
