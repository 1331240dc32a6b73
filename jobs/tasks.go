package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskConsolidationRun executes the full consolidation workflow for a period.
	TaskConsolidationRun = "consolidation:run"
	// TaskIntercompanySweep re-runs intercompany matching across a period.
	TaskIntercompanySweep = "intercompany:sweep"
)

// ConsolidationRunPayload identifies the period to consolidate.
type ConsolidationRunPayload struct {
	TenantID string `json:"tenantId"`
	PeriodID string `json:"periodId"`
	UserID   string `json:"userId"`
}

// IntercompanySweepPayload identifies the period whose transactions to re-match.
type IntercompanySweepPayload struct {
	TenantID string `json:"tenantId"`
	PeriodID string `json:"periodId"`
}

// NewConsolidationRunTask constructs an Asynq task for a consolidation run.
func NewConsolidationRunTask(payload ConsolidationRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskConsolidationRun, data, asynq.Queue(QueueDefault), asynq.MaxRetry(0)), nil
}

// NewIntercompanySweepTask constructs an Asynq task for a matching sweep.
func NewIntercompanySweepTask(payload IntercompanySweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIntercompanySweep, data, asynq.Queue(QueueDefault)), nil
}
