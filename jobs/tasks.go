package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCashRiskRecalc recomputes the cash-risk forecast for one tenant.
	TaskCashRiskRecalc = "forecast:recalc"
	// TaskCashRiskFanout enqueues a recalc for every active tenant. Registered
	// on a cron schedule.
	TaskCashRiskFanout = "forecast:fanout"
)

// CashRiskRecalcPayload names the tenant whose forecast is recomputed.
type CashRiskRecalcPayload struct {
	TenantID uuid.UUID `json:"tenantId"`
}

// NewCashRiskRecalcTask constructs a per-tenant recalc task.
func NewCashRiskRecalcTask(payload CashRiskRecalcPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCashRiskRecalc, data), nil
}

// NewCashRiskFanoutTask constructs the fan-out task. It carries no payload.
func NewCashRiskFanoutTask() *asynq.Task {
	return asynq.NewTask(TaskCashRiskFanout, nil)
}
