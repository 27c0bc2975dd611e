package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/andino-pos/andino-pos/internal/forecast"
	jobmetrics "github.com/andino-pos/andino-pos/internal/jobs"
)

// Recalculator recomputes one tenant's cash-risk projection.
type Recalculator interface {
	Recalculate(ctx context.Context, tenantID uuid.UUID) (forecast.Snapshot, error)
}

// TenantLister enumerates tenants for scheduled fan-out.
type TenantLister interface {
	ActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Enqueuer submits recalc tasks. Satisfied by Client.
type Enqueuer interface {
	EnqueueCashRiskRecalc(ctx context.Context, payload CashRiskRecalcPayload) (*asynq.TaskInfo, error)
}

// NewCashRiskRecalcHandler processes TaskCashRiskRecalc tasks.
func NewCashRiskRecalcHandler(logger *slog.Logger, metrics *jobmetrics.Metrics, svc Recalculator) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("cash_risk_recalc")
		var payload CashRiskRecalcPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.TenantID == uuid.Nil {
			return asynq.SkipRetry
		}
		snap, err := svc.Recalculate(ctx, payload.TenantID)
		if err != nil {
			logger.Error("cash risk recalc",
				slog.String("tenant", payload.TenantID.String()),
				slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("cash risk recalc done",
			slog.String("tenant", payload.TenantID.String()),
			slog.Bool("risk", snap.Risk))
		return tracker.End(nil)
	}
}

// NewCashRiskFanoutHandler processes TaskCashRiskFanout by enqueueing one
// recalc per active tenant. A single tenant failing to enqueue does not stop
// the rest.
func NewCashRiskFanoutHandler(logger *slog.Logger, metrics *jobmetrics.Metrics, tenants TenantLister, enqueue Enqueuer) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("cash_risk_fanout")
		ids, err := tenants.ActiveTenantIDs(ctx)
		if err != nil {
			logger.Error("cash risk fanout", slog.Any("error", err))
			return tracker.End(err)
		}
		for _, tenantID := range ids {
			if _, err := enqueue.EnqueueCashRiskRecalc(ctx, CashRiskRecalcPayload{TenantID: tenantID}); err != nil {
				logger.Warn("enqueue recalc",
					slog.String("tenant", tenantID.String()),
					slog.Any("error", err))
			}
		}
		logger.Info("cash risk fanout", slog.Int("tenants", len(ids)))
		return tracker.End(nil)
	}
}
