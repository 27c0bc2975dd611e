package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/andino-pos/andino-pos/internal/observability"
	"github.com/andino-pos/andino-pos/internal/shared"
)

// RepositoryPort abstracts alert persistence for the engine.
type RepositoryPort interface {
	Insert(ctx context.Context, a Alert) error
	CloseOpen(ctx context.Context, tenantID, alertID uuid.UUID) error
	List(ctx context.Context, tenantID uuid.UUID, status *Status) ([]Alert, error)
	FindOpenCashRisk(ctx context.Context, tenantID uuid.UUID) (Alert, error)
	UpdateOpen(ctx context.Context, tenantID, alertID uuid.UUID, severity Severity, msg string) error
	CloseAllOpenCashRisk(ctx context.Context, tenantID uuid.UUID) (int64, error)
	HasOpenLowStock(ctx context.Context, tenantID, productID uuid.UUID) (bool, error)
}

// Engine owns the alert state machine: raise OPEN alerts, close them through
// a conditional guard, and keep the single cash-risk alert per tenant in step
// with the forecaster.
type Engine struct {
	repo           RepositoryPort
	logger         *slog.Logger
	metrics        *observability.Metrics
	dedupeLowStock bool
}

// EngineConfig groups optional engine settings.
type EngineConfig struct {
	// DedupeLowStock suppresses a new low-stock alert while an OPEN one still
	// references the same product. The observed default raises one per breach.
	DedupeLowStock bool
}

// NewEngine builds the alert engine.
func NewEngine(repo RepositoryPort, logger *slog.Logger, metrics *observability.Metrics, cfg EngineConfig) *Engine {
	return &Engine{repo: repo, logger: logger, metrics: metrics, dedupeLowStock: cfg.DedupeLowStock}
}

// Raise inserts a new OPEN alert. Low-stock raises are unconditional per
// breach unless the dedup policy is enabled.
func (e *Engine) Raise(ctx context.Context, a Alert) error {
	if a.TenantID == uuid.Nil {
		return fmt.Errorf("%w: alert requires tenant", shared.ErrInvalidInput)
	}
	if a.Type == TypeLowStock && e.dedupeLowStock && a.ProductID != nil {
		open, err := e.repo.HasOpenLowStock(ctx, a.TenantID, *a.ProductID)
		if err != nil {
			return err
		}
		if open {
			return nil
		}
	}
	a.Status = StatusOpen
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if err := e.repo.Insert(ctx, a); err != nil {
		return err
	}
	e.metrics.RecordAlertRaised(string(a.Type))
	return nil
}

// Close transitions OPEN -> CLOSED. Closing a missing, foreign-tenant or
// already-closed alert reports shared.ErrNotFound; the conditional update in
// the store guarantees at most one closer wins.
func (e *Engine) Close(ctx context.Context, tenantID, alertID uuid.UUID) error {
	return e.repo.CloseOpen(ctx, tenantID, alertID)
}

// List returns the tenant's alerts, optionally filtered by status.
func (e *Engine) List(ctx context.Context, tenantID uuid.UUID, status *Status) ([]Alert, error) {
	return e.repo.List(ctx, tenantID, status)
}

// UpsertCashRisk reconciles the tenant's single cash-risk alert with the
// forecast outcome: refresh or create the OPEN alert while risk holds, close
// every OPEN one once it clears.
func (e *Engine) UpsertCashRisk(ctx context.Context, tenantID uuid.UUID, risk bool, msg string) error {
	if !risk {
		closed, err := e.repo.CloseAllOpenCashRisk(ctx, tenantID)
		if err != nil {
			return err
		}
		if closed > 0 && e.logger != nil {
			e.logger.Info("cash risk cleared", slog.String("tenant", tenantID.String()), slog.Int64("closed", closed))
		}
		return nil
	}

	existing, err := e.repo.FindOpenCashRisk(ctx, tenantID)
	switch {
	case err == nil:
		if err := e.repo.UpdateOpen(ctx, tenantID, existing.ID, SeverityHigh, msg); err != nil {
			// The alert was closed between find and update; fall through to a
			// fresh insert so the risk stays visible.
			if errors.Is(err, shared.ErrNotFound) {
				return e.raiseCashRisk(ctx, tenantID, msg)
			}
			return err
		}
		return nil
	case errors.Is(err, shared.ErrNotFound):
		return e.raiseCashRisk(ctx, tenantID, msg)
	default:
		return err
	}
}

func (e *Engine) raiseCashRisk(ctx context.Context, tenantID uuid.UUID, msg string) error {
	return e.Raise(ctx, Alert{
		ID:       uuid.New(),
		TenantID: tenantID,
		Type:     TypeCashRisk,
		Severity: SeverityHigh,
		Message:  msg,
		Status:   StatusOpen,
	})
}
