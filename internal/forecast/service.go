package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/andino-pos/andino-pos/internal/alerts"
)

// SumsPort reads the 30-day aggregates.
type SumsPort interface {
	SumSalesSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (decimal.Decimal, error)
	SumExpensesSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (decimal.Decimal, error)
}

// AlertSink reconciles the tenant's cash-risk alert with a forecast outcome.
type AlertSink interface {
	UpsertCashRisk(ctx context.Context, tenantID uuid.UUID, risk bool, msg string) error
}

// Service projects the trailing 30 days of sales and expenses one week
// forward and keeps the cash-risk alert in step with the result. Recalcs for
// the same tenant are collapsed through singleflight, and the latest snapshot
// is kept in Redis for cheap reads.
type Service struct {
	logger *slog.Logger
	repo   SumsPort
	alerts AlertSink
	cache  *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
	now    func() time.Time
}

// NewService constructs the forecaster. cache may be nil; snapshots are then
// recomputed on every read.
func NewService(logger *slog.Logger, repo SumsPort, alertSink AlertSink, cache *redis.Client, ttl time.Duration) *Service {
	return &Service{
		logger: logger,
		repo:   repo,
		alerts: alertSink,
		cache:  cache,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Recalculate recomputes the tenant's cash-risk projection and upserts or
// clears the alert accordingly. Concurrent recalcs for one tenant share a
// single computation.
func (s *Service) Recalculate(ctx context.Context, tenantID uuid.UUID) (Snapshot, error) {
	v, err, _ := s.sf.Do(tenantID.String(), func() (any, error) {
		return s.recalculate(ctx, tenantID)
	})
	if err != nil {
		return Snapshot{}, err
	}
	return v.(Snapshot), nil
}

func (s *Service) recalculate(ctx context.Context, tenantID uuid.UUID) (Snapshot, error) {
	now := s.now().UTC()
	since := now.AddDate(0, 0, -WindowDays)

	sales30, err := s.repo.SumSalesSince(ctx, tenantID, since)
	if err != nil {
		return Snapshot{}, err
	}
	expenses30, err := s.repo.SumExpensesSince(ctx, tenantID, since)
	if err != nil {
		return Snapshot{}, err
	}

	sales7 := project(sales30)
	expenses7 := project(expenses30)

	snap := Snapshot{
		Sales7:     sales7.Round(0).IntPart(),
		Expenses7:  expenses7.Round(0).IntPart(),
		ComputedAt: now,
		// The flag is decided on the raw projections; the int64 figures
		// are rounded for display only.
		Risk: sales7.LessThan(expenses7),
	}

	msg := ""
	if snap.Risk {
		msg = alerts.CashRiskMessage(snap.Sales7, snap.Expenses7)
	}
	if err := s.alerts.UpsertCashRisk(ctx, tenantID, snap.Risk, msg); err != nil {
		return Snapshot{}, err
	}

	s.storeSnapshot(ctx, tenantID, snap)

	if s.logger != nil {
		s.logger.Info("cash risk recalculated",
			slog.String("tenant", tenantID.String()),
			slog.Bool("risk", snap.Risk),
			slog.Int64("sales7", snap.Sales7),
			slog.Int64("expenses7", snap.Expenses7))
	}
	return snap, nil
}

// project turns a 30-day sum into an unrounded 7-day estimate.
func project(sum30 decimal.Decimal) decimal.Decimal {
	return sum30.
		Div(decimal.NewFromInt(WindowDays)).
		Mul(decimal.NewFromInt(HorizonDays))
}

func snapshotKey(tenantID uuid.UUID) string {
	return "forecast:cashrisk:" + tenantID.String()
}

func (s *Service) storeSnapshot(ctx context.Context, tenantID uuid.UUID, snap Snapshot) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, snapshotKey(tenantID), payload, s.ttl).Err(); err != nil && s.logger != nil {
		s.logger.Warn("forecast snapshot cache write failed", slog.Any("error", err))
	}
}

// CachedSnapshot returns the last stored projection without recomputing.
func (s *Service) CachedSnapshot(ctx context.Context, tenantID uuid.UUID) (Snapshot, bool, error) {
	if s.cache == nil {
		return Snapshot{}, false, nil
	}
	payload, err := s.cache.Get(ctx, snapshotKey(tenantID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("forecast: snapshot cache read: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("forecast: snapshot decode: %w", err)
	}
	return snap, true, nil
}
