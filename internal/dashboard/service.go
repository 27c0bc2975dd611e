package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Summary is the operator-facing snapshot of one tenant's day.
type Summary struct {
	SalesTodayCount  int64           `json:"salesTodayCount"`
	SalesTodayTotal  decimal.Decimal `json:"salesTodayTotal"`
	ExpensesMonth    decimal.Decimal `json:"expensesMonth"`
	OpenAlerts       int64           `json:"openAlerts"`
	LowStockProducts int64           `json:"lowStockProducts"`
	ComputedAt       time.Time       `json:"computedAt"`
}

// AggregatesPort reads the summary's inputs.
type AggregatesPort interface {
	SalesSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int64, decimal.Decimal, error)
	ExpensesSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (decimal.Decimal, error)
	CountOpenAlerts(ctx context.Context, tenantID uuid.UUID) (int64, error)
	CountLowStockProducts(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// Service assembles the dashboard summary. Results are cached briefly in
// Redis; concurrent misses for one tenant share a single computation.
type Service struct {
	logger *slog.Logger
	repo   AggregatesPort
	cache  *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
	now    func() time.Time
}

// NewService constructs the dashboard service. cache may be nil.
func NewService(logger *slog.Logger, repo AggregatesPort, cache *redis.Client, ttl time.Duration) *Service {
	return &Service{logger: logger, repo: repo, cache: cache, ttl: ttl, now: time.Now}
}

func summaryKey(tenantID uuid.UUID) string {
	return "dashboard:summary:" + tenantID.String()
}

// Summary returns the cached summary or computes a fresh one.
func (s *Service) Summary(ctx context.Context, tenantID uuid.UUID) (Summary, error) {
	if cached, ok := s.cached(ctx, tenantID); ok {
		return cached, nil
	}

	v, err, _ := s.sf.Do(tenantID.String(), func() (any, error) {
		return s.compute(ctx, tenantID)
	})
	if err != nil {
		return Summary{}, err
	}
	return v.(Summary), nil
}

func (s *Service) compute(ctx context.Context, tenantID uuid.UUID) (Summary, error) {
	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	count, total, err := s.repo.SalesSince(ctx, tenantID, dayStart)
	if err != nil {
		return Summary{}, err
	}
	expenses, err := s.repo.ExpensesSince(ctx, tenantID, monthStart)
	if err != nil {
		return Summary{}, err
	}
	openAlerts, err := s.repo.CountOpenAlerts(ctx, tenantID)
	if err != nil {
		return Summary{}, err
	}
	lowStock, err := s.repo.CountLowStockProducts(ctx, tenantID)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		SalesTodayCount:  count,
		SalesTodayTotal:  total,
		ExpensesMonth:    expenses,
		OpenAlerts:       openAlerts,
		LowStockProducts: lowStock,
		ComputedAt:       now,
	}
	s.store(ctx, tenantID, summary)
	return summary, nil
}

func (s *Service) cached(ctx context.Context, tenantID uuid.UUID) (Summary, bool) {
	if s.cache == nil {
		return Summary{}, false
	}
	payload, err := s.cache.Get(ctx, summaryKey(tenantID)).Bytes()
	if err != nil {
		return Summary{}, false
	}
	var summary Summary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return Summary{}, false
	}
	return summary, true
}

func (s *Service) store(ctx context.Context, tenantID uuid.UUID, summary Summary) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, summaryKey(tenantID), payload, s.ttl).Err(); err != nil && s.logger != nil {
		s.logger.Warn("dashboard cache write failed", slog.Any("error", err))
	}
}
