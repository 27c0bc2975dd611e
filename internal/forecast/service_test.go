package forecast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/andino-pos/andino-pos/internal/alerts"
)

type memorySums struct {
	mu       sync.Mutex
	sales    map[uuid.UUID]decimal.Decimal
	expenses map[uuid.UUID]decimal.Decimal
	calls    int
}

func newMemorySums() *memorySums {
	return &memorySums{
		sales:    make(map[uuid.UUID]decimal.Decimal),
		expenses: make(map[uuid.UUID]decimal.Decimal),
	}
}

func (m *memorySums) SumSalesSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.sales[tenantID], nil
}

func (m *memorySums) SumExpensesSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expenses[tenantID], nil
}

type recordedUpsert struct {
	tenantID uuid.UUID
	risk     bool
	msg      string
}

type memorySink struct {
	mu      sync.Mutex
	upserts []recordedUpsert
}

func (s *memorySink) UpsertCashRisk(ctx context.Context, tenantID uuid.UUID, risk bool, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, recordedUpsert{tenantID: tenantID, risk: risk, msg: msg})
	return nil
}

func (s *memorySink) last(t *testing.T) recordedUpsert {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.upserts)
	return s.upserts[len(s.upserts)-1]
}

func TestRecalculateFlagsRiskWhenExpensesOutrunSales(t *testing.T) {
	sums := newMemorySums()
	sink := &memorySink{}
	svc := NewService(nil, sums, sink, nil, 0)
	tenant := uuid.New()

	// 300,000 of sales vs 420,000 of expenses over 30 days
	// projects 70,000 vs 98,000 over the next 7.
	sums.sales[tenant] = decimal.NewFromInt(300000)
	sums.expenses[tenant] = decimal.NewFromInt(420000)

	snap, err := svc.Recalculate(context.Background(), tenant)
	require.NoError(t, err)
	require.True(t, snap.Risk)
	require.Equal(t, int64(70000), snap.Sales7)
	require.Equal(t, int64(98000), snap.Expenses7)

	up := sink.last(t)
	require.Equal(t, tenant, up.tenantID)
	require.True(t, up.risk)
	require.Equal(t, alerts.CashRiskMessage(70000, 98000), up.msg)
}

func TestRecalculateClearsRiskWhenSalesCover(t *testing.T) {
	sums := newMemorySums()
	sink := &memorySink{}
	svc := NewService(nil, sums, sink, nil, 0)
	tenant := uuid.New()

	sums.sales[tenant] = decimal.NewFromInt(500000)
	sums.expenses[tenant] = decimal.NewFromInt(420000)

	snap, err := svc.Recalculate(context.Background(), tenant)
	require.NoError(t, err)
	require.False(t, snap.Risk)

	up := sink.last(t)
	require.False(t, up.risk)
	require.Empty(t, up.msg)
}

func TestRecalculateBreakEvenIsNotRisk(t *testing.T) {
	sums := newMemorySums()
	sink := &memorySink{}
	svc := NewService(nil, sums, sink, nil, 0)
	tenant := uuid.New()

	sums.sales[tenant] = decimal.NewFromInt(420000)
	sums.expenses[tenant] = decimal.NewFromInt(420000)

	snap, err := svc.Recalculate(context.Background(), tenant)
	require.NoError(t, err)
	require.False(t, snap.Risk)
}

func TestRecalculateRiskDecidedBeforeRounding(t *testing.T) {
	sums := newMemorySums()
	sink := &memorySink{}
	svc := NewService(nil, sums, sink, nil, 0)
	tenant := uuid.New()

	// 1,000 vs 1,000.50 over 30 days project to 233.33 vs 233.45. Both
	// round to 233, yet expenses still outrun sales.
	sums.sales[tenant] = decimal.NewFromInt(1000)
	sums.expenses[tenant] = decimal.RequireFromString("1000.50")

	snap, err := svc.Recalculate(context.Background(), tenant)
	require.NoError(t, err)
	require.True(t, snap.Risk)
	require.Equal(t, int64(233), snap.Sales7)
	require.Equal(t, int64(233), snap.Expenses7)

	up := sink.last(t)
	require.True(t, up.risk)
	require.Equal(t, alerts.CashRiskMessage(233, 233), up.msg)
}

func TestRecalculateStoresSnapshotInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	sums := newMemorySums()
	sink := &memorySink{}
	svc := NewService(nil, sums, sink, cache, 10*time.Minute)
	tenant := uuid.New()

	sums.sales[tenant] = decimal.NewFromInt(300000)
	sums.expenses[tenant] = decimal.NewFromInt(420000)

	want, err := svc.Recalculate(context.Background(), tenant)
	require.NoError(t, err)

	got, ok, err := svc.CachedSnapshot(context.Background(), tenant)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want.Risk, got.Risk)
	require.Equal(t, want.Sales7, got.Sales7)
	require.Equal(t, want.Expenses7, got.Expenses7)

	// The snapshot expires with the configured TTL.
	mr.FastForward(11 * time.Minute)
	_, ok, err = svc.CachedSnapshot(context.Background(), tenant)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRecalculateRoundsProjection(t *testing.T) {
	sums := newMemorySums()
	sink := &memorySink{}
	svc := NewService(nil, sums, sink, nil, 0)
	tenant := uuid.New()

	// 100,000 / 30 * 7 = 23,333.33..., rounds to 23,333.
	sums.sales[tenant] = decimal.NewFromInt(100000)
	sums.expenses[tenant] = decimal.NewFromInt(0)

	snap, err := svc.Recalculate(context.Background(), tenant)
	require.NoError(t, err)
	require.Equal(t, int64(23333), snap.Sales7)
	require.Equal(t, int64(0), snap.Expenses7)
	require.False(t, snap.Risk)
}
