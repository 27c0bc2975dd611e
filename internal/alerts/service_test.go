package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/andino-pos/andino-pos/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	alerts map[uuid.UUID]*Alert
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{alerts: make(map[uuid.UUID]*Alert)}
}

func (r *memoryRepo) Insert(ctx context.Context, a Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := a
	r.alerts[a.ID] = &copied
	return nil
}

func (r *memoryRepo) CloseOpen(ctx context.Context, tenantID, alertID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[alertID]
	if !ok || a.TenantID != tenantID || a.Status != StatusOpen {
		return shared.ErrNotFound
	}
	a.Status = StatusClosed
	return nil
}

func (r *memoryRepo) List(ctx context.Context, tenantID uuid.UUID, status *Status) ([]Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []Alert
	for _, a := range r.alerts {
		if a.TenantID != tenantID {
			continue
		}
		if status != nil && a.Status != *status {
			continue
		}
		list = append(list, *a)
	}
	return list, nil
}

func (r *memoryRepo) FindOpenCashRisk(ctx context.Context, tenantID uuid.UUID) (Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.TenantID == tenantID && a.Type == TypeCashRisk && a.Status == StatusOpen {
			return *a, nil
		}
	}
	return Alert{}, shared.ErrNotFound
}

func (r *memoryRepo) UpdateOpen(ctx context.Context, tenantID, alertID uuid.UUID, severity Severity, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[alertID]
	if !ok || a.TenantID != tenantID || a.Status != StatusOpen {
		return shared.ErrNotFound
	}
	a.Severity = severity
	a.Message = msg
	return nil
}

func (r *memoryRepo) CloseAllOpenCashRisk(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var closed int64
	for _, a := range r.alerts {
		if a.TenantID == tenantID && a.Type == TypeCashRisk && a.Status == StatusOpen {
			a.Status = StatusClosed
			closed++
		}
	}
	return closed, nil
}

func (r *memoryRepo) HasOpenLowStock(ctx context.Context, tenantID, productID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.TenantID == tenantID && a.Type == TypeLowStock && a.Status == StatusOpen &&
			a.ProductID != nil && *a.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) countOpen(tenantID uuid.UUID, typ Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.alerts {
		if a.TenantID == tenantID && a.Type == typ && a.Status == StatusOpen {
			n++
		}
	}
	return n
}

func TestCloseIsConditionalOnOpen(t *testing.T) {
	repo := newMemoryRepo()
	engine := NewEngine(repo, nil, nil, EngineConfig{})
	ctx := context.Background()
	tenant := uuid.New()

	a := NewLowStock(tenant, uuid.New(), "Cafe Grano 1kg", 3)
	require.NoError(t, engine.Raise(ctx, a))

	require.NoError(t, engine.Close(ctx, tenant, a.ID))
	require.ErrorIs(t, engine.Close(ctx, tenant, a.ID), shared.ErrNotFound)
}

func TestCloseRejectsForeignTenant(t *testing.T) {
	repo := newMemoryRepo()
	engine := NewEngine(repo, nil, nil, EngineConfig{})
	ctx := context.Background()
	tenant := uuid.New()

	a := NewLowStock(tenant, uuid.New(), "Azucar 1kg", 1)
	require.NoError(t, engine.Raise(ctx, a))

	require.ErrorIs(t, engine.Close(ctx, uuid.New(), a.ID), shared.ErrNotFound)
	open := StatusOpen
	list, err := engine.List(ctx, tenant, &open)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestConcurrentClosersOneWins(t *testing.T) {
	repo := newMemoryRepo()
	engine := NewEngine(repo, nil, nil, EngineConfig{})
	ctx := context.Background()
	tenant := uuid.New()

	a := NewLowStock(tenant, uuid.New(), "Harina 1kg", 2)
	require.NoError(t, engine.Raise(ctx, a))

	const closers = 8
	results := make(chan error, closers)
	var wg sync.WaitGroup
	for i := 0; i < closers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- engine.Close(ctx, tenant, a.ID)
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, notFound int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, shared.ErrNotFound):
			notFound++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, closers-1, notFound)
}

func TestLowStockRaisesPerBreachByDefault(t *testing.T) {
	repo := newMemoryRepo()
	engine := NewEngine(repo, nil, nil, EngineConfig{})
	ctx := context.Background()
	tenant := uuid.New()
	product := uuid.New()

	require.NoError(t, engine.Raise(ctx, NewLowStock(tenant, product, "Te Verde", 4)))
	require.NoError(t, engine.Raise(ctx, NewLowStock(tenant, product, "Te Verde", 2)))

	require.Equal(t, 2, repo.countOpen(tenant, TypeLowStock))
}

func TestLowStockDedupPolicy(t *testing.T) {
	repo := newMemoryRepo()
	engine := NewEngine(repo, nil, nil, EngineConfig{DedupeLowStock: true})
	ctx := context.Background()
	tenant := uuid.New()
	product := uuid.New()

	require.NoError(t, engine.Raise(ctx, NewLowStock(tenant, product, "Te Verde", 4)))
	require.NoError(t, engine.Raise(ctx, NewLowStock(tenant, product, "Te Verde", 2)))
	require.Equal(t, 1, repo.countOpen(tenant, TypeLowStock))

	// A breach on a different product still raises.
	require.NoError(t, engine.Raise(ctx, NewLowStock(tenant, uuid.New(), "Leche 1L", 0)))
	require.Equal(t, 2, repo.countOpen(tenant, TypeLowStock))
}

func TestUpsertCashRiskCreatesThenUpdates(t *testing.T) {
	repo := newMemoryRepo()
	engine := NewEngine(repo, nil, nil, EngineConfig{})
	ctx := context.Background()
	tenant := uuid.New()

	require.NoError(t, engine.UpsertCashRisk(ctx, tenant, true, CashRiskMessage(70000, 98000)))
	require.Equal(t, 1, repo.countOpen(tenant, TypeCashRisk))

	// Second upsert with risk still on refreshes the same alert.
	require.NoError(t, engine.UpsertCashRisk(ctx, tenant, true, CashRiskMessage(71000, 97000)))
	require.Equal(t, 1, repo.countOpen(tenant, TypeCashRisk))

	existing, err := repo.FindOpenCashRisk(ctx, tenant)
	require.NoError(t, err)
	require.Equal(t, CashRiskMessage(71000, 97000), existing.Message)
	require.Equal(t, SeverityHigh, existing.Severity)
}

func TestUpsertCashRiskClearsAllOpen(t *testing.T) {
	repo := newMemoryRepo()
	engine := NewEngine(repo, nil, nil, EngineConfig{})
	ctx := context.Background()
	tenant := uuid.New()

	// Two OPEN cash-risk alerts simulate drift; clearing closes both.
	require.NoError(t, engine.UpsertCashRisk(ctx, tenant, true, "r1"))
	require.NoError(t, repo.Insert(ctx, Alert{ID: uuid.New(), TenantID: tenant, Type: TypeCashRisk, Severity: SeverityHigh, Message: "r2", Status: StatusOpen}))
	require.Equal(t, 2, repo.countOpen(tenant, TypeCashRisk))

	require.NoError(t, engine.UpsertCashRisk(ctx, tenant, false, ""))
	require.Equal(t, 0, repo.countOpen(tenant, TypeCashRisk))
}
