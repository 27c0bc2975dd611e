package sales

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/andino-pos/andino-pos/internal/alerts"
	"github.com/andino-pos/andino-pos/internal/shared"
	"github.com/andino-pos/andino-pos/internal/stock"
)

type memoryProduct struct {
	tenantID  uuid.UUID
	name      string
	salePrice decimal.Decimal
	stock     int64
	stockMin  int64
	active    bool
}

// memoryRepo serializes transactions behind one mutex and stages writes so a
// failed attempt leaves nothing behind, matching the SQL transaction.
type memoryRepo struct {
	mu        sync.Mutex
	products  map[uuid.UUID]*memoryProduct
	sales     []Sale
	items     []SaleItem
	movements []stock.Movement
	alerts    []alerts.Alert

	// collideInserts forces the next N sale inserts to report a receipt
	// collision, standing in for a concurrent committer.
	collideInserts int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[uuid.UUID]*memoryProduct)}
}

func (r *memoryRepo) addProduct(tenantID uuid.UUID, name string, price int64, stockCurrent, stockMin int64) uuid.UUID {
	id := uuid.New()
	r.products[id] = &memoryProduct{
		tenantID:  tenantID,
		name:      name,
		salePrice: decimal.NewFromInt(price),
		stock:     stockCurrent,
		stockMin:  stockMin,
		active:    true,
	}
	return id
}

type memoryTx struct {
	repo      *memoryRepo
	sales     []Sale
	items     []SaleItem
	movements []stock.Movement
	alerts    []alerts.Alert
	preImages map[uuid.UUID]int64
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{repo: r, preImages: make(map[uuid.UUID]int64)}
	if err := fn(ctx, tx); err != nil {
		for id, prev := range tx.preImages {
			r.products[id].stock = prev
		}
		return err
	}
	r.sales = append(r.sales, tx.sales...)
	r.items = append(r.items, tx.items...)
	r.movements = append(r.movements, tx.movements...)
	r.alerts = append(r.alerts, tx.alerts...)
	return nil
}

func (t *memoryTx) LoadProducts(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]SaleProduct, error) {
	out := make(map[uuid.UUID]SaleProduct)
	for _, id := range ids {
		p, ok := t.repo.products[id]
		if !ok || p.tenantID != tenantID || !p.active {
			continue
		}
		out[id] = SaleProduct{ID: id, Name: p.name, SalePrice: p.salePrice}
	}
	return out, nil
}

func (t *memoryTx) NextReceiptNumber(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var max int64
	for _, s := range t.repo.sales {
		if s.TenantID == tenantID && s.ReceiptNumber > max {
			max = s.ReceiptNumber
		}
	}
	return max + 1, nil
}

func (t *memoryTx) InsertSale(ctx context.Context, s Sale) error {
	if t.repo.collideInserts > 0 {
		t.repo.collideInserts--
		return fmt.Errorf("%w: receipt %d", ErrReceiptCollision, s.ReceiptNumber)
	}
	for _, existing := range t.repo.sales {
		if existing.TenantID == s.TenantID && existing.ReceiptNumber == s.ReceiptNumber {
			return fmt.Errorf("%w: receipt %d", ErrReceiptCollision, s.ReceiptNumber)
		}
	}
	t.sales = append(t.sales, s)
	return nil
}

func (t *memoryTx) InsertItems(ctx context.Context, items []SaleItem) error {
	t.items = append(t.items, items...)
	return nil
}

func (t *memoryTx) DecrementStock(ctx context.Context, tenantID, productID uuid.UUID, quantity int64) (stock.AdjustResult, error) {
	p, ok := t.repo.products[productID]
	if !ok || p.tenantID != tenantID || !p.active {
		return stock.AdjustResult{}, shared.ErrNotFound
	}
	if _, seen := t.preImages[productID]; !seen {
		t.preImages[productID] = p.stock
	}
	if p.stock < quantity {
		return stock.AdjustResult{}, &stock.InsufficientStockError{ProductName: p.name}
	}
	p.stock -= quantity
	return stock.AdjustResult{ProductName: p.name, NewStock: p.stock, StockMin: p.stockMin}, nil
}

func (t *memoryTx) InsertMovement(ctx context.Context, m stock.Movement) error {
	t.movements = append(t.movements, m)
	return nil
}

func (t *memoryTx) HasOpenLowStock(ctx context.Context, tenantID, productID uuid.UUID) (bool, error) {
	for _, a := range t.repo.alerts {
		if a.TenantID == tenantID && a.Type == alerts.TypeLowStock && a.Status == alerts.StatusOpen &&
			a.ProductID != nil && *a.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) RaiseLowStock(ctx context.Context, a alerts.Alert) error {
	t.alerts = append(t.alerts, a)
	return nil
}

func (r *memoryRepo) stockOf(productID uuid.UUID) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[productID].stock
}

func newService(repo *memoryRepo, cfg ServiceConfig) *Service {
	return NewService(nil, repo, nil, cfg)
}

func TestCreateCommitsSaleItemsAndMovements(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, ServiceConfig{})
	ctx := context.Background()
	tenant, actor := uuid.New(), uuid.New()
	coffee := repo.addProduct(tenant, "Cafe Grano 1kg", 8990, 20, 5)
	sugar := repo.addProduct(tenant, "Azucar 1kg", 1290, 30, 5)

	receipt, err := svc.Create(ctx, tenant, actor, CreateInput{
		PaymentMethod: PaymentCash,
		Lines: []LineInput{
			{ProductID: coffee, Quantity: 2},
			{ProductID: sugar, Quantity: 3},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), receipt.ReceiptNumber)
	require.True(t, receipt.Total.Equal(decimal.NewFromInt(2*8990+3*1290)))

	require.Len(t, repo.sales, 1)
	require.Len(t, repo.items, 2)
	require.Len(t, repo.movements, 2)
	require.Equal(t, int64(18), repo.stockOf(coffee))
	require.Equal(t, int64(27), repo.stockOf(sugar))

	// Each line total is the catalog price times quantity.
	for _, it := range repo.items {
		require.True(t, it.LineTotal.Equal(it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity))))
	}

	// The OUT movement references the sale.
	reason := fmt.Sprintf("Venta %s", receipt.SaleID)
	for _, m := range repo.movements {
		require.Equal(t, stock.MovementOut, m.Type)
		require.NotNil(t, m.Reason)
		require.Equal(t, reason, *m.Reason)
		require.Equal(t, actor, m.CreatedBy)
	}

	// Stock stayed above minimum: no alert.
	require.Empty(t, repo.alerts)
}

func TestConcurrentSalesGetDistinctSequentialReceipts(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, ServiceConfig{})
	ctx := context.Background()
	tenant := uuid.New()
	product := repo.addProduct(tenant, "Leche 1L", 1190, 100, 10)

	const sellers = 8
	receipts := make(chan Receipt, sellers)
	var wg sync.WaitGroup
	for i := 0; i < sellers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := svc.Create(ctx, tenant, uuid.New(), CreateInput{
				PaymentMethod: PaymentCard,
				Lines:         []LineInput{{ProductID: product, Quantity: 1}},
			})
			require.NoError(t, err)
			receipts <- r
		}()
	}
	wg.Wait()
	close(receipts)

	seen := make(map[int64]bool)
	for r := range receipts {
		require.False(t, seen[r.ReceiptNumber], "duplicate receipt %d", r.ReceiptNumber)
		seen[r.ReceiptNumber] = true
	}
	for n := int64(1); n <= sellers; n++ {
		require.True(t, seen[n], "missing receipt %d", n)
	}
	require.Equal(t, int64(100-sellers), repo.stockOf(product))
	require.Len(t, repo.movements, sellers)
}

func TestOversellRejectedWithoutPartialState(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, ServiceConfig{})
	ctx := context.Background()
	tenant := uuid.New()
	product := repo.addProduct(tenant, "Harina 1kg", 990, 5, 2)

	const sellers = 2
	results := make(chan error, sellers)
	var wg sync.WaitGroup
	for i := 0; i < sellers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, tenant, uuid.New(), CreateInput{
				PaymentMethod: PaymentCash,
				Lines:         []LineInput{{ProductID: product, Quantity: 3}},
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		default:
			require.ErrorIs(t, err, stock.ErrInsufficientStock)
			rejected++
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, rejected)

	// The rejected attempt left no sale, items, or movements behind.
	require.Equal(t, int64(2), repo.stockOf(product))
	require.Len(t, repo.sales, 1)
	require.Len(t, repo.items, 1)
	require.Len(t, repo.movements, 1)
}

func TestSaleRaisesLowStockAlertAtThreshold(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, ServiceConfig{})
	ctx := context.Background()
	tenant := uuid.New()
	product := repo.addProduct(tenant, "Te Verde", 2490, 6, 5)

	_, err := svc.Create(ctx, tenant, uuid.New(), CreateInput{
		PaymentMethod: PaymentCash,
		Lines:         []LineInput{{ProductID: product, Quantity: 2}},
	})
	require.NoError(t, err)

	require.Len(t, repo.alerts, 1)
	a := repo.alerts[0]
	require.Equal(t, alerts.TypeLowStock, a.Type)
	require.Equal(t, alerts.StatusOpen, a.Status)
	require.NotNil(t, a.ProductID)
	require.Equal(t, product, *a.ProductID)
	require.Equal(t, alerts.LowStockMessage("Te Verde", 4), a.Message)
}

func TestLowStockAlertPolicyPerBreachVsDedup(t *testing.T) {
	sell := func(svc *Service, tenant, product uuid.UUID) {
		_, err := svc.Create(context.Background(), tenant, uuid.New(), CreateInput{
			PaymentMethod: PaymentCash,
			Lines:         []LineInput{{ProductID: product, Quantity: 1}},
		})
		require.NoError(t, err)
	}

	// Default: one alert per breach.
	repo := newMemoryRepo()
	svc := newService(repo, ServiceConfig{})
	tenant := uuid.New()
	product := repo.addProduct(tenant, "Pan Molde", 1890, 5, 5)
	sell(svc, tenant, product)
	sell(svc, tenant, product)
	require.Len(t, repo.alerts, 2)

	// Dedup: the second breach is suppressed while the first stays open.
	repo = newMemoryRepo()
	svc = newService(repo, ServiceConfig{DedupeLowStock: true})
	tenant = uuid.New()
	product = repo.addProduct(tenant, "Pan Molde", 1890, 5, 5)
	sell(svc, tenant, product)
	sell(svc, tenant, product)
	require.Len(t, repo.alerts, 1)
}

func TestReceiptCollisionRetriesThenSucceeds(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, ServiceConfig{ReceiptRetries: 3})
	ctx := context.Background()
	tenant := uuid.New()
	product := repo.addProduct(tenant, "Cafe Grano 1kg", 8990, 10, 2)

	repo.collideInserts = 2
	receipt, err := svc.Create(ctx, tenant, uuid.New(), CreateInput{
		PaymentMethod: PaymentCash,
		Lines:         []LineInput{{ProductID: product, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), receipt.ReceiptNumber)

	// The two rolled-back attempts left nothing behind.
	require.Len(t, repo.sales, 1)
	require.Len(t, repo.movements, 1)
	require.Equal(t, int64(9), repo.stockOf(product))
}

func TestReceiptRetriesExhaustedFailsClean(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, ServiceConfig{ReceiptRetries: 3})
	ctx := context.Background()
	tenant := uuid.New()
	product := repo.addProduct(tenant, "Cafe Grano 1kg", 8990, 10, 2)

	repo.collideInserts = 3
	_, err := svc.Create(ctx, tenant, uuid.New(), CreateInput{
		PaymentMethod: PaymentCash,
		Lines:         []LineInput{{ProductID: product, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrReceiptAssignment)

	require.Empty(t, repo.sales)
	require.Empty(t, repo.movements)
	require.Equal(t, int64(10), repo.stockOf(product))
}

func TestUnknownProductRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, ServiceConfig{})
	ctx := context.Background()
	tenant := uuid.New()
	foreign := repo.addProduct(uuid.New(), "Ajeno", 1000, 10, 2)

	_, err := svc.Create(ctx, tenant, uuid.New(), CreateInput{
		PaymentMethod: PaymentCash,
		Lines:         []LineInput{{ProductID: uuid.New(), Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrUnknownProduct)

	// A foreign tenant's product is indistinguishable from a missing one.
	_, err = svc.Create(ctx, tenant, uuid.New(), CreateInput{
		PaymentMethod: PaymentCash,
		Lines:         []LineInput{{ProductID: foreign, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrUnknownProduct)
}

func TestCreateValidatesInput(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, ServiceConfig{})
	ctx := context.Background()
	tenant := uuid.New()
	product := repo.addProduct(tenant, "Cafe Grano 1kg", 8990, 10, 2)

	_, err := svc.Create(ctx, tenant, uuid.New(), CreateInput{PaymentMethod: "BARTER",
		Lines: []LineInput{{ProductID: product, Quantity: 1}}})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.Create(ctx, tenant, uuid.New(), CreateInput{PaymentMethod: PaymentCash})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.Create(ctx, tenant, uuid.New(), CreateInput{PaymentMethod: PaymentCash,
		Lines: []LineInput{{ProductID: product, Quantity: 0}}})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}
