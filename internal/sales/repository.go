package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andino-pos/andino-pos/internal/alerts"
	"github.com/andino-pos/andino-pos/internal/platform/db"
	"github.com/andino-pos/andino-pos/internal/shared"
	"github.com/andino-pos/andino-pos/internal/stock"
)

const pgUniqueViolation = "23505"

// TxRepository exposes everything a sale transaction touches: the catalog
// read, receipt sequencing, the sale rows, the stock ledger, and the alert
// engine's insert. All of it commits or none of it does.
type TxRepository interface {
	LoadProducts(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]SaleProduct, error)
	NextReceiptNumber(ctx context.Context, tenantID uuid.UUID) (int64, error)
	InsertSale(ctx context.Context, s Sale) error
	InsertItems(ctx context.Context, items []SaleItem) error
	DecrementStock(ctx context.Context, tenantID, productID uuid.UUID, quantity int64) (stock.AdjustResult, error)
	InsertMovement(ctx context.Context, m stock.Movement) error
	HasOpenLowStock(ctx context.Context, tenantID, productID uuid.UUID) (bool, error)
	RaiseLowStock(ctx context.Context, a alerts.Alert) error
}

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewRepository constructs Repository. lockTimeout bounds how long a sale
// transaction waits on a contended product row.
func NewRepository(pool *pgxpool.Pool, lockTimeout time.Duration) *Repository {
	return &Repository{pool: pool, lockTimeout: lockTimeout}
}

// WithTx executes one sale attempt inside a read-committed transaction with a
// bounded lock wait.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxLockTimeout(ctx, r.pool, r.lockTimeout, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) LoadProducts(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]SaleProduct, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, name, sale_price FROM products
WHERE tenant_id=$1 AND is_active AND id = ANY($2)`, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("sales: load products: %w", err)
	}
	defer rows.Close()

	products := make(map[uuid.UUID]SaleProduct, len(ids))
	for rows.Next() {
		var p SaleProduct
		if err := rows.Scan(&p.ID, &p.Name, &p.SalePrice); err != nil {
			return nil, fmt.Errorf("sales: scan product: %w", err)
		}
		products[p.ID] = p
	}
	return products, rows.Err()
}

// NextReceiptNumber computes max+1 over the tenant's committed receipts. Two
// concurrent transactions can compute the same number; the unique index on
// (tenant_id, receipt_number) catches the loser at insert.
func (r *txRepository) NextReceiptNumber(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var next int64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(MAX(receipt_number), 0) + 1 FROM sales WHERE tenant_id=$1`, tenantID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("sales: next receipt number: %w", err)
	}
	return next, nil
}

func (r *txRepository) InsertSale(ctx context.Context, s Sale) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO sales (id, tenant_id, receipt_number, total, payment_method, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, s.ID, s.TenantID, s.ReceiptNumber, s.Total, string(s.PaymentMethod), s.CreatedBy, s.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: receipt %d", ErrReceiptCollision, s.ReceiptNumber)
		}
		return fmt.Errorf("sales: insert sale: %w", err)
	}
	return nil
}

func (r *txRepository) InsertItems(ctx context.Context, items []SaleItem) error {
	for _, it := range items {
		_, err := r.tx.Exec(ctx, `INSERT INTO sale_items (id, sale_id, product_id, quantity, unit_price, line_total)
VALUES ($1,$2,$3,$4,$5,$6)`, it.ID, it.SaleID, it.ProductID, it.Quantity, it.UnitPrice, it.LineTotal)
		if err != nil {
			return fmt.Errorf("sales: insert item: %w", err)
		}
	}
	return nil
}

func (r *txRepository) DecrementStock(ctx context.Context, tenantID, productID uuid.UUID, quantity int64) (stock.AdjustResult, error) {
	return stock.AdjustStockTx(ctx, r.tx, tenantID, productID, quantity, stock.ModeDecrement)
}

func (r *txRepository) InsertMovement(ctx context.Context, m stock.Movement) error {
	return stock.InsertMovementTx(ctx, r.tx, m)
}

func (r *txRepository) HasOpenLowStock(ctx context.Context, tenantID, productID uuid.UUID) (bool, error) {
	return alerts.HasOpenLowStockTx(ctx, r.tx, tenantID, productID)
}

func (r *txRepository) RaiseLowStock(ctx context.Context, a alerts.Alert) error {
	return alerts.InsertTx(ctx, r.tx, a)
}

const saleColumns = `id, tenant_id, receipt_number, total, payment_method, created_by, created_at`

// Get returns one sale with its items, tenant-scoped.
func (r *Repository) Get(ctx context.Context, tenantID, saleID uuid.UUID) (Sale, []SaleItem, error) {
	var s Sale
	err := r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1 AND tenant_id=$2`, saleID, tenantID).
		Scan(&s.ID, &s.TenantID, &s.ReceiptNumber, &s.Total, &s.PaymentMethod, &s.CreatedBy, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, nil, shared.ErrNotFound
		}
		return Sale{}, nil, fmt.Errorf("sales: get: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT id, sale_id, product_id, quantity, unit_price, line_total
FROM sale_items WHERE sale_id=$1 ORDER BY id`, saleID)
	if err != nil {
		return Sale{}, nil, fmt.Errorf("sales: get items: %w", err)
	}
	defer rows.Close()

	items := []SaleItem{}
	for rows.Next() {
		var it SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return Sale{}, nil, fmt.Errorf("sales: scan item: %w", err)
		}
		items = append(items, it)
	}
	return s, items, rows.Err()
}

// List returns the tenant's sales, newest first.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Sale, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+saleColumns+` FROM sales WHERE tenant_id=$1
ORDER BY created_at DESC LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sales: list: %w", err)
	}
	defer rows.Close()

	list := []Sale{}
	for rows.Next() {
		var s Sale
		if err := rows.Scan(&s.ID, &s.TenantID, &s.ReceiptNumber, &s.Total, &s.PaymentMethod, &s.CreatedBy, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("sales: scan: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
