package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andino-pos/andino-pos/internal/shared"
)

// Repository persists stock state and the movement log in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service. A
// manual movement adjusts the counter and appends its audit record in one
// unit of work.
type TxRepository interface {
	AdjustStock(ctx context.Context, tenantID, productID uuid.UUID, delta int64, mode AdjustMode) (AdjustResult, error)
	InsertMovement(ctx context.Context, m Movement) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("stock: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListMovements returns the tenant's movement history, newest first.
func (r *Repository) ListMovements(ctx context.Context, tenantID uuid.UUID, filter MovementFilter) ([]Movement, error) {
	query := `SELECT id, tenant_id, product_id, type, quantity, reason, created_by, created_at
FROM inventory_movements WHERE tenant_id=$1`
	args := []any{tenantID}
	if filter.ProductID != nil {
		query += fmt.Sprintf(" AND product_id=$%d", len(args)+1)
		args = append(args, *filter.ProductID)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("stock: list movements: %w", err)
	}
	defer rows.Close()

	list := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.TenantID, &m.ProductID, &m.Type, &m.Quantity, &m.Reason, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("stock: scan movement: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// AdjustStock applies the conditional compare-and-write. A decrement only
// matches while stock_current covers the delta, so concurrent sales can never
// drive the counter negative; there is no read-then-write anywhere.
func (r *txRepository) AdjustStock(ctx context.Context, tenantID, productID uuid.UUID, delta int64, mode AdjustMode) (AdjustResult, error) {
	return adjustStock(ctx, r.tx, tenantID, productID, delta, mode)
}

// InsertMovement appends an audit record. Pure insert, storage faults aside.
func (r *txRepository) InsertMovement(ctx context.Context, m Movement) error {
	return insertMovement(ctx, r.tx, m)
}

// AdjustStockTx runs the conditional update with the caller's transaction.
// The sales repository composes it inside its own sale transaction.
func AdjustStockTx(ctx context.Context, tx pgx.Tx, tenantID, productID uuid.UUID, delta int64, mode AdjustMode) (AdjustResult, error) {
	return adjustStock(ctx, tx, tenantID, productID, delta, mode)
}

// InsertMovementTx appends a movement with the caller's transaction.
func InsertMovementTx(ctx context.Context, tx pgx.Tx, m Movement) error {
	return insertMovement(ctx, tx, m)
}

func adjustStock(ctx context.Context, tx pgx.Tx, tenantID, productID uuid.UUID, delta int64, mode AdjustMode) (AdjustResult, error) {
	var (
		res AdjustResult
		err error
	)
	switch mode {
	case ModeDecrement:
		err = tx.QueryRow(ctx, `UPDATE products
SET stock_current = stock_current - $1, updated_at = NOW()
WHERE id = $2 AND tenant_id = $3 AND is_active AND stock_current >= $1
RETURNING name, stock_current, stock_min`, delta, productID, tenantID).
			Scan(&res.ProductName, &res.NewStock, &res.StockMin)
	case ModeIncrement:
		err = tx.QueryRow(ctx, `UPDATE products
SET stock_current = stock_current + $1, updated_at = NOW()
WHERE id = $2 AND tenant_id = $3 AND is_active
RETURNING name, stock_current, stock_min`, delta, productID, tenantID).
			Scan(&res.ProductName, &res.NewStock, &res.StockMin)
	case ModeSet:
		err = tx.QueryRow(ctx, `UPDATE products
SET stock_current = $1, updated_at = NOW()
WHERE id = $2 AND tenant_id = $3 AND is_active
RETURNING name, stock_current, stock_min`, delta, productID, tenantID).
			Scan(&res.ProductName, &res.NewStock, &res.StockMin)
	default:
		return AdjustResult{}, fmt.Errorf("stock: unknown adjust mode %q", mode)
	}
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return AdjustResult{}, fmt.Errorf("stock: adjust: %w", err)
	}

	// The guard did not match. Distinguish a missing/inactive/foreign product
	// from a legitimate insufficient-stock rejection.
	var name string
	var active bool
	lookupErr := tx.QueryRow(ctx, `SELECT name, is_active FROM products WHERE id=$1 AND tenant_id=$2`, productID, tenantID).
		Scan(&name, &active)
	if lookupErr != nil {
		if errors.Is(lookupErr, pgx.ErrNoRows) {
			return AdjustResult{}, shared.ErrNotFound
		}
		return AdjustResult{}, fmt.Errorf("stock: adjust lookup: %w", lookupErr)
	}
	if !active {
		return AdjustResult{}, shared.ErrNotFound
	}
	if mode == ModeDecrement {
		return AdjustResult{}, &InsufficientStockError{ProductName: name}
	}
	return AdjustResult{}, shared.ErrNotFound
}

func insertMovement(ctx context.Context, tx pgx.Tx, m Movement) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := tx.Exec(ctx, `INSERT INTO inventory_movements (id, tenant_id, product_id, type, quantity, reason, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())`, m.ID, m.TenantID, m.ProductID, string(m.Type), m.Quantity, m.Reason, m.CreatedBy)
	if err != nil {
		return fmt.Errorf("stock: insert movement: %w", err)
	}
	return nil
}
