package alerts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andino-pos/andino-pos/internal/shared"
)

// Querier is the subset of pgx shared by pools and transactions. The sale
// processor raises low-stock alerts inside its own transaction through it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const alertColumns = `id, tenant_id, type, severity, message, status, product_id, created_at, updated_at`

// Repository persists alerts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertTx appends a new alert using the caller's transaction or pool.
func InsertTx(ctx context.Context, q Querier, a Alert) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := q.Exec(ctx, `INSERT INTO alerts (id, tenant_id, type, severity, message, status, product_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())`, a.ID, a.TenantID, string(a.Type), string(a.Severity), a.Message, string(a.Status), a.ProductID)
	if err != nil {
		return fmt.Errorf("alerts: insert: %w", err)
	}
	return nil
}

// HasOpenLowStockTx reports whether an OPEN low-stock alert already references
// the product, using the caller's transaction or pool.
func HasOpenLowStockTx(ctx context.Context, q Querier, tenantID, productID uuid.UUID) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM alerts WHERE tenant_id=$1 AND product_id=$2 AND type=$3 AND status=$4)`,
		tenantID, productID, string(TypeLowStock), string(StatusOpen)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("alerts: open low-stock lookup: %w", err)
	}
	return exists, nil
}

// Insert appends a new alert.
func (r *Repository) Insert(ctx context.Context, a Alert) error {
	return InsertTx(ctx, r.pool, a)
}

// CloseOpen transitions one OPEN alert to CLOSED. The status guard makes the
// transition race-safe: of two concurrent closers exactly one matches a row.
func (r *Repository) CloseOpen(ctx context.Context, tenantID, alertID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE alerts SET status=$1, updated_at=NOW() WHERE id=$2 AND tenant_id=$3 AND status=$4`,
		string(StatusClosed), alertID, tenantID, string(StatusOpen))
	if err != nil {
		return fmt.Errorf("alerts: close: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// List returns the tenant's alerts, newest first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, status *Status) ([]Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE tenant_id=$1`
	args := []any{tenantID}
	if status != nil {
		query += ` AND status=$2`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("alerts: list: %w", err)
	}
	defer rows.Close()

	list := []Alert{}
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Type, &a.Severity, &a.Message, &a.Status, &a.ProductID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("alerts: scan: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// FindOpenCashRisk returns the tenant's OPEN cash-risk alert, if any.
func (r *Repository) FindOpenCashRisk(ctx context.Context, tenantID uuid.UUID) (Alert, error) {
	var a Alert
	err := r.pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE tenant_id=$1 AND type=$2 AND status=$3 ORDER BY created_at ASC LIMIT 1`,
		tenantID, string(TypeCashRisk), string(StatusOpen)).
		Scan(&a.ID, &a.TenantID, &a.Type, &a.Severity, &a.Message, &a.Status, &a.ProductID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Alert{}, shared.ErrNotFound
		}
		return Alert{}, fmt.Errorf("alerts: find open cash risk: %w", err)
	}
	return a, nil
}

// UpdateOpen refreshes message and severity of an alert that is still OPEN.
func (r *Repository) UpdateOpen(ctx context.Context, tenantID, alertID uuid.UUID, severity Severity, msg string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE alerts SET severity=$1, message=$2, updated_at=NOW() WHERE id=$3 AND tenant_id=$4 AND status=$5`,
		string(severity), msg, alertID, tenantID, string(StatusOpen))
	if err != nil {
		return fmt.Errorf("alerts: update open: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CloseAllOpenCashRisk closes every OPEN cash-risk alert for the tenant. At
// most one should exist by construction, but the close must be robust to drift.
func (r *Repository) CloseAllOpenCashRisk(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE alerts SET status=$1, updated_at=NOW() WHERE tenant_id=$2 AND type=$3 AND status=$4`,
		string(StatusClosed), tenantID, string(TypeCashRisk), string(StatusOpen))
	if err != nil {
		return 0, fmt.Errorf("alerts: close cash risk: %w", err)
	}
	return tag.RowsAffected(), nil
}

// HasOpenLowStock reports whether an OPEN low-stock alert references the product.
func (r *Repository) HasOpenLowStock(ctx context.Context, tenantID, productID uuid.UUID) (bool, error) {
	return HasOpenLowStockTx(ctx, r.pool, tenantID, productID)
}
