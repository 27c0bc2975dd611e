package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository reads the aggregates behind the dashboard summary.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SalesSince returns count and total of sales from the cutoff to now.
func (r *Repository) SalesSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int64, decimal.Decimal, error) {
	var count int64
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(total), 0) FROM sales
WHERE tenant_id=$1 AND created_at >= $2`, tenantID, since).Scan(&count, &total)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("dashboard: sales since: %w", err)
	}
	return count, total, nil
}

// ExpensesSince returns the expense total from the cutoff to now.
func (r *Repository) ExpensesSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM expenses
WHERE tenant_id=$1 AND incurred_at >= $2`, tenantID, since).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("dashboard: expenses since: %w", err)
	}
	return total, nil
}

// CountOpenAlerts returns the tenant's OPEN alert count.
func (r *Repository) CountOpenAlerts(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM alerts WHERE tenant_id=$1 AND status='OPEN'`, tenantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("dashboard: open alerts: %w", err)
	}
	return count, nil
}

// CountLowStockProducts returns how many active products sit at or under
// their minimum.
func (r *Repository) CountLowStockProducts(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products
WHERE tenant_id=$1 AND is_active AND stock_current <= stock_min`, tenantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("dashboard: low stock count: %w", err)
	}
	return count, nil
}
