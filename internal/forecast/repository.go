package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository reads the aggregates the forecaster needs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SumSalesSince totals committed sales from the cutoff to now.
func (r *Repository) SumSalesSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total), 0) FROM sales WHERE tenant_id=$1 AND created_at >= $2`,
		tenantID, since).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("forecast: sum sales: %w", err)
	}
	return sum, nil
}

// SumExpensesSince totals recorded expenses from the cutoff to now.
func (r *Repository) SumExpensesSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE tenant_id=$1 AND incurred_at >= $2`,
		tenantID, since).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("forecast: sum expenses: %w", err)
	}
	return sum, nil
}

// ActiveTenantIDs lists every active tenant for scheduled fan-out.
func (r *Repository) ActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM tenants WHERE is_active ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("forecast: list tenants: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("forecast: scan tenant: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
