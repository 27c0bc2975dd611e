package expenses

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

// ErrDuplicateCategory rejects a second category with the same name.
var ErrDuplicateCategory = errors.New("expenses: category already exists")

// Repository persists expenses and categories in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertExpense appends one expense.
func (r *Repository) InsertExpense(ctx context.Context, e Expense) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO expenses (id, tenant_id, category_id, description, amount, incurred_at, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())`, e.ID, e.TenantID, e.CategoryID, e.Description, e.Amount, e.IncurredAt, e.CreatedBy)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23503: the category reference does not exist for this tenant.
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: unknown category", shared.ErrInvalidInput)
		}
		return fmt.Errorf("expenses: insert: %w", err)
	}
	return nil
}

// ListExpenses returns the tenant's expenses, newest first.
func (r *Repository) ListExpenses(ctx context.Context, tenantID uuid.UUID, filter Filter) ([]Expense, error) {
	query := `SELECT id, tenant_id, category_id, description, amount, incurred_at, created_by, created_at
FROM expenses WHERE tenant_id=$1`
	args := []any{tenantID}
	if filter.CategoryID != nil {
		query += fmt.Sprintf(" AND category_id=$%d", len(args)+1)
		args = append(args, *filter.CategoryID)
	}
	if filter.Since != nil {
		query += fmt.Sprintf(" AND incurred_at >= $%d", len(args)+1)
		args = append(args, *filter.Since)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY incurred_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("expenses: list: %w", err)
	}
	defer rows.Close()

	list := []Expense{}
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.TenantID, &e.CategoryID, &e.Description, &e.Amount, &e.IncurredAt, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("expenses: scan: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// InsertCategory appends one category. Names are unique per tenant.
func (r *Repository) InsertCategory(ctx context.Context, c Category) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO expense_categories (id, tenant_id, name, created_at)
VALUES ($1,$2,$3,NOW())`, c.ID, c.TenantID, c.Name)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateCategory
		}
		return fmt.Errorf("expenses: insert category: %w", err)
	}
	return nil
}

// ListCategories returns the tenant's categories ordered by name.
func (r *Repository) ListCategories(ctx context.Context, tenantID uuid.UUID) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, name, created_at FROM expense_categories
WHERE tenant_id=$1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("expenses: list categories: %w", err)
	}
	defer rows.Close()

	list := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("expenses: scan category: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// GetCategory returns one category, tenant-scoped.
func (r *Repository) GetCategory(ctx context.Context, tenantID, categoryID uuid.UUID) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx, `SELECT id, tenant_id, name, created_at FROM expense_categories
WHERE id=$1 AND tenant_id=$2`, categoryID, tenantID).
		Scan(&c.ID, &c.TenantID, &c.Name, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, shared.ErrNotFound
		}
		return Category{}, fmt.Errorf("expenses: get category: %w", err)
	}
	return c, nil
}
