package expenses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/andino-pos/andino-pos/internal/shared"
)

// RepositoryPort abstracts expense persistence for the service.
type RepositoryPort interface {
	InsertExpense(ctx context.Context, e Expense) error
	ListExpenses(ctx context.Context, tenantID uuid.UUID, filter Filter) ([]Expense, error)
	InsertCategory(ctx context.Context, c Category) error
	ListCategories(ctx context.Context, tenantID uuid.UUID) ([]Category, error)
	GetCategory(ctx context.Context, tenantID, categoryID uuid.UUID) (Category, error)
}

// CreateExpenseInput is an expense as the service receives it.
type CreateExpenseInput struct {
	CategoryID  *uuid.UUID
	Description string
	Amount      decimal.Decimal
	IncurredAt  *time.Time
}

// Service records expenses and manages their categories.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
}

// NewService constructs the expense service.
func NewService(logger *slog.Logger, repo RepositoryPort) *Service {
	return &Service{logger: logger, repo: repo}
}

// CreateExpense validates and records one expense. IncurredAt defaults to now.
func (s *Service) CreateExpense(ctx context.Context, tenantID, actorID uuid.UUID, in CreateExpenseInput) (Expense, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return Expense{}, fmt.Errorf("%w: expense requires description", shared.ErrInvalidInput)
	}
	if !in.Amount.IsPositive() {
		return Expense{}, fmt.Errorf("%w: amount must be positive", shared.ErrInvalidInput)
	}
	if in.CategoryID != nil {
		if _, err := s.repo.GetCategory(ctx, tenantID, *in.CategoryID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return Expense{}, fmt.Errorf("%w: unknown category", shared.ErrInvalidInput)
			}
			return Expense{}, err
		}
	}

	incurredAt := time.Now().UTC()
	if in.IncurredAt != nil {
		incurredAt = in.IncurredAt.UTC()
	}

	e := Expense{
		ID:          uuid.New(),
		TenantID:    tenantID,
		CategoryID:  in.CategoryID,
		Description: description,
		Amount:      in.Amount,
		IncurredAt:  incurredAt,
		CreatedBy:   actorID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.InsertExpense(ctx, e); err != nil {
		return Expense{}, err
	}

	if s.logger != nil {
		s.logger.Info("expense recorded",
			slog.String("tenant", tenantID.String()),
			slog.String("expense", e.ID.String()),
			slog.String("amount", e.Amount.String()))
	}
	return e, nil
}

// List returns the tenant's expenses.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, filter Filter) ([]Expense, error) {
	return s.repo.ListExpenses(ctx, tenantID, filter)
}

// CreateCategory adds a named category for the tenant.
func (s *Service) CreateCategory(ctx context.Context, tenantID uuid.UUID, name string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, fmt.Errorf("%w: category requires name", shared.ErrInvalidInput)
	}

	c := Category{ID: uuid.New(), TenantID: tenantID, Name: name, CreatedAt: time.Now().UTC()}
	if err := s.repo.InsertCategory(ctx, c); err != nil {
		return Category{}, err
	}
	return c, nil
}

// ListCategories returns the tenant's categories.
func (s *Service) ListCategories(ctx context.Context, tenantID uuid.UUID) ([]Category, error) {
	return s.repo.ListCategories(ctx, tenantID)
}
