package stock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/andino-pos/andino-pos/internal/shared"
)

// MoveInput describes one manual stock movement request.
type MoveInput struct {
	ProductID uuid.UUID
	Type      MovementType
	Quantity  int64
	Reason    *string
}

// MoveResult reports the product state after the movement committed.
type MoveResult struct {
	MovementID  uuid.UUID `json:"movementId"`
	ProductID   uuid.UUID `json:"productId"`
	ProductName string    `json:"productName"`
	NewStock    int64     `json:"newStock"`
}

// TxRunner abstracts the transactional repository for tests.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListMovements(ctx context.Context, tenantID uuid.UUID, filter MovementFilter) ([]Movement, error)
}

// Service applies manual stock movements. IN adds, OUT subtracts behind the
// non-negative guard, ADJUST sets the counter to the given absolute quantity.
// Manual movements do not evaluate low-stock alerts; only sales do.
type Service struct {
	logger *slog.Logger
	repo   TxRunner
}

// NewService constructs the stock service.
func NewService(logger *slog.Logger, repo TxRunner) *Service {
	return &Service{logger: logger, repo: repo}
}

// Move validates and commits a single movement atomically with its audit
// record. The quantity is the delta for IN/OUT and the new absolute value for
// ADJUST.
func (s *Service) Move(ctx context.Context, tenantID, actorID uuid.UUID, in MoveInput) (MoveResult, error) {
	if !in.Type.Valid() {
		return MoveResult{}, fmt.Errorf("%w: unknown movement type %q", shared.ErrInvalidInput, in.Type)
	}
	if in.ProductID == uuid.Nil {
		return MoveResult{}, fmt.Errorf("%w: movement requires product", shared.ErrInvalidInput)
	}
	switch in.Type {
	case MovementIn, MovementOut:
		if in.Quantity <= 0 {
			return MoveResult{}, fmt.Errorf("%w: %s requires a positive quantity", ErrInvalidQuantity, in.Type)
		}
	case MovementAdjust:
		if in.Quantity < 0 {
			return MoveResult{}, fmt.Errorf("%w: adjusted stock cannot be negative", ErrInvalidQuantity)
		}
	}

	mode := map[MovementType]AdjustMode{
		MovementIn:     ModeIncrement,
		MovementOut:    ModeDecrement,
		MovementAdjust: ModeSet,
	}[in.Type]

	var result MoveResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		adjusted, err := tx.AdjustStock(ctx, tenantID, in.ProductID, in.Quantity, mode)
		if err != nil {
			return err
		}

		movement := Movement{
			ID:        uuid.New(),
			TenantID:  tenantID,
			ProductID: in.ProductID,
			Type:      in.Type,
			Quantity:  in.Quantity,
			Reason:    in.Reason,
			CreatedBy: actorID,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.InsertMovement(ctx, movement); err != nil {
			return err
		}

		result = MoveResult{
			MovementID:  movement.ID,
			ProductID:   in.ProductID,
			ProductName: adjusted.ProductName,
			NewStock:    adjusted.NewStock,
		}
		return nil
	})
	if err != nil {
		return MoveResult{}, err
	}

	if s.logger != nil {
		s.logger.Info("stock movement",
			slog.String("tenant", tenantID.String()),
			slog.String("product", result.ProductID.String()),
			slog.String("type", string(in.Type)),
			slog.Int64("quantity", in.Quantity),
			slog.Int64("new_stock", result.NewStock))
	}
	return result, nil
}

// History returns the tenant's movement log, newest first.
func (s *Service) History(ctx context.Context, tenantID uuid.UUID, filter MovementFilter) ([]Movement, error) {
	return s.repo.ListMovements(ctx, tenantID, filter)
}
