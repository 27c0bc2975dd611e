package stock

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/andino-pos/andino-pos/internal/shared"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementIn adds quantity to current stock.
	MovementIn MovementType = "IN"
	// MovementOut subtracts quantity from current stock.
	MovementOut MovementType = "OUT"
	// MovementAdjust sets current stock to the given quantity.
	MovementAdjust MovementType = "ADJUST"
)

// Valid reports whether the movement type is known.
func (t MovementType) Valid() bool {
	return t == MovementIn || t == MovementOut || t == MovementAdjust
}

// Movement is one append-only audit record of a stock change. Movements are
// never updated or deleted, and never read back for decisions.
type Movement struct {
	ID        uuid.UUID    `json:"id"`
	TenantID  uuid.UUID    `json:"tenantId"`
	ProductID uuid.UUID    `json:"productId"`
	Type      MovementType `json:"type"`
	Quantity  int64        `json:"quantity"`
	Reason    *string      `json:"reason,omitempty"`
	CreatedBy uuid.UUID    `json:"createdBy"`
	CreatedAt time.Time    `json:"createdAt"`
}

// AdjustMode selects how a delta applies to the stock counter.
type AdjustMode string

const (
	ModeIncrement AdjustMode = "increment"
	ModeDecrement AdjustMode = "decrement"
	ModeSet       AdjustMode = "set"
)

// AdjustResult reports the product state after a conditional adjustment.
type AdjustResult struct {
	ProductName string
	NewStock    int64
	StockMin    int64
}

// MovementFilter narrows movement history queries.
type MovementFilter struct {
	ProductID *uuid.UUID
	Limit     int
	Offset    int
}

// ErrInsufficientStock rejects a decrement whose guard condition failed. This
// is a business rejection, never retried.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrInvalidQuantity rejects a quantity outside the movement type's range:
// IN/OUT need a positive delta, ADJUST a non-negative absolute value.
var ErrInvalidQuantity = fmt.Errorf("%w: invalid quantity", shared.ErrInvalidInput)

// InsufficientStockError carries the product name for the caller-facing
// rejection message.
type InsufficientStockError struct {
	ProductName string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: %s", e.ProductName)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
