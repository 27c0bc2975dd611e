package sales

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod enumerates accepted tender types.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentCard     PaymentMethod = "CARD"
	PaymentTransfer PaymentMethod = "TRANSFER"
	PaymentOther    PaymentMethod = "OTHER"
)

// Valid reports whether the payment method is known.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentOther:
		return true
	}
	return false
}

// Sale is one committed sale with its tenant-sequential receipt number.
type Sale struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      uuid.UUID       `json:"tenantId"`
	ReceiptNumber int64           `json:"receiptNumber"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	CreatedBy     uuid.UUID       `json:"createdBy"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// SaleItem is one priced line of a sale. Unit prices are read from the
// catalog at commit time, never taken from the client.
type SaleItem struct {
	ID        uuid.UUID       `json:"id"`
	SaleID    uuid.UUID       `json:"saleId"`
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// LineInput is one requested sale line before pricing.
type LineInput struct {
	ProductID uuid.UUID
	Quantity  int64
}

// CreateInput is a sale request as the service receives it.
type CreateInput struct {
	PaymentMethod PaymentMethod
	Lines         []LineInput
}

// Receipt is the caller-facing result of a committed sale.
type Receipt struct {
	SaleID        uuid.UUID       `json:"saleId"`
	ReceiptNumber int64           `json:"receiptNumber"`
	Total         decimal.Decimal `json:"total"`
}

// SaleProduct is the catalog snapshot a sale prices against.
type SaleProduct struct {
	ID        uuid.UUID
	Name      string
	SalePrice decimal.Decimal
}

// ErrReceiptCollision marks a receipt-number uniqueness violation. The whole
// transaction is retried with a freshly computed number.
var ErrReceiptCollision = errors.New("sales: receipt number collision")

// ErrReceiptAssignment is returned once the retry budget is exhausted. The
// request may be retried by the caller; no partial state was committed.
var ErrReceiptAssignment = errors.New("sales: could not assign receipt number")

// ErrUnknownProduct rejects a sale referencing a product that is missing,
// inactive, or belongs to another tenant.
var ErrUnknownProduct = errors.New("sales: unknown product")
