package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the catalog row as the core reads it. Products are created and
// edited upstream; the only field the core ever writes is stock_current, and
// that write always goes through the stock ledger's conditional update.
type Product struct {
	ID           uuid.UUID       `json:"id"`
	TenantID     uuid.UUID       `json:"tenantId"`
	Name         string          `json:"name"`
	SKU          *string         `json:"sku,omitempty"`
	Unit         string          `json:"unit"`
	CostPrice    decimal.Decimal `json:"costPrice"`
	SalePrice    decimal.Decimal `json:"salePrice"`
	StockCurrent int64           `json:"stockCurrent"`
	StockMin     int64           `json:"stockMin"`
	IsActive     bool            `json:"isActive"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// LowOnStock reports whether the product sits at or under its minimum.
func (p Product) LowOnStock() bool {
	return p.StockCurrent <= p.StockMin
}
