package alerts

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Type enumerates alert kinds.
type Type string

const (
	// TypeLowStock flags a product at or under its minimum stock.
	TypeLowStock Type = "LOW_STOCK"
	// TypeCashRisk flags a 7-day forecast where expenses outrun sales.
	TypeCashRisk Type = "CASH_RISK"
)

// Severity grades an alert.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Status is the alert state machine: OPEN -> CLOSED, terminal.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Alert is a derived fact raised from the numeric ledgers. ProductID is set
// for stock-related alerts and drives the optional dedup policy.
type Alert struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  uuid.UUID  `json:"tenantId"`
	Type      Type       `json:"type"`
	Severity  Severity   `json:"severity"`
	Message   string     `json:"message"`
	Status    Status     `json:"status"`
	ProductID *uuid.UUID `json:"productId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Alert messages are customer-facing and stay in the tenant's locale.
var printer = message.NewPrinter(language.MustParse("es-CL"))

// LowStockMessage renders the low-stock alert text.
func LowStockMessage(productName string, stock int64) string {
	return printer.Sprintf("Stock bajo: %s (%d)", productName, stock)
}

// CashRiskMessage renders the cash-risk alert text with both 7-day forecasts
// rounded to whole units.
func CashRiskMessage(forecastSales7, forecastExpense7 int64) string {
	return printer.Sprintf("Riesgo caja (7 días): ventas est. %d < gastos est. %d", forecastSales7, forecastExpense7)
}

// NewLowStock builds an OPEN low-stock alert for a product breach.
func NewLowStock(tenantID, productID uuid.UUID, productName string, stock int64) Alert {
	pid := productID
	return Alert{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Type:      TypeLowStock,
		Severity:  SeverityMedium,
		Message:   LowStockMessage(productName, stock),
		Status:    StatusOpen,
		ProductID: &pid,
	}
}
