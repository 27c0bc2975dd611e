package forecast

import (
	"time"
)

// WindowDays is the trailing observation window the forecast averages over.
const WindowDays = 30

// HorizonDays is the projection horizon.
const HorizonDays = 7

// Snapshot is one computed cash-risk projection for a tenant.
type Snapshot struct {
	Risk       bool      `json:"risk"`
	Sales7     int64     `json:"forecastSales7"`
	Expenses7  int64     `json:"forecastExpenses7"`
	ComputedAt time.Time `json:"computedAt"`
}
