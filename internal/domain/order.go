package domain

import (
	"time"

	"matchrs/internal/decimal"
)

// Order is a single buy or sell instruction against one market, grounded on
// the teacher's internal/common.Order — generalized from a single float64
// LimitPrice/Quantity pair to the full reservation/fill bookkeeping the
// settlement protocol needs.
type Order struct {
	ID            string
	MarketID      string
	UserID        string
	OrderType     OrderType
	Side          Side
	Price         decimal.Decimal // zero for Market orders
	BaseAmount    decimal.Decimal
	QuoteAmount   decimal.Decimal
	MakerFee      decimal.Decimal
	TakerFee      decimal.Decimal
	RemainedBase  decimal.Decimal
	RemainedQuote decimal.Decimal
	FilledBase    decimal.Decimal
	FilledQuote   decimal.Decimal
	FilledFee     decimal.Decimal
	Status        OrderStatus
	ClientOrderID string
	PostOnly      bool
	TimeInForce   TimeInForce
	ExpiresAt     *time.Time
	CreateTime    time.Time
	UpdateTime    time.Time
}

// IsTerminal reports whether the order can no longer be matched or canceled.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case Filled, Canceled, Rejected:
		return true
	default:
		return false
	}
}

// Expired reports whether the order's time-in-force deadline has passed.
func (o *Order) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && !o.ExpiresAt.After(now)
}
