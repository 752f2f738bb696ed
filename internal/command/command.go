// Package command defines the engine's external command surface (§6),
// shared between direct/programmatic callers and the per-market dispatch
// worker (C10). This repo contains no wire decoder; a transport of the
// implementer's choice builds these structs itself. Grounded on the teacher's
// internal/net.Message interface, which played the same bridging role
// between wire parsing and engine calls.
package command

import (
	"time"

	"matchrs/internal/decimal"
	"matchrs/internal/domain"
)

// CreateMarket creates a new market, persisted as MarketInactive, with its
// worker in the Stopped state.
type CreateMarket struct {
	ID              string
	BaseAsset       string
	QuoteAsset      string
	DefaultMakerFee decimal.Decimal
	DefaultTakerFee decimal.Decimal
	MinBaseAmount   decimal.Decimal
	MinQuoteAmount  decimal.Decimal
	PricePrecision  int32
	AmountPrecision int32
}

// StartMarket transitions a market's worker Stopped -> Active.
type StartMarket struct {
	MarketID string
}

// StopMarket transitions a market's worker -> Stopped, canceling every
// open order for that market (cancel-all-on-stop policy, §4.7).
type StopMarket struct {
	MarketID string
}

// AddOrder submits a new order for matching.
type AddOrder struct {
	MarketID      string
	UserID        string
	OrderType     domain.OrderType
	Side          domain.Side
	Price         decimal.Decimal
	BaseAmount    decimal.Decimal
	QuoteAmount   decimal.Decimal
	MakerFee      decimal.Decimal
	TakerFee      decimal.Decimal
	ClientOrderID string
	PostOnly      bool
	TimeInForce   domain.TimeInForce
	ExpiresAt     *time.Time
}

// CancelOrder cancels a single resting order.
type CancelOrder struct {
	MarketID string
	OrderID  string
}

// CancelAllOrders cancels every open order a market's worker currently
// tracks.
type CancelAllOrders struct {
	MarketID string
}

// Deposit credits a user's available balance.
type Deposit struct {
	UserID string
	Asset  string
	Amount decimal.Decimal
}

// Withdraw debits a user's available balance.
type Withdraw struct {
	UserID string
	Asset  string
	Amount decimal.Decimal
}

// GetBalance reads a user's wallet row for one asset.
type GetBalance struct {
	UserID string
	Asset  string
}

// AddOrderResult is the outcome of an AddOrder command: the resulting order
// and every trade the match produced.
type AddOrderResult struct {
	Order  domain.Order
	Trades []domain.Trade
}
