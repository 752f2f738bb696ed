package domain

import (
	"time"

	"matchrs/internal/decimal"
)

// Trade is one execution between a taker and a resting maker order,
// grounded on the teacher's internal/common.Trade (Party/CounterParty),
// generalized to the buyer/seller-fee accounting the settlement protocol
// requires.
type Trade struct {
	ID            string
	Timestamp     time.Time
	MarketID      string
	Price         decimal.Decimal
	BaseAmount    decimal.Decimal
	QuoteAmount   decimal.Decimal
	BuyerUserID   string
	BuyerOrderID  string
	BuyerFee      decimal.Decimal
	SellerUserID  string
	SellerOrderID string
	SellerFee     decimal.Decimal
	TakerSide     Side
	IsLiquidation bool
}
