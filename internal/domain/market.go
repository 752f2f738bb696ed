package domain

import (
	"time"

	"matchrs/internal/decimal"
)

// Market is a trading pair and the fee/precision policy that governs it.
// (base_asset, quote_asset) is unique across markets — enforced by the
// registry (C7), not by this struct.
type Market struct {
	ID              string
	BaseAsset       string
	QuoteAsset      string
	DefaultMakerFee decimal.Decimal
	DefaultTakerFee decimal.Decimal
	MinBaseAmount   decimal.Decimal
	MinQuoteAmount  decimal.Decimal
	PricePrecision  int32
	AmountPrecision int32
	Status          MarketStatus
	CreateTime      time.Time
	UpdateTime      time.Time
}
