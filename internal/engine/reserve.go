package engine

import (
	"matchrs/internal/decimal"
	"matchrs/internal/domain"
)

// quotePrecision is the precision used for every quote-denominated amount
// (reservations, trade notional, fees charged in the quote asset). See the
// "quote_precision" open-question resolution in DESIGN.md: a spot market's
// quote amount is price-like, so it shares price_precision.
func quotePrecision(mkt domain.Market) int32 {
	return mkt.PricePrecision
}

// reservation computes the wallet key and amount to lock at order entry,
// per §4.2. Limit Buy is the only case that needs ceiling quantization
// (it must never reserve less than a worst-case taker-fee fill could cost).
func reservation(order *domain.Order, mkt domain.Market) (domain.WalletKey, decimal.Decimal, error) {
	switch {
	case order.OrderType == domain.Limit && order.Side == domain.Buy:
		notional, err := decimal.Mul(order.BaseAmount, order.Price)
		if err != nil {
			return domain.WalletKey{}, decimal.Zero, err
		}
		feeFactor, err := decimal.Add(decimal.New1, order.TakerFee)
		if err != nil {
			return domain.WalletKey{}, decimal.Zero, err
		}
		grossed, err := decimal.Mul(notional, feeFactor)
		if err != nil {
			return domain.WalletKey{}, decimal.Zero, err
		}
		amount, err := decimal.QuantizeCeil(grossed, quotePrecision(mkt))
		if err != nil {
			return domain.WalletKey{}, decimal.Zero, err
		}
		return domain.WalletKey{UserID: order.UserID, Asset: mkt.QuoteAsset}, amount, nil

	case order.OrderType == domain.Limit && order.Side == domain.Sell:
		return domain.WalletKey{UserID: order.UserID, Asset: mkt.BaseAsset}, order.BaseAmount, nil

	case isMarketBuyByQuote(order):
		return domain.WalletKey{UserID: order.UserID, Asset: mkt.QuoteAsset}, order.QuoteAmount, nil

	default: // Market Sell
		return domain.WalletKey{UserID: order.UserID, Asset: mkt.BaseAsset}, order.BaseAmount, nil
	}
}
