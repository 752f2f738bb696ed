package engine

import (
	"fmt"
	"time"

	"matchrs/internal/command"
	"matchrs/internal/decimal"
	"matchrs/internal/domain"
	"matchrs/internal/matchrserr"
)

// resolveBaseAmountAmbiguity implements the spec's resolution of the
// Market-Buy base_amount/quote_amount ambiguity (open question in §9):
// when a Market Buy carries a non-zero quote_amount, base_amount is
// treated as zero regardless of what the caller supplied.
func resolveBaseAmountAmbiguity(cmd *command.AddOrder) {
	if cmd.OrderType == domain.Market && cmd.Side == domain.Buy && !cmd.QuoteAmount.IsZero() {
		cmd.BaseAmount = decimal.Zero
	}
}

// validateAddOrder performs step 1 of the AddOrder protocol: quantization,
// sign, enum, precision, min-amount, time-in-force/expiry, and
// client-order-id-uniqueness checks. It never mutates the book or the
// ledger. On success it returns a fully-populated domain.Order in status
// Open with remained_* set to the requested amounts and filled_* at zero.
func (mw *marketWorker) validateAddOrder(cmd command.AddOrder, now time.Time) (*domain.Order, error) {
	if mw.state != WorkerActive {
		return nil, matchrserr.ErrMarketNotActive
	}

	if cmd.Side != domain.Buy && cmd.Side != domain.Sell {
		return nil, fmt.Errorf("%w: invalid side", matchrserr.ErrValidation)
	}
	if cmd.OrderType != domain.Limit && cmd.OrderType != domain.Market {
		return nil, fmt.Errorf("%w: invalid order type", matchrserr.ErrValidation)
	}

	mkt := mw.market

	switch cmd.OrderType {
	case domain.Limit:
		if !cmd.Price.IsPositive() {
			return nil, fmt.Errorf("%w: limit order requires a positive price", matchrserr.ErrValidation)
		}
		if _, err := decimal.QuantizeExact(cmd.Price, mkt.PricePrecision); err != nil {
			return nil, fmt.Errorf("%w: price exceeds price_precision", matchrserr.ErrValidation)
		}
	case domain.Market:
		if !cmd.Price.IsZero() {
			return nil, fmt.Errorf("%w: market order price must be zero", matchrserr.ErrValidation)
		}
	}

	if !cmd.BaseAmount.IsZero() {
		if _, err := decimal.QuantizeExact(cmd.BaseAmount, mkt.AmountPrecision); err != nil {
			return nil, fmt.Errorf("%w: base_amount exceeds amount_precision", matchrserr.ErrValidation)
		}
	}

	switch {
	case cmd.OrderType == domain.Limit:
		if !cmd.BaseAmount.IsPositive() {
			return nil, fmt.Errorf("%w: limit order requires a positive base_amount", matchrserr.ErrValidation)
		}
		if cmd.BaseAmount.LessThan(mkt.MinBaseAmount) {
			return nil, fmt.Errorf("%w: base_amount below min_base_amount", matchrserr.ErrValidation)
		}
		quote, err := decimal.Mul(cmd.BaseAmount, cmd.Price)
		if err != nil {
			return nil, err
		}
		if quote.LessThan(mkt.MinQuoteAmount) {
			return nil, fmt.Errorf("%w: notional below min_quote_amount", matchrserr.ErrValidation)
		}
	case cmd.OrderType == domain.Market && cmd.Side == domain.Buy:
		if !cmd.QuoteAmount.IsPositive() {
			return nil, fmt.Errorf("%w: market buy requires a positive quote_amount", matchrserr.ErrValidation)
		}
		if cmd.QuoteAmount.LessThan(mkt.MinQuoteAmount) {
			return nil, fmt.Errorf("%w: quote_amount below min_quote_amount", matchrserr.ErrValidation)
		}
	case cmd.OrderType == domain.Market && cmd.Side == domain.Sell:
		if !cmd.BaseAmount.IsPositive() {
			return nil, fmt.Errorf("%w: market sell requires a positive base_amount", matchrserr.ErrValidation)
		}
		if cmd.BaseAmount.LessThan(mkt.MinBaseAmount) {
			return nil, fmt.Errorf("%w: base_amount below min_base_amount", matchrserr.ErrValidation)
		}
	}

	switch cmd.TimeInForce {
	case domain.GTC:
		if cmd.ExpiresAt != nil {
			return nil, fmt.Errorf("%w: GTC orders must not carry expires_at", matchrserr.ErrValidation)
		}
	case domain.IOC, domain.FOK:
		if cmd.ExpiresAt == nil {
			return nil, fmt.Errorf("%w: IOC/FOK orders require expires_at", matchrserr.ErrValidation)
		}
	default:
		return nil, fmt.Errorf("%w: invalid time_in_force", matchrserr.ErrValidation)
	}

	if cmd.ClientOrderID != "" {
		key := cmd.UserID + "\x00" + cmd.ClientOrderID
		if _, exists := mw.clientOrderIndex[key]; exists {
			return nil, matchrserr.ErrDuplicateClientOrderID
		}
	}

	order := &domain.Order{
		ID:            mw.nextOrderID(),
		MarketID:      mkt.ID,
		UserID:        cmd.UserID,
		OrderType:     cmd.OrderType,
		Side:          cmd.Side,
		Price:         cmd.Price,
		BaseAmount:    cmd.BaseAmount,
		QuoteAmount:   cmd.QuoteAmount,
		MakerFee:      cmd.MakerFee,
		TakerFee:      cmd.TakerFee,
		RemainedBase:  cmd.BaseAmount,
		RemainedQuote: cmd.QuoteAmount,
		FilledBase:    decimal.Zero,
		FilledQuote:   decimal.Zero,
		FilledFee:     decimal.Zero,
		Status:        domain.Open,
		ClientOrderID: cmd.ClientOrderID,
		PostOnly:      cmd.PostOnly,
		TimeInForce:   cmd.TimeInForce,
		ExpiresAt:     cmd.ExpiresAt,
		CreateTime:    now,
		UpdateTime:    now,
	}
	return order, nil
}

// isMarketBuyByQuote reports whether order is the Market-Buy-by-quote case
// the spec's reservation and matching rules special-case throughout.
func isMarketBuyByQuote(order *domain.Order) bool {
	return order.OrderType == domain.Market && order.Side == domain.Buy
}

// isDust reports whether amount is a positive residual too small to
// represent at the given precision — treated as zero per §4.6 "Tie-breaks
// and edge cases".
func isDust(amount decimal.Decimal, precision int32) bool {
	return amount.IsPositive() && amount.Truncate(precision).IsZero()
}
