// Package matchrserr defines the sentinel error kinds produced by the
// matching core, per the error taxonomy in the engine design.
package matchrserr

import "errors"

var (
	// ErrValidation covers malformed input, precision violations, and
	// min-amount violations.
	ErrValidation = errors.New("validation error")

	// ErrMarketNotFound is returned when a command references an unknown market.
	ErrMarketNotFound = errors.New("market not found")

	// ErrMarketNotActive is returned when a command requires an Active market
	// and the market's worker is Stopped.
	ErrMarketNotActive = errors.New("market not active")

	// ErrInsufficientFunds is returned by the wallet ledger when a withdraw
	// or lock would drive a balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateClientOrderID is returned when (user_id, client_order_id)
	// collides with an existing order.
	ErrDuplicateClientOrderID = errors.New("duplicate client order id")

	// ErrPostOnlyCross is returned when a post-only order would cross the book.
	ErrPostOnlyCross = errors.New("post-only order would cross")

	// ErrFillOrKillUnfillable is returned when a FOK precheck fails.
	ErrFillOrKillUnfillable = errors.New("fill-or-kill order cannot be fully filled")

	// ErrOrderNotFound is returned by cancel on an unknown or terminal order id.
	ErrOrderNotFound = errors.New("order not found")

	// ErrNumericOverflow is returned by the decimal layer when a value exceeds
	// its representable envelope.
	ErrNumericOverflow = errors.New("numeric overflow")

	// ErrScale is returned when a value cannot be represented at a target
	// precision without rounding, in a context that forbids it.
	ErrScale = errors.New("value not representable at target scale")

	// ErrPersistence wraps failures propagated from the persistence port.
	ErrPersistence = errors.New("persistence error")

	// ErrInternal marks an invariant violation. The owning market is stopped.
	ErrInternal = errors.New("internal invariant violation")
)
