// Package decimal is the single choke point for exact fixed-decimal math
// used anywhere money, price, or quantity is represented. No binary
// floating point value is ever used for a monetary quantity in this
// module; every such value is a github.com/shopspring/decimal.Decimal
// passed through the helpers here.
package decimal

import (
	"github.com/shopspring/decimal"

	"matchrs/internal/matchrserr"
)

// Decimal is re-exported so callers never need to import shopspring/decimal
// directly; it keeps this package the one choke point for rounding policy.
type Decimal = decimal.Decimal

// Zero is the additive identity.
var Zero = decimal.Zero

// New1 is the multiplicative identity, used by fee-factor math (1+fee).
var New1 = decimal.NewFromInt(1)

// MaxDigits bounds the total number of significant digits a value may carry
// before it is considered an overflow (30-digit envelope per the arithmetic
// design, with at least 8 fractional digits of headroom).
const MaxDigits = 30

// MinFractionalDigits is the minimum scale the envelope guarantees.
const MinFractionalDigits = 8

// New builds a Decimal from a string, the only safe way to construct one
// from a literal without going through a float.
func New(s string) (Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, err
	}
	return d, CheckOverflow(d)
}

// CheckOverflow rejects values whose digit count exceeds the 30-digit
// envelope described by the arithmetic design.
func CheckOverflow(d Decimal) error {
	digits := len(d.Coefficient().String())
	if d.Sign() < 0 {
		// Coefficient().String() on a negative value does not include a
		// sign for decimal's internal big.Int representation in all
		// versions; strip a leading '-' defensively.
		if digits > 0 {
			digits = len(d.Coefficient().Abs(d.Coefficient()).String())
		}
	}
	if digits > MaxDigits {
		return matchrserr.ErrNumericOverflow
	}
	return nil
}

// QuantizeFloor rounds toward zero to the given number of fractional
// digits. Used for crediting amounts, where rounding must never
// over-credit the receiving party.
func QuantizeFloor(d Decimal, scale int32) (Decimal, error) {
	out := d.Truncate(scale)
	return out, CheckOverflow(out)
}

// QuantizeBankers rounds half-to-even to the given number of fractional
// digits. Used for internal rate math (fee computation, price x quantity)
// where the spec calls for banker's rounding rather than floor.
func QuantizeBankers(d Decimal, scale int32) (Decimal, error) {
	out := d.RoundBank(scale)
	return out, CheckOverflow(out)
}

// QuantizeCeil rounds a non-negative value up to the given number of
// fractional digits; a negative value is truncated toward zero. Used to
// size a reservation so it
// never falls short of what a worst-case fill could consume — the buy-side
// reservation formula in §4.2 quantizes its ceiling this way.
func QuantizeCeil(d Decimal, scale int32) (Decimal, error) {
	out := d.Truncate(scale)
	if !out.Equal(d) && !d.IsNegative() {
		step := decimal.New(1, -scale)
		out = out.Add(step).Truncate(scale)
	}
	return out, CheckOverflow(out)
}

// QuantizeExact returns d unchanged if it is already representable with at
// most `scale` fractional digits; otherwise it returns ErrScale. Used for
// contexts that forbid rounding, such as validating an order's price
// against a market's price_precision.
func QuantizeExact(d Decimal, scale int32) (Decimal, error) {
	rounded := d.Truncate(scale)
	if !rounded.Equal(d) {
		return Decimal{}, matchrserr.ErrScale
	}
	return rounded, nil
}

// DivFloor divides two decimals, truncating toward zero to the given
// scale. Used where overshooting the quotient would violate a caller's
// budget constraint (e.g. capping a market-buy-by-quote fill so its cost
// never exceeds the taker's remaining locked quote).
func DivFloor(a, b Decimal, scale int32) (Decimal, error) {
	if b.IsZero() {
		return Decimal{}, matchrserr.ErrValidation
	}
	out, _ := a.QuoRem(b, scale)
	return out, CheckOverflow(out)
}

// DivBankers divides two decimals with banker's rounding to the given scale.
func DivBankers(a, b Decimal, scale int32) (Decimal, error) {
	if b.IsZero() {
		return Decimal{}, matchrserr.ErrValidation
	}
	// a = b*q + r exactly, with q truncated toward zero. q moves one step
	// away from zero when |r| is more than half of |b|*step, or exactly
	// half and q's last digit is odd.
	q, r := a.QuoRem(b, scale)
	step := decimal.New(1, -scale)
	twiceRem := r.Abs().Add(r.Abs())
	stepOfB := b.Abs().Mul(step)
	if c := twiceRem.Cmp(stepOfB); c > 0 || (c == 0 && q.Shift(scale).BigInt().Bit(0) == 1) {
		if a.Sign()*b.Sign() < 0 {
			q = q.Sub(step)
		} else {
			q = q.Add(step)
		}
	}
	return q, CheckOverflow(q)
}

// Mul multiplies two decimals, checking for overflow.
func Mul(a, b Decimal) (Decimal, error) {
	out := a.Mul(b)
	return out, CheckOverflow(out)
}

// Add adds two decimals, checking for overflow.
func Add(a, b Decimal) (Decimal, error) {
	out := a.Add(b)
	return out, CheckOverflow(out)
}

// Sub subtracts b from a, checking for overflow.
func Sub(a, b Decimal) (Decimal, error) {
	out := a.Sub(b)
	return out, CheckOverflow(out)
}

// Min returns the smaller of a and b.
func Min(a, b Decimal) Decimal {
	return decimal.Min(a, b)
}

// IsMultipleOf reports whether d is an exact multiple of 10^-scale, i.e.
// whether it quantizes to itself at that precision. Used to validate
// quantization invariants on persisted prices/amounts (property 5).
func IsMultipleOf(d Decimal, scale int32) bool {
	return d.Truncate(scale).Equal(d)
}
