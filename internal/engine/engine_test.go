package engine_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchrs/internal/command"
	"matchrs/internal/decimal"
	"matchrs/internal/domain"
	"matchrs/internal/engine"
	"matchrs/internal/matchrserr"
	"matchrs/internal/persistence/memstore"
)

// newTestEngine returns an engine with a single BTC/USDT market, active
// and ready to trade, at the precisions spec.md §8 uses for its scenarios
// (price=2, amount=4; maker_fee=0.001, taker_fee=0.002).
func newTestEngine(t *testing.T) (*engine.Engine, domain.Market) {
	t.Helper()
	eng := engine.New(zerolog.Nop(), memstore.New())

	mkt, err := eng.CreateMarket(command.CreateMarket{
		ID:              "BTC-USDT",
		BaseAsset:       "BTC",
		QuoteAsset:      "USDT",
		DefaultMakerFee: d(t, "0.001"),
		DefaultTakerFee: d(t, "0.002"),
		MinBaseAmount:   d(t, "0.0001"),
		MinQuoteAmount:  d(t, "1"),
		PricePrecision:  2,
		AmountPrecision: 4,
	}, now())
	require.NoError(t, err)

	require.NoError(t, eng.StartMarket(mkt.ID, now()))
	return eng, mkt
}

func now() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

func d(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.New(s)
	require.NoError(t, err)
	return v
}

func deposit(t *testing.T, eng *engine.Engine, user, asset, amount string) {
	t.Helper()
	_, err := eng.Deposit(user, asset, d(t, amount), now())
	require.NoError(t, err)
}

func limitOrder(marketID, user string, side domain.Side, price, base, makerFee, takerFee decimal.Decimal) command.AddOrder {
	return command.AddOrder{
		MarketID:    marketID,
		UserID:      user,
		OrderType:   domain.Limit,
		Side:        side,
		Price:       price,
		BaseAmount:  base,
		MakerFee:    makerFee,
		TakerFee:    takerFee,
		TimeInForce: domain.GTC,
	}
}

// S1 — Limit cross, full fill.
func TestAddOrder_LimitCrossFullFill(t *testing.T) {
	eng, mkt := newTestEngine(t)
	deposit(t, eng, "alice", "USDT", "60000")
	deposit(t, eng, "bob", "BTC", "1")

	buyRes, err := eng.AddOrder(limitOrder(mkt.ID, "alice", domain.Buy, d(t, "50000"), d(t, "1"), d(t, "0.001"), d(t, "0.002")), now())
	require.NoError(t, err)
	assert.Equal(t, domain.Open, buyRes.Order.Status)
	assert.Empty(t, buyRes.Trades)

	sellRes, err := eng.AddOrder(limitOrder(mkt.ID, "bob", domain.Sell, d(t, "50000"), d(t, "1"), d(t, "0.001"), d(t, "0.002")), now())
	require.NoError(t, err)

	require.Len(t, sellRes.Trades, 1)
	trade := sellRes.Trades[0]
	assert.True(t, trade.Price.Equal(d(t, "50000")))
	assert.True(t, trade.BaseAmount.Equal(d(t, "1")))
	assert.True(t, trade.QuoteAmount.Equal(d(t, "50000")))

	assert.Equal(t, domain.Filled, sellRes.Order.Status)

	// Alice's order rested first, so she is the maker and is charged her
	// own maker_fee (0.001); Bob's crossed in as the taker and is charged
	// his own taker_fee (0.002) — per §4.6 step 5's fee formula, each side
	// pays the fee field matching its own role in this trade.
	aliceBTC := eng.GetBalance("alice", "BTC")
	assert.True(t, aliceBTC.Available.Equal(d(t, "0.999")), "alice (maker) should gain 0.999 BTC net of her 0.001 maker fee, got %s", aliceBTC.Available)

	bobUSDT := eng.GetBalance("bob", "USDT")
	assert.True(t, bobUSDT.Available.Equal(d(t, "49900")), "bob (taker) should gain 49900 USDT net of his 0.002 taker fee, got %s", bobUSDT.Available)

	btcTreasury := eng.Treasury().Snapshot(mkt.ID, "BTC")
	assert.True(t, btcTreasury.CollectedAmount.Equal(d(t, "0.001")))
	usdtTreasury := eng.Treasury().Snapshot(mkt.ID, "USDT")
	assert.True(t, usdtTreasury.CollectedAmount.Equal(d(t, "100")))

	// Alice's buy-limit reservation locked 50100 USDT at entry (her own
	// taker_fee padding the notional, per §4.2) but she filled as maker and
	// was charged her maker_fee in BTC instead, so only 50000 quote was ever
	// spent out of locked. The 100 USDT margin must be released back to
	// available once she reaches Filled, not stranded in locked.
	aliceUSDT := eng.GetBalance("alice", "USDT")
	assert.True(t, aliceUSDT.Locked.IsZero(), "alice's unused reservation margin must be unlocked on fill, got locked=%s", aliceUSDT.Locked)
	assert.True(t, aliceUSDT.Available.Equal(d(t, "10000")), "alice should have her 60000 deposit minus the 50000 quote she spent (the 100 margin is returned), got %s", aliceUSDT.Available)
}

// S2 — Partial fill then rest.
func TestAddOrder_PartialFillThenRest(t *testing.T) {
	eng, mkt := newTestEngine(t)
	deposit(t, eng, "alice", "BTC", "2")
	deposit(t, eng, "bob", "USDT", "100000")

	sellRes, err := eng.AddOrder(limitOrder(mkt.ID, "alice", domain.Sell, d(t, "50000"), d(t, "2"), d(t, "0.001"), d(t, "0.002")), now())
	require.NoError(t, err)
	assert.Equal(t, domain.Open, sellRes.Order.Status)

	buyRes, err := eng.AddOrder(limitOrder(mkt.ID, "bob", domain.Buy, d(t, "50100"), d(t, "1.5"), d(t, "0.001"), d(t, "0.002")), now())
	require.NoError(t, err)

	require.Len(t, buyRes.Trades, 1)
	assert.True(t, buyRes.Trades[0].BaseAmount.Equal(d(t, "1.5")))
	assert.True(t, buyRes.Trades[0].Price.Equal(d(t, "50000")), "maker sets the trade price")
	assert.Equal(t, domain.Filled, buyRes.Order.Status)
}

// S3 — Market buy by quote.
func TestAddOrder_MarketBuyByQuote(t *testing.T) {
	eng, mkt := newTestEngine(t)
	deposit(t, eng, "x", "BTC", "0.4")
	deposit(t, eng, "y", "BTC", "0.4")
	deposit(t, eng, "c", "USDT", "100000")

	_, err := eng.AddOrder(limitOrder(mkt.ID, "x", domain.Sell, d(t, "50000"), d(t, "0.4"), d(t, "0.001"), d(t, "0.002")), now())
	require.NoError(t, err)
	_, err = eng.AddOrder(limitOrder(mkt.ID, "y", domain.Sell, d(t, "50100"), d(t, "0.4"), d(t, "0.001"), d(t, "0.002")), now())
	require.NoError(t, err)

	res, err := eng.AddOrder(command.AddOrder{
		MarketID:    mkt.ID,
		UserID:      "c",
		OrderType:   domain.Market,
		Side:        domain.Buy,
		QuoteAmount: d(t, "35000"),
		MakerFee:    d(t, "0.001"),
		TakerFee:    d(t, "0.002"),
		TimeInForce: domain.IOC,
		ExpiresAt:   expiresIn(t, time.Minute),
	}, now())
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	assert.True(t, res.Trades[0].Price.Equal(d(t, "50000")))
	assert.True(t, res.Trades[0].BaseAmount.Equal(d(t, "0.4")))
	assert.True(t, res.Trades[1].Price.Equal(d(t, "50100")))
	assert.True(t, res.Trades[1].BaseAmount.Equal(d(t, "0.2994")), "got %s", res.Trades[1].BaseAmount)
	assert.True(t, res.Trades[1].QuoteAmount.Equal(d(t, "14999.94")), "0.2994 * 50100 quantized to 2dp, got %s", res.Trades[1].QuoteAmount)

	cUSDT := eng.GetBalance("c", "USDT")
	// locked reservation (35000) minus what was actually spent (20000 + 14999.94)
	// is refunded back to available.
	assert.True(t, cUSDT.Locked.IsZero(), "residual lock must be released, got %s", cUSDT.Locked)
}

// S4 — Post-only rejection.
func TestAddOrder_PostOnlyCross(t *testing.T) {
	eng, mkt := newTestEngine(t)
	deposit(t, eng, "seller", "BTC", "1")
	deposit(t, eng, "buyer", "USDT", "100000")

	_, err := eng.AddOrder(limitOrder(mkt.ID, "seller", domain.Sell, d(t, "50000"), d(t, "1"), d(t, "0.001"), d(t, "0.002")), now())
	require.NoError(t, err)

	before := eng.GetBalance("buyer", "USDT")

	cmd := limitOrder(mkt.ID, "buyer", domain.Buy, d(t, "50000"), d(t, "1"), d(t, "0.001"), d(t, "0.002"))
	cmd.PostOnly = true
	_, err = eng.AddOrder(cmd, now())
	assert.ErrorIs(t, err, matchrserr.ErrPostOnlyCross)

	after := eng.GetBalance("buyer", "USDT")
	assert.True(t, before.Available.Equal(after.Available), "no funds should move on post-only rejection")
	assert.True(t, after.Locked.IsZero())
}

// S5 — Fill-or-kill.
func TestAddOrder_FillOrKillUnfillable(t *testing.T) {
	eng, mkt := newTestEngine(t)
	deposit(t, eng, "seller", "BTC", "0.5")
	deposit(t, eng, "buyer", "USDT", "100000")

	_, err := eng.AddOrder(limitOrder(mkt.ID, "seller", domain.Sell, d(t, "50000"), d(t, "0.5"), d(t, "0.001"), d(t, "0.002")), now())
	require.NoError(t, err)

	cmd := command.AddOrder{
		MarketID:    mkt.ID,
		UserID:      "buyer",
		OrderType:   domain.Limit,
		Side:        domain.Buy,
		Price:       d(t, "50000"),
		BaseAmount:  d(t, "1"),
		MakerFee:    d(t, "0.001"),
		TakerFee:    d(t, "0.002"),
		TimeInForce: domain.FOK,
		ExpiresAt:   expiresIn(t, time.Minute),
	}
	_, err = eng.AddOrder(cmd, now())
	assert.ErrorIs(t, err, matchrserr.ErrFillOrKillUnfillable)

	balance := eng.GetBalance("buyer", "USDT")
	assert.True(t, balance.Locked.IsZero(), "rejected FOK must not leave a reservation")
}

// S6 — Cancel reservation return.
func TestCancelOrder_ReservationReturn(t *testing.T) {
	eng, mkt := newTestEngine(t)
	deposit(t, eng, "seller", "BTC", "1")

	before := eng.GetBalance("seller", "BTC")

	res, err := eng.AddOrder(limitOrder(mkt.ID, "seller", domain.Sell, d(t, "60000"), d(t, "1"), d(t, "0.001"), d(t, "0.002")), now())
	require.NoError(t, err)

	locked := eng.GetBalance("seller", "BTC")
	assert.True(t, locked.Locked.Equal(d(t, "1")))

	require.NoError(t, eng.CancelOrder(mkt.ID, res.Order.ID, now()))

	after := eng.GetBalance("seller", "BTC")
	assert.True(t, after.Available.Equal(before.Available))
	assert.True(t, after.Locked.IsZero())

	// Idempotent cancellation: canceling an already-terminal order fails
	// with OrderNotFound and must not mutate state further.
	err = eng.CancelOrder(mkt.ID, res.Order.ID, now())
	assert.ErrorIs(t, err, matchrserr.ErrOrderNotFound)
}

// TestAddOrder_FeeTreasuryPersisted exercises §4.6 step 7 / §4.3: fee
// accrual must go through the same persistence transaction as the trade
// that generated it, not just update the in-memory treasury.
func TestAddOrder_FeeTreasuryPersisted(t *testing.T) {
	store := memstore.New()
	eng := engine.New(zerolog.Nop(), store)

	mkt, err := eng.CreateMarket(command.CreateMarket{
		ID:              "BTC-USDT",
		BaseAsset:       "BTC",
		QuoteAsset:      "USDT",
		DefaultMakerFee: d(t, "0.001"),
		DefaultTakerFee: d(t, "0.002"),
		MinBaseAmount:   d(t, "0.0001"),
		MinQuoteAmount:  d(t, "1"),
		PricePrecision:  2,
		AmountPrecision: 4,
	}, now())
	require.NoError(t, err)
	require.NoError(t, eng.StartMarket(mkt.ID, now()))

	deposit(t, eng, "alice", "USDT", "60000")
	deposit(t, eng, "bob", "BTC", "1")

	_, err = eng.AddOrder(limitOrder(mkt.ID, "alice", domain.Buy, d(t, "50000"), d(t, "1"), d(t, "0.001"), d(t, "0.002")), now())
	require.NoError(t, err)
	_, err = eng.AddOrder(limitOrder(mkt.ID, "bob", domain.Sell, d(t, "50000"), d(t, "1"), d(t, "0.001"), d(t, "0.002")), now())
	require.NoError(t, err)

	btcRow, ok := store.FeeTreasury(mkt.ID, "BTC")
	require.True(t, ok, "BTC fee-treasury row must be staged and committed through the persistence port")
	assert.True(t, btcRow.CollectedAmount.Equal(d(t, "0.001")), "got %s", btcRow.CollectedAmount)

	usdtRow, ok := store.FeeTreasury(mkt.ID, "USDT")
	require.True(t, ok, "USDT fee-treasury row must be staged and committed through the persistence port")
	assert.True(t, usdtRow.CollectedAmount.Equal(d(t, "100")), "got %s", usdtRow.CollectedAmount)
}

func expiresIn(t *testing.T, d time.Duration) *time.Time {
	t.Helper()
	at := now().Add(d)
	return &at
}
