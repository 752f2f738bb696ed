package engine_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchrs/internal/command"
	"matchrs/internal/domain"
	"matchrs/internal/engine"
	"matchrs/internal/matchrserr"
	"matchrs/internal/persistence/memstore"
)

// TestAddOrder_PersistenceFailureRollsBack exercises §8 property 7: a
// persistence commit failure must leave the book and wallets exactly as
// they were before the command, with the error surfaced to the caller.
func TestAddOrder_PersistenceFailureRollsBack(t *testing.T) {
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

	deposit(t, eng, "alice", "BTC", "1")
	before := eng.GetBalance("alice", "BTC")

	store.FailNextCommit()

	cmd := limitOrder(mkt.ID, "alice", domain.Sell, d(t, "50000"), d(t, "1"), d(t, "0.001"), d(t, "0.002"))
	_, err = eng.AddOrder(cmd, now())
	assert.ErrorIs(t, err, matchrserr.ErrPersistence)

	after := eng.GetBalance("alice", "BTC")
	assert.True(t, before.Available.Equal(after.Available), "available must be unchanged after a rolled-back command")
	assert.True(t, after.Locked.IsZero(), "reservation must be unwound on persistence failure")

	// The book must not contain the order either: a follow-up sell at the
	// same price should rest as the only order in the level, not stack
	// alongside a ghost from the failed command.
	res, err := eng.AddOrder(limitOrder(mkt.ID, "alice", domain.Sell, d(t, "50000"), d(t, "0.5"), d(t, "0.001"), d(t, "0.002")), now())
	require.NoError(t, err)
	assert.Equal(t, domain.Open, res.Order.Status)

	// A buyer for 1 BTC at that price must meet only the 0.5 BTC order.
	deposit(t, eng, "bob", "USDT", "60000")
	buyRes, err := eng.AddOrder(limitOrder(mkt.ID, "bob", domain.Buy, d(t, "50000"), d(t, "1"), d(t, "0.001"), d(t, "0.002")), now())
	require.NoError(t, err)
	require.Len(t, buyRes.Trades, 1)
	assert.Equal(t, res.Order.ID, buyRes.Trades[0].SellerOrderID)
	assert.True(t, buyRes.Trades[0].BaseAmount.Equal(d(t, "0.5")), "got %s", buyRes.Trades[0].BaseAmount)
}
