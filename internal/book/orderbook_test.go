package book_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchrs/internal/book"
	"matchrs/internal/decimal"
	"matchrs/internal/domain"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.New(s)
	require.NoError(t, err)
	return v
}

func order(t *testing.T, id string, side domain.Side, price string, base string) *domain.Order {
	return &domain.Order{
		ID:           id,
		Side:         side,
		Price:        mustDecimal(t, price),
		BaseAmount:   mustDecimal(t, base),
		RemainedBase: mustDecimal(t, base),
	}
}

func TestOrderBook_BestPriceOrdering(t *testing.T) {
	ob := book.NewOrderBook("BTC-USDT")

	ob.Insert(order(t, "bid-1", domain.Buy, "99.00", "1"))
	ob.Insert(order(t, "bid-2", domain.Buy, "100.00", "1"))
	ob.Insert(order(t, "ask-1", domain.Sell, "102.00", "1"))
	ob.Insert(order(t, "ask-2", domain.Sell, "101.00", "1"))

	bestBid, ok := ob.BestBid()
	require.True(t, ok)
	assert.True(t, bestBid.Price.Equal(mustDecimal(t, "100.00")), "best bid must be the highest price")

	bestAsk, ok := ob.BestAsk()
	require.True(t, ok)
	assert.True(t, bestAsk.Price.Equal(mustDecimal(t, "101.00")), "best ask must be the lowest price")
}

func TestOrderBook_FIFOWithinLevel(t *testing.T) {
	ob := book.NewOrderBook("BTC-USDT")
	ob.Insert(order(t, "first", domain.Sell, "100.00", "1"))
	ob.Insert(order(t, "second", domain.Sell, "100.00", "2"))

	level, ok := ob.BestAsk()
	require.True(t, ok)
	front, ok := level.PeekFront()
	require.True(t, ok)
	assert.Equal(t, "first", front.ID, "earliest arrival at a price must be the maker")
}

func TestOrderBook_Crosses(t *testing.T) {
	ob := book.NewOrderBook("BTC-USDT")
	ob.Insert(order(t, "ask-1", domain.Sell, "100.00", "1"))

	assert.True(t, ob.Crosses(domain.Buy, mustDecimal(t, "100.00"), false), "buy at the ask price crosses")
	assert.True(t, ob.Crosses(domain.Buy, mustDecimal(t, "101.00"), false), "buy above the ask price crosses")
	assert.False(t, ob.Crosses(domain.Buy, mustDecimal(t, "99.00"), false), "buy below the ask price does not cross")
	assert.True(t, ob.Crosses(domain.Buy, decimal.Zero, true), "a market order always crosses while liquidity exists")
}

func TestOrderBook_RemoveDropsEmptyLevel(t *testing.T) {
	ob := book.NewOrderBook("BTC-USDT")
	ob.Insert(order(t, "only", domain.Sell, "100.00", "1"))

	removed, ok := ob.Remove("only")
	require.True(t, ok)
	assert.Equal(t, "only", removed.ID)
	assert.False(t, ob.Contains("only"))

	_, ok = ob.BestAsk()
	assert.False(t, ok, "the level must be dropped once its last order is removed")
}
