package book

import (
	"github.com/tidwall/btree"

	"matchrs/internal/decimal"
	"matchrs/internal/domain"
)

// ladder is the btree of price levels for one side of one market, keyed by
// price, sorted either descending (bids) or ascending (asks). Grounded on
// the teacher's PriceLevels = btree.BTreeG[*PriceLevel] alias.
type ladder = btree.BTreeG[*PriceLevel]

// location is the order index entry: everything needed to cancel an order
// in O(log P) without a linear scan of either ladder.
type location struct {
	Side  domain.Side
	Price decimal.Decimal
	Level *PriceLevel
}

// OrderBook holds the two price-indexed ladders for a single market plus
// the order_id -> location index required for O(log P) cancellation.
// Grounded on the teacher's internal/engine.OrderBook, generalized from a
// float64-keyed single-engine book to a decimal-keyed, multi-market one
// with an explicit cancellation index (the teacher's book had none).
type OrderBook struct {
	MarketID string

	bids *ladder
	asks *ladder

	index map[string]location
}

// NewOrderBook returns an empty book for marketID. Bids are sorted
// descending (highest price first); asks ascending (lowest price first).
func NewOrderBook(marketID string) *OrderBook {
	return &OrderBook{
		MarketID: marketID,
		bids: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.Price.GreaterThan(b.Price)
		}),
		asks: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.Price.LessThan(b.Price)
		}),
		index: make(map[string]location),
	}
}

func (ob *OrderBook) ladderFor(side domain.Side) *ladder {
	if side == domain.Buy {
		return ob.bids
	}
	return ob.asks
}

// BestBid returns the highest-priced bid level, if any.
func (ob *OrderBook) BestBid() (*PriceLevel, bool) {
	return ob.bids.Min()
}

// BestAsk returns the lowest-priced ask level, if any.
func (ob *OrderBook) BestAsk() (*PriceLevel, bool) {
	return ob.asks.Min()
}

// BestOpposite returns the best crossing level for an incoming order on the
// given side: the best ask for an incoming buy, the best bid for an
// incoming sell.
func (ob *OrderBook) BestOpposite(side domain.Side) (*PriceLevel, bool) {
	if side == domain.Buy {
		return ob.BestAsk()
	}
	return ob.BestBid()
}

// Crosses reports whether an incoming order on the given side, at the
// given price (ignored for market orders), crosses the book: a buy crosses
// if the best ask is at or below the buy's price; a sell crosses if the
// best bid is at or above the sell's price.
func (ob *OrderBook) Crosses(side domain.Side, price decimal.Decimal, isMarket bool) bool {
	level, ok := ob.BestOpposite(side)
	if !ok {
		return false
	}
	if isMarket {
		return true
	}
	if side == domain.Buy {
		return level.Price.LessThanOrEqual(price)
	}
	return level.Price.GreaterThanOrEqual(price)
}

// Insert rests order in the book at order.Price on order.Side, creating
// the price level if one does not already exist, and records it in the
// order index.
func (ob *OrderBook) Insert(order *domain.Order) {
	ladder := ob.ladderFor(order.Side)
	level, found := ladder.Get(&PriceLevel{Price: order.Price})
	if !found {
		level = NewPriceLevel(order.Price, order.Side)
		ladder.Set(level)
	}
	level.PushBack(order)
	ob.index[order.ID] = location{Side: order.Side, Price: order.Price, Level: level}
}

// Remove cancels order_id wherever it rests in the book, dropping the
// price level entirely if it becomes empty. Returns (nil, false) if the
// order is not currently resting.
func (ob *OrderBook) Remove(orderID string) (*domain.Order, bool) {
	loc, ok := ob.index[orderID]
	if !ok {
		return nil, false
	}
	order, removed := loc.Level.RemoveByID(orderID)
	delete(ob.index, orderID)
	if loc.Level.Len() == 0 {
		ob.ladderFor(loc.Side).Delete(&PriceLevel{Price: loc.Price})
	}
	return order, removed
}

// DropMakerIfFilled removes the maker from its level (and the level from
// its ladder, if now empty) once it has been fully consumed by a match.
func (ob *OrderBook) DropMakerIfFilled(order *domain.Order) {
	if !order.RemainedBase.IsZero() {
		return
	}
	loc, ok := ob.index[order.ID]
	if !ok {
		return
	}
	loc.Level.PopFront()
	delete(ob.index, order.ID)
	if loc.Level.Len() == 0 {
		ob.ladderFor(loc.Side).Delete(&PriceLevel{Price: loc.Price})
	}
}

// Bids returns every bid level, best (highest) price first.
func (ob *OrderBook) Bids() []*PriceLevel {
	return items(ob.bids)
}

// Asks returns every ask level, best (lowest) price first.
func (ob *OrderBook) Asks() []*PriceLevel {
	return items(ob.asks)
}

func items(l *ladder) []*PriceLevel {
	out := make([]*PriceLevel, 0, l.Len())
	l.Scan(func(level *PriceLevel) bool {
		out = append(out, level)
		return true
	})
	return out
}

// Contains reports whether orderID currently rests in the book.
func (ob *OrderBook) Contains(orderID string) bool {
	_, ok := ob.index[orderID]
	return ok
}
