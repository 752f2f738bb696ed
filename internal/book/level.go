// Package book implements the price-level queue (C4) and the order book
// (C5): two price-indexed ladders, an order index for O(log P)
// cancellation, and the crossing/iteration primitives the matching engine
// drives. Grounded on the teacher's internal/engine/orderbook.go PriceLevel
// and btree.BTreeG[*PriceLevel] ladders.
package book

import (
	"container/list"

	"matchrs/internal/decimal"
	"matchrs/internal/domain"
)

// PriceLevel is a FIFO queue of resting orders at one price, on one side.
// It is backed by a doubly-linked list so push_back/pop_front/peek_front
// and remove_by_id (via the id->element index) are all O(1), generalizing
// the teacher's bare []*Order slice, which only supported an O(n) rebuild
// on removal.
type PriceLevel struct {
	Price decimal.Decimal
	Side  domain.Side

	orders *list.List
	index  map[string]*list.Element
}

// NewPriceLevel returns an empty level at the given price and side.
func NewPriceLevel(price decimal.Decimal, side domain.Side) *PriceLevel {
	return &PriceLevel{
		Price:  price,
		Side:   side,
		orders: list.New(),
		index:  make(map[string]*list.Element),
	}
}

// Len returns the number of resting orders at this level.
func (pl *PriceLevel) Len() int { return pl.orders.Len() }

// PushBack appends order to the back of the queue.
func (pl *PriceLevel) PushBack(order *domain.Order) {
	elem := pl.orders.PushBack(order)
	pl.index[order.ID] = elem
}

// PeekFront returns the order at the head of the queue without removing it.
func (pl *PriceLevel) PeekFront() (*domain.Order, bool) {
	front := pl.orders.Front()
	if front == nil {
		return nil, false
	}
	return front.Value.(*domain.Order), true
}

// PopFront removes and returns the order at the head of the queue.
func (pl *PriceLevel) PopFront() (*domain.Order, bool) {
	front := pl.orders.Front()
	if front == nil {
		return nil, false
	}
	order := front.Value.(*domain.Order)
	pl.orders.Remove(front)
	delete(pl.index, order.ID)
	return order, true
}

// RemoveByID removes the order with the given id from anywhere in the
// queue in O(1), preserving the relative FIFO order of the rest.
func (pl *PriceLevel) RemoveByID(orderID string) (*domain.Order, bool) {
	elem, ok := pl.index[orderID]
	if !ok {
		return nil, false
	}
	order := elem.Value.(*domain.Order)
	pl.orders.Remove(elem)
	delete(pl.index, orderID)
	return order, true
}

// TotalRemainingBase sums RemainedBase across every resting order at this
// level — used by the FOK precheck and by depth reporting.
func (pl *PriceLevel) TotalRemainingBase() decimal.Decimal {
	total := decimal.Zero
	for e := pl.orders.Front(); e != nil; e = e.Next() {
		total = total.Add(e.Value.(*domain.Order).RemainedBase)
	}
	return total
}

// Orders returns the resting orders in FIFO order as a fresh slice — safe
// to retain, used by tests and depth snapshots.
func (pl *PriceLevel) Orders() []*domain.Order {
	out := make([]*domain.Order, 0, pl.orders.Len())
	for e := pl.orders.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*domain.Order))
	}
	return out
}
