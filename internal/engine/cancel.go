package engine

import (
	"time"

	"matchrs/internal/decimal"
	"matchrs/internal/domain"
	"matchrs/internal/matchrserr"
)

// cancelOrder implements the Cancel operation (§4.6 "Cancel"): remove the
// order from its level via the index, unlock its outstanding reservation,
// set status Canceled, and persist — all as one command-scoped journal +
// transaction, consistent with every other mutating path in this package.
func (e *Engine) cancelOrder(mw *marketWorker, orderID string, now time.Time) error {
	order, ok := mw.liveOrders[orderID]
	if !ok {
		return matchrserr.ErrOrderNotFound
	}
	return e.cancelLiveOrder(mw, order, now)
}

func (e *Engine) cancelLiveOrder(mw *marketWorker, order *domain.Order, now time.Time) error {
	mkt := mw.market
	j := &journal{}

	orderSnapshot := *order
	mw.book.Remove(order.ID)
	delete(mw.liveOrders, order.ID)
	j.record(func() {
		*order = orderSnapshot
		mw.book.Insert(order)
		mw.liveOrders[order.ID] = order
	})

	resKey, resAmount, err := reservation(order, mkt)
	if err != nil {
		j.rollback()
		return err
	}
	spent := order.FilledBase
	if order.Side == domain.Buy {
		spent = order.FilledQuote
	}
	residual := resAmount.Sub(spent)
	if residual.IsNegative() {
		residual = decimal.Zero
	}
	if err := e.unlockFunds(j, resKey, residual, now); err != nil {
		j.rollback()
		return err
	}

	order.Status = domain.Canceled
	order.UpdateTime = now

	tx := e.store.Begin()
	tx.UpsertOrder(*order)
	tx.UpdateWallet(e.ledger.Get(resKey))
	if err := tx.Commit(); err != nil {
		j.rollback()
		return err
	}
	return nil
}

// cancelAllOrders cancels every order the worker currently tracks as live,
// best-effort: a failure canceling one order does not stop the sweep, and
// the first error encountered (if any) is returned after every order has
// been attempted.
func (e *Engine) cancelAllOrders(mw *marketWorker, now time.Time) error {
	ids := make([]string, 0, len(mw.liveOrders))
	for id := range mw.liveOrders {
		ids = append(ids, id)
	}
	var first error
	for _, id := range ids {
		order, ok := mw.liveOrders[id]
		if !ok {
			continue
		}
		if err := e.cancelLiveOrder(mw, order, now); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// expireResting cancels every resting order whose expires_at has passed,
// run at the top of every AddOrder before matching begins (§4.6 "Expiry").
func (e *Engine) expireResting(mw *marketWorker, now time.Time) {
	ids := make([]string, 0)
	for id, order := range mw.liveOrders {
		if order.Expired(now) {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		order, ok := mw.liveOrders[id]
		if !ok {
			continue
		}
		_ = e.cancelLiveOrder(mw, order, now)
	}
}
