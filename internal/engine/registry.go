package engine

import (
	"fmt"
	"sort"
	"time"

	"matchrs/internal/command"
	"matchrs/internal/domain"
	"matchrs/internal/matchrserr"
)

// worker looks up the single-writer worker for marketID under the
// registry's read lock.
func (e *Engine) worker(marketID string) (*marketWorker, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	mw, ok := e.markets[marketID]
	if !ok {
		return nil, matchrserr.ErrMarketNotFound
	}
	return mw, nil
}

// CreateMarket implements C7 "Create": it persists the market row and
// instantiates a worker in the Stopped state (§4.7). (base_asset,
// quote_asset) uniqueness is enforced across every existing market (§3).
func (e *Engine) CreateMarket(cmd command.CreateMarket, now time.Time) (domain.Market, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.markets[cmd.ID]; exists {
		return domain.Market{}, fmt.Errorf("%w: market id %q already exists", matchrserr.ErrValidation, cmd.ID)
	}
	for _, mw := range e.markets {
		existing, _ := mw.snapshotStatus()
		if existing.BaseAsset == cmd.BaseAsset && existing.QuoteAsset == cmd.QuoteAsset {
			return domain.Market{}, fmt.Errorf("%w: (base_asset, quote_asset) pair already in use", matchrserr.ErrValidation)
		}
	}

	mkt := domain.Market{
		ID:              cmd.ID,
		BaseAsset:       cmd.BaseAsset,
		QuoteAsset:      cmd.QuoteAsset,
		DefaultMakerFee: cmd.DefaultMakerFee,
		DefaultTakerFee: cmd.DefaultTakerFee,
		MinBaseAmount:   cmd.MinBaseAmount,
		MinQuoteAmount:  cmd.MinQuoteAmount,
		PricePrecision:  cmd.PricePrecision,
		AmountPrecision: cmd.AmountPrecision,
		Status:          domain.MarketInactive,
		CreateTime:      now,
		UpdateTime:      now,
	}

	tx := e.store.Begin()
	tx.UpsertMarket(mkt)
	if err := tx.Commit(); err != nil {
		return domain.Market{}, matchrserr.ErrPersistence
	}

	mw := newMarketWorker(e, mkt)
	e.markets[mkt.ID] = mw
	return mkt, nil
}

// StartMarket transitions a market's worker Stopped -> Active
// (§4.7), routed through the worker's own command queue for FIFO
// consistency with every other per-market command (C10).
func (e *Engine) StartMarket(marketID string, now time.Time) error {
	mw, err := e.worker(marketID)
	if err != nil {
		return err
	}
	var resultErr error
	mw.do(func() {
		mkt := mw.market
		mkt.Status = domain.MarketActive
		mkt.UpdateTime = now

		tx := e.store.Begin()
		tx.UpsertMarket(mkt)
		if err := tx.Commit(); err != nil {
			resultErr = matchrserr.ErrPersistence
			return
		}
		mw.setStatusLocked(mkt, WorkerActive)
	})
	return resultErr
}

// StopMarket transitions a market's worker -> Stopped, canceling every
// open order (cancel-all-on-stop policy, §4.7).
func (e *Engine) StopMarket(marketID string, now time.Time) error {
	mw, err := e.worker(marketID)
	if err != nil {
		return err
	}
	var resultErr error
	mw.do(func() {
		mkt := mw.market
		mkt.Status = domain.MarketInactive
		mkt.UpdateTime = now
		mw.setStatusLocked(mkt, WorkerStopped)

		if err := e.cancelAllOrders(mw, now); err != nil {
			resultErr = err
		}

		tx := e.store.Begin()
		tx.UpsertMarket(mkt)
		if err := tx.Commit(); err != nil {
			resultErr = matchrserr.ErrPersistence
		}
	})
	return resultErr
}

// GetMarket returns a snapshot of a single market's persisted row.
func (e *Engine) GetMarket(marketID string) (domain.Market, error) {
	mw, err := e.worker(marketID)
	if err != nil {
		return domain.Market{}, err
	}
	mkt, _ := mw.snapshotStatus()
	return mkt, nil
}

// ListMarkets returns a snapshot of every market in the registry.
func (e *Engine) ListMarkets() []domain.Market {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.Market, 0, len(e.markets))
	for _, mw := range e.markets {
		mkt, _ := mw.snapshotStatus()
		out = append(out, mkt)
	}
	return out
}

// Recover reconstructs every market's in-memory book from the persistence
// port at startup, per the design note in §9 ("the book lives only in
// memory; recovery reconstructs it by loading all Open orders for each
// market at startup, in (price, create_time) order per side"). It is
// meant to be called once, before any command is dispatched.
func (e *Engine) Recover() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, mkt := range e.store.Markets() {
		if _, exists := e.markets[mkt.ID]; exists {
			continue
		}
		mw := newMarketWorker(e, mkt)
		e.markets[mkt.ID] = mw

		orders := e.store.OpenOrders(mkt.ID)
		sort.Slice(orders, func(i, j int) bool {
			if !orders[i].Price.Equal(orders[j].Price) {
				if orders[i].Side == domain.Buy {
					return orders[i].Price.GreaterThan(orders[j].Price)
				}
				return orders[i].Price.LessThan(orders[j].Price)
			}
			return orders[i].CreateTime.Before(orders[j].CreateTime)
		})

		mw.do(func() {
			for i := range orders {
				o := orders[i]
				mw.book.Insert(&o)
				mw.liveOrders[o.ID] = &o
				if o.ClientOrderID != "" {
					mw.clientOrderIndex[o.UserID+"\x00"+o.ClientOrderID] = o.ID
				}
			}
			if mkt.Status == domain.MarketActive {
				mw.state = WorkerActive
			}
		})
	}
	return nil
}
