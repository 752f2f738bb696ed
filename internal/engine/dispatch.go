package engine

import (
	"errors"
	"time"

	"matchrs/internal/command"
	"matchrs/internal/decimal"
	"matchrs/internal/domain"
	"matchrs/internal/matchrserr"
)

// AddOrder routes cmd to its market's single-writer worker and blocks
// until the full AddOrder protocol (§4.6) has run — validate, reserve,
// match, persist — giving the caller the command's final order and every
// trade it produced (C10).
func (e *Engine) AddOrder(cmd command.AddOrder, now time.Time) (command.AddOrderResult, error) {
	mw, err := e.worker(cmd.MarketID)
	if err != nil {
		return command.AddOrderResult{}, err
	}
	var result command.AddOrderResult
	var resultErr error
	mw.do(func() {
		result, resultErr = e.handleAddOrder(mw, cmd, now)
		e.stopOnInternal(mw, resultErr)
	})
	return result, resultErr
}

// CancelOrder implements the Cancel operation (§4.6 "Cancel").
func (e *Engine) CancelOrder(marketID, orderID string, now time.Time) error {
	mw, err := e.worker(marketID)
	if err != nil {
		return err
	}
	var resultErr error
	mw.do(func() {
		resultErr = e.cancelOrder(mw, orderID, now)
		e.stopOnInternal(mw, resultErr)
	})
	return resultErr
}

// CancelAllOrders cancels every order the market's worker currently tracks
// as live.
func (e *Engine) CancelAllOrders(marketID string, now time.Time) error {
	mw, err := e.worker(marketID)
	if err != nil {
		return err
	}
	var resultErr error
	mw.do(func() {
		resultErr = e.cancelAllOrders(mw, now)
		e.stopOnInternal(mw, resultErr)
	})
	return resultErr
}

// stopOnInternal implements §7's Internal-error policy: an invariant
// violation places the owning market in Stopped and logs the condition,
// rather than silently persisting partial state.
func (e *Engine) stopOnInternal(mw *marketWorker, err error) {
	if err == nil || !errors.Is(err, matchrserr.ErrInternal) {
		return
	}
	mkt := mw.market
	mkt.Status = domain.MarketSuspended
	mw.setStatusLocked(mkt, WorkerStopped)
	e.log.Error().Str("market_id", mkt.ID).Err(err).Msg("internal invariant violation, market stopped")
}

// Deposit credits a user's available balance for asset (§6 "Deposit").
// Wallets are shared across markets and are not routed through any
// market's command queue (§5); a per-key lock is enough to serialize with
// any in-flight trade touching the same wallet row.
func (e *Engine) Deposit(userID, asset string, amount decimal.Decimal, now time.Time) (domain.Wallet, error) {
	key := domain.WalletKey{UserID: userID, Asset: asset}
	ls := e.locker.Lock(key)
	defer ls.Unlock()

	snap := e.ledger.Get(key)
	if err := e.ledger.Deposit(key, amount, now); err != nil {
		return domain.Wallet{}, err
	}
	w := e.ledger.Get(key)

	tx := e.store.Begin()
	tx.UpdateWallet(w)
	if err := tx.Commit(); err != nil {
		e.ledger.Restore(snap)
		return domain.Wallet{}, matchrserr.ErrPersistence
	}
	return w, nil
}

// Withdraw debits a user's available balance for asset (§6 "Withdraw").
func (e *Engine) Withdraw(userID, asset string, amount decimal.Decimal, now time.Time) (domain.Wallet, error) {
	key := domain.WalletKey{UserID: userID, Asset: asset}
	ls := e.locker.Lock(key)
	defer ls.Unlock()

	snap := e.ledger.Get(key)
	if err := e.ledger.Withdraw(key, amount, now); err != nil {
		return domain.Wallet{}, err
	}
	w := e.ledger.Get(key)

	tx := e.store.Begin()
	tx.UpdateWallet(w)
	if err := tx.Commit(); err != nil {
		e.ledger.Restore(snap)
		return domain.Wallet{}, matchrserr.ErrPersistence
	}
	return w, nil
}

// GetBalance reads a user's wallet row for one asset (§6 "GetBalance").
func (e *Engine) GetBalance(userID, asset string) domain.Wallet {
	return e.ledger.Get(domain.WalletKey{UserID: userID, Asset: asset})
}
