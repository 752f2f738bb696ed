package wallet

import (
	"sync"
	"time"

	"matchrs/internal/decimal"
	"matchrs/internal/domain"
	"matchrs/internal/matchrserr"
)

// Ledger is the process-wide wallet store. Callers are expected to hold the
// relevant KeyLocker.LockSet for every key an operation touches before
// calling into the ledger; the ledger's own mutex only protects the
// creation of new rows, not field mutations, matching the command-scoped
// locking described in §5.
type Ledger struct {
	mu      sync.Mutex
	wallets map[domain.WalletKey]*domain.Wallet
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{wallets: make(map[domain.WalletKey]*domain.Wallet)}
}

// getOrCreate returns the wallet row for key, creating a zeroed row on
// first deposit for a (user, asset) pair, per the ownership rule in §3.
func (l *Ledger) getOrCreate(key domain.WalletKey) *domain.Wallet {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.wallets[key]
	if !ok {
		w = &domain.Wallet{
			UserID:         key.UserID,
			Asset:          key.Asset,
			Available:      decimal.Zero,
			Locked:         decimal.Zero,
			Reserved:       decimal.Zero,
			TotalDeposited: decimal.Zero,
			TotalWithdrawn: decimal.Zero,
		}
		l.wallets[key] = w
	}
	return w
}

// Get returns a snapshot copy of a wallet row, or a zero-value row if it
// has never been created (reads are not required to hold a lock).
func (l *Ledger) Get(key domain.WalletKey) domain.Wallet {
	l.mu.Lock()
	w, ok := l.wallets[key]
	l.mu.Unlock()
	if !ok {
		return domain.Wallet{UserID: key.UserID, Asset: key.Asset}
	}
	return *w
}

// Restore overwrites the wallet row at key's identity with a prior
// snapshot, used by the engine's command journal to undo a mutation when
// a persistence commit fails.
func (l *Ledger) Restore(snapshot domain.Wallet) {
	key := domain.WalletKey{UserID: snapshot.UserID, Asset: snapshot.Asset}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.wallets[key] = &snapshot
}

func requirePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return matchrserr.ErrValidation
	}
	return nil
}

// Deposit increments available and total_deposited.
func (l *Ledger) Deposit(key domain.WalletKey, amount decimal.Decimal, now time.Time) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	w := l.getOrCreate(key)
	w.Available = w.Available.Add(amount)
	w.TotalDeposited = w.TotalDeposited.Add(amount)
	w.UpdateTime = now
	return nil
}

// Withdraw decrements available and increments total_withdrawn. Fails
// ErrInsufficientFunds if available < amount.
func (l *Ledger) Withdraw(key domain.WalletKey, amount decimal.Decimal, now time.Time) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	w := l.getOrCreate(key)
	if w.Available.LessThan(amount) {
		return matchrserr.ErrInsufficientFunds
	}
	w.Available = w.Available.Sub(amount)
	w.TotalWithdrawn = w.TotalWithdrawn.Add(amount)
	w.UpdateTime = now
	return nil
}

// LockFunds moves amount from available to locked, reserving it at order
// entry. Fails ErrInsufficientFunds if available < amount.
func (l *Ledger) LockFunds(key domain.WalletKey, amount decimal.Decimal, now time.Time) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	w := l.getOrCreate(key)
	if w.Available.LessThan(amount) {
		return matchrserr.ErrInsufficientFunds
	}
	w.Available = w.Available.Sub(amount)
	w.Locked = w.Locked.Add(amount)
	w.UpdateTime = now
	return nil
}

// UnlockFunds reverses LockFunds — used on cancellation and on IOC/FOK
// remainder release. Fails ErrInsufficientFunds if locked < amount (an
// invariant violation the caller should treat as Internal).
func (l *Ledger) UnlockFunds(key domain.WalletKey, amount decimal.Decimal, now time.Time) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	w := l.getOrCreate(key)
	if w.Locked.LessThan(amount) {
		return matchrserr.ErrInsufficientFunds
	}
	w.Locked = w.Locked.Sub(amount)
	w.Available = w.Available.Add(amount)
	w.UpdateTime = now
	return nil
}

// Settle moves gross out of from's locked balance: (gross - fee) credits
// to.available, and fee is credited to no wallet here; the caller accrues
// it into the fee treasury (C3) within the same command. All mutations are
// checked so no field goes negative (§4.2, §8 property 2).
func (l *Ledger) Settle(from, to domain.WalletKey, gross, fee decimal.Decimal, now time.Time) error {
	if gross.IsNegative() || fee.IsNegative() {
		return matchrserr.ErrValidation
	}
	if fee.GreaterThan(gross) {
		return matchrserr.ErrValidation
	}
	fromWallet := l.getOrCreate(from)
	if fromWallet.Locked.LessThan(gross) {
		return matchrserr.ErrInsufficientFunds
	}
	net := gross.Sub(fee)

	toWallet := l.getOrCreate(to)

	fromWallet.Locked = fromWallet.Locked.Sub(gross)
	toWallet.Available = toWallet.Available.Add(net)

	fromWallet.UpdateTime = now
	toWallet.UpdateTime = now
	return nil
}
