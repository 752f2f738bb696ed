package wallet

import (
	"sync"
	"time"

	"matchrs/internal/decimal"
	"matchrs/internal/domain"
	"matchrs/internal/matchrserr"
)

// treasuryKey identifies a single (market, asset) fee-accrual row.
type treasuryKey struct {
	MarketID string
	Asset    string
}

// Treasury tracks fee accrual per (market, asset), C3. Reads are snapshots;
// writes happen within the same command as the settlement that generated
// the fee, after that settlement's wallet locks are released; the
// treasury's own mutex serializes every access.
type Treasury struct {
	mu   sync.Mutex
	rows map[treasuryKey]*domain.FeeTreasury
}

// NewTreasury returns an empty treasury.
func NewTreasury() *Treasury {
	return &Treasury{rows: make(map[treasuryKey]*domain.FeeTreasury)}
}

// SetAddress records the default treasury address for a (market, asset)
// pair; a no-op if never called, leaving TreasuryAddress empty.
func (t *Treasury) SetAddress(marketID, asset, address string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	row := t.getOrCreateLocked(marketID, asset)
	row.TreasuryAddress = address
}

func (t *Treasury) getOrCreateLocked(marketID, asset string) *domain.FeeTreasury {
	key := treasuryKey{MarketID: marketID, Asset: asset}
	row, ok := t.rows[key]
	if !ok {
		row = &domain.FeeTreasury{
			MarketID:        marketID,
			Asset:           asset,
			CollectedAmount: decimal.Zero,
		}
		t.rows[key] = row
	}
	return row
}

// Accrue adds amount to collected_amount for (market, asset). amount must
// be non-negative.
func (t *Treasury) Accrue(marketID, asset string, amount decimal.Decimal, now time.Time) error {
	if amount.IsNegative() {
		return matchrserr.ErrValidation
	}
	if amount.IsZero() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	row := t.getOrCreateLocked(marketID, asset)
	row.CollectedAmount = row.CollectedAmount.Add(amount)
	row.LastUpdateTime = now
	return nil
}

// Restore overwrites the (market, asset) row with a prior snapshot, used by
// the engine's command journal to undo an accrual on persistence failure.
func (t *Treasury) Restore(snapshot domain.FeeTreasury) {
	key := treasuryKey{MarketID: snapshot.MarketID, Asset: snapshot.Asset}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows[key] = &snapshot
}

// Snapshot returns a copy of the treasury row for (market, asset).
func (t *Treasury) Snapshot(marketID, asset string) domain.FeeTreasury {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := treasuryKey{MarketID: marketID, Asset: asset}
	row, ok := t.rows[key]
	if !ok {
		return domain.FeeTreasury{MarketID: marketID, Asset: asset}
	}
	return *row
}
