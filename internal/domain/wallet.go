package domain

import (
	"time"

	"matchrs/internal/decimal"
)

// WalletKey identifies a single (user, asset) ledger row.
type WalletKey struct {
	UserID string
	Asset  string
}

// Less provides the deterministic lexicographic ordering the concurrency
// model requires when a command must acquire multiple wallet locks (§5).
func (k WalletKey) Less(other WalletKey) bool {
	if k.UserID != other.UserID {
		return k.UserID < other.UserID
	}
	return k.Asset < other.Asset
}

// Wallet is a single (user_id, asset) ledger row. available + locked +
// reserved is the user's spendable-plus-in-flight total for that asset.
type Wallet struct {
	UserID         string
	Asset          string
	Available      decimal.Decimal
	Locked         decimal.Decimal
	Reserved       decimal.Decimal
	TotalDeposited decimal.Decimal
	TotalWithdrawn decimal.Decimal
	UpdateTime     time.Time
}

// Key returns the wallet's ledger key.
func (w *Wallet) Key() WalletKey {
	return WalletKey{UserID: w.UserID, Asset: w.Asset}
}

// FeeTreasury is the per-(market, asset) fee accrual row.
type FeeTreasury struct {
	MarketID        string
	Asset           string
	TreasuryAddress string
	CollectedAmount decimal.Decimal
	LastUpdateTime  time.Time
}

// MarketStats is the rolling 24h summary for one market.
type MarketStats struct {
	MarketID       string
	High24h        decimal.Decimal
	Low24h         decimal.Decimal
	Volume24h      decimal.Decimal
	PriceChange24h decimal.Decimal
	LastPrice      decimal.Decimal
	LastUpdateTime time.Time
}
