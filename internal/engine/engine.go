// Package engine is the per-market matching engine (C6) and the command
// dispatch layer that routes commands to each market's single-writer
// worker (C10). Grounded on the teacher's internal/engine.{Engine,
// OrderBook}.Match()/Trade() loop and the tomb.v2-supervised worker
// pattern in internal/net/server.go and internal/worker.go — the
// per-asset-type Books map is generalized here to a dynamic per-market
// registry (C7), and Trade() is replaced by the settlement-aware match
// loop in match.go.
package engine

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/tomb.v2"

	"matchrs/internal/persistence"
	"matchrs/internal/stats"
	"matchrs/internal/wallet"
)

// statsSweepInterval is how often the background sweeper prunes
// samples older than 24h from every market's rolling window (§4.9),
// independent of trade arrival so a quiet market's window still shrinks.
const statsSweepInterval = 5 * time.Minute

// Engine is the process-wide coordinator: one shared wallet ledger and fee
// treasury (wallets are shared across markets, §5), one shared stats
// tracker, and a dynamic registry of per-market single-writer workers.
type Engine struct {
	log zerolog.Logger

	ledger   *wallet.Ledger
	locker   *wallet.KeyLocker
	treasury *wallet.Treasury
	stats    *stats.Tracker
	store    persistence.Store

	mu      sync.RWMutex
	markets map[string]*marketWorker

	sweepTomb tomb.Tomb
}

// New returns an engine with empty wallets, treasury, and market registry,
// backed by store for persistence (C8).
func New(log zerolog.Logger, store persistence.Store) *Engine {
	return &Engine{
		log:      log,
		ledger:   wallet.NewLedger(),
		locker:   wallet.NewKeyLocker(),
		treasury: wallet.NewTreasury(),
		stats:    stats.NewTracker(),
		store:    store,
		markets:  make(map[string]*marketWorker),
	}
}

// Ledger exposes the shared wallet ledger for read-only reporting (balance
// queries, admin tooling) outside the per-market command surface.
func (e *Engine) Ledger() *wallet.Ledger { return e.ledger }

// Treasury exposes the shared fee treasury for read-only reporting.
func (e *Engine) Treasury() *wallet.Treasury { return e.treasury }

// Stats exposes the shared market-stats tracker for read-only reporting.
func (e *Engine) Stats() *stats.Tracker { return e.stats }

// StartStatsSweeper launches the background goroutine that prunes every
// market's rolling 24h stats window on a fixed tick (§4.9 "A background
// sweeper prunes data older than 24h"), supervised with the same
// gopkg.in/tomb.v2 idiom the per-market workers use. Safe to call once per
// Engine; StopStatsSweeper tears it down on shutdown.
func (e *Engine) StartStatsSweeper() {
	e.sweepTomb.Go(func() error {
		ticker := time.NewTicker(statsSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-e.sweepTomb.Dying():
				return nil
			case now := <-ticker.C:
				e.stats.PruneAll(now)
			}
		}
	})
}

// StopStatsSweeper signals the sweeper goroutine to exit and waits for it.
func (e *Engine) StopStatsSweeper() {
	e.sweepTomb.Kill(nil)
	_ = e.sweepTomb.Wait()
}
