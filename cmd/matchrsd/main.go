// Command matchrsd is the matching-engine daemon entrypoint (C14). It
// wires the persistence port, the wallet ledger, and the market registry
// together, recovers any previously persisted markets, and then blocks
// until asked to shut down. The command/transport surface that drives the
// engine in production (gRPC, a CLI, a message bus) is an external
// collaborator outside this repo's scope (spec.md §1); this binary is the
// process boundary the transport layer attaches to via the engine's
// exported Go API.
package main

import (
	"context"
	"os"
	"syscall"

	"os/signal"

	"github.com/rs/zerolog"

	"matchrs/internal/config"
	"matchrs/internal/engine"
	"matchrs/internal/persistence/memstore"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	log := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	store := memstore.New()
	eng := engine.New(log, store)

	if err := eng.Recover(); err != nil {
		log.Error().Err(err).Msg("failed to recover markets from persistence")
		return
	}

	for _, mkt := range eng.ListMarkets() {
		for _, asset := range []string{mkt.BaseAsset, mkt.QuoteAsset} {
			if addr, ok := cfg.TreasuryAddresses[asset]; ok {
				eng.Treasury().SetAddress(mkt.ID, asset, addr)
			}
		}
	}

	eng.StartStatsSweeper()
	defer eng.StopStatsSweeper()

	log.Info().
		Str("listen", cfg.ListenAddr).
		Int("workers", cfg.WorkerPoolSize).
		Int("markets_recovered", len(eng.ListMarkets())).
		Msg("matchrsd started")

	<-ctx.Done()
	log.Info().Msg("matchrsd shutting down")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
