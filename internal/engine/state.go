// Package engine is the per-market matching engine (C6) and the command
// dispatch layer that routes commands to each market's single-writer
// worker (C10). Grounded on the teacher's internal/engine.{Engine,
// OrderBook}.Match()/Trade() loop and the tomb.v2-supervised worker
// pattern in internal/net/server.go and internal/worker.go.
package engine

// WorkerState is the in-process lifecycle of a market's matching worker,
// distinct from the persisted domain.MarketStatus (§4.6 vs §3). A market
// row can be MarketSuspended while its worker sits Stopped (after an
// Internal error); Recover puts the worker of every market persisted as
// MarketActive straight back into WorkerActive.
type WorkerState int

const (
	// WorkerStopped is the state a worker starts in once CreateMarket has
	// instantiated it (§4.7: "Create ... instantiates a worker in Stopped
	// state"), and the state Stop returns it to.
	WorkerStopped WorkerState = iota
	WorkerActive
)

func (s WorkerState) String() string {
	if s == WorkerActive {
		return "active"
	}
	return "stopped"
}
