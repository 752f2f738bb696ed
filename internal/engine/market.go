package engine

import (
	"strconv"
	"sync"
	"sync/atomic"

	"gopkg.in/tomb.v2"

	"matchrs/internal/book"
	"matchrs/internal/domain"
)

// marketWorker is the single-writer goroutine for one market (C10): every
// command against this market's book funnels through cmdCh, so the book,
// the client-order-id index, and the worker's own state field never need a
// lock of their own. Grounded on the teacher's per-connection worker in
// internal/worker.go and the tomb.v2 supervision pattern the teacher's
// internal/net/server.go reaches for but never wires up.
type marketWorker struct {
	eng *Engine

	cmdCh chan func()
	t     tomb.Tomb

	orderSeq uint64

	// Everything below is only ever written from inside the goroutine run
	// by t.Go. market and state are also read by other goroutines through
	// snapshotStatus, under statusMu.
	market           domain.Market
	state            WorkerState
	book             *book.OrderBook
	liveOrders       map[string]*domain.Order // orderID -> order, resting or about to rest
	clientOrderIndex map[string]string        // userID + "\x00" + clientOrderID -> orderID

	// statusMu guards the small snapshot other goroutines (registry
	// listings, health checks) may read without going through cmdCh.
	statusMu sync.RWMutex
}

func newMarketWorker(eng *Engine, market domain.Market) *marketWorker {
	mw := &marketWorker{
		eng:              eng,
		cmdCh:            make(chan func(), 64),
		market:           market,
		state:            WorkerStopped,
		book:             book.NewOrderBook(market.ID),
		liveOrders:       make(map[string]*domain.Order),
		clientOrderIndex: make(map[string]string),
	}
	mw.t.Go(mw.run)
	return mw
}

func (mw *marketWorker) run() error {
	for {
		select {
		case <-mw.t.Dying():
			return nil
		case task := <-mw.cmdCh:
			task()
		}
	}
}

// do submits fn to run on the worker goroutine and blocks until it
// completes, giving the caller the single-writer guarantee every command
// needs.
func (mw *marketWorker) do(fn func()) {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}
	select {
	case mw.cmdCh <- task:
		<-done
	case <-mw.t.Dying():
	}
}

func (mw *marketWorker) nextOrderID() string {
	n := atomic.AddUint64(&mw.orderSeq, 1)
	return mw.market.ID + "-" + strconv.FormatUint(n, 36)
}

func (mw *marketWorker) snapshotStatus() (domain.Market, WorkerState) {
	mw.statusMu.RLock()
	defer mw.statusMu.RUnlock()
	return mw.market, mw.state
}

func (mw *marketWorker) setStatusLocked(market domain.Market, state WorkerState) {
	mw.statusMu.Lock()
	mw.market = market
	mw.state = state
	mw.statusMu.Unlock()
}
