package server

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/tierbots/server/world"
)

const (
	tpsSampleSize       = 20
	tpsWarningThreshold = 0.9 // fraction of the configured tick rate
)

// Server owns a world store and advances it one tick at a time at a fixed
// wall-clock rate, the way dragonfly's World.tickLoop does, but against a
// single in-process store rather than a chunked, viewer-driven World.
type Server struct {
	conf  Config
	store *world.Store

	tps atomic.Uint64 // math.Float64bits, most recent measured ticks/sec

	closing chan struct{}
	closed  chan struct{}
}

func newServer(conf Config) (*Server, error) {
	store, err := openOrCreateStore(conf)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	return &Server{
		conf:    conf,
		store:   store,
		closing: make(chan struct{}),
		closed:  make(chan struct{}),
	}, nil
}

func openOrCreateStore(conf Config) (*world.Store, error) {
	store, err := world.Load(conf.PersistDir)
	if err == nil {
		return store, nil
	}
	r := rand.New(rand.NewPCG(conf.Seed, conf.Seed^0x9e3779b97f4a7c15))
	return world.CreateNew(conf.PersistDir, r, conf.CellWidth, conf.CellHeight)
}

// Store returns the server's world store, for use by the capability layer.
func (srv *Server) Store() *world.Store { return srv.store }

// TPS returns the most recently measured ticks-per-second rate, averaged
// over the last tpsSampleSize ticks.
func (srv *Server) TPS() float64 {
	return math.Float64frombits(srv.tps.Load())
}

// Run starts the tick loop and blocks until ctx is cancelled or Close is
// called, saving the store once before returning.
func (srv *Server) Run(ctx context.Context) error {
	tc := time.NewTicker(srv.conf.TickInterval)
	defer tc.Stop()

	var (
		lastTick    = time.Now()
		durationSum time.Duration
		ticksCount  int
		warned      bool
	)
	wantTPS := 1.0 / srv.conf.TickInterval.Seconds()

	for {
		select {
		case <-ctx.Done():
			return srv.shutdown()
		case <-srv.closing:
			return srv.shutdown()
		case now := <-tc.C:
			duration := now.Sub(lastTick)
			lastTick = now
			if duration <= 0 {
				continue
			}
			durationSum += duration
			ticksCount++

			srv.store.Lock()
			srv.store.Advance()
			srv.store.Unlock()

			if ticksCount >= tpsSampleSize {
				avg := durationSum / time.Duration(ticksCount)
				tps := 0.0
				if avg > 0 {
					tps = 1.0 / avg.Seconds()
				}
				srv.tps.Store(math.Float64bits(tps))
				if tps < wantTPS*tpsWarningThreshold {
					if !warned {
						srv.conf.Log.Warn("tick rate dropped below threshold", "tps", tps, "want", wantTPS)
						warned = true
					}
				} else {
					warned = false
				}
				durationSum = 0
				ticksCount = 0
			}
		}
	}
}

// Close stops the tick loop and waits for Run to return.
func (srv *Server) Close() error {
	select {
	case <-srv.closing:
	default:
		close(srv.closing)
	}
	<-srv.closed
	return nil
}

func (srv *Server) shutdown() error {
	srv.store.Lock()
	err := srv.store.Save()
	srv.store.Unlock()
	close(srv.closed)
	if err != nil {
		return fmt.Errorf("server: saving on shutdown: %w", err)
	}
	return nil
}
