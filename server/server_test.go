package server

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/tierbots/server/world"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	conf := Config{
		Log:          slog.Default(),
		PersistDir:   t.TempDir(),
		CellWidth:    2,
		CellHeight:   2,
		Seed:         1,
		TickInterval: time.Millisecond,
	}
	return conf
}

func TestNewServerCreatesWorld(t *testing.T) {
	srv, err := newServer(testConfig(t))
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	if srv.Store() == nil {
		t.Fatal("Store() returned nil after newServer")
	}
}

func TestOpenOrCreateStoreReopensSavedWorld(t *testing.T) {
	conf := testConfig(t)
	first, err := newServer(conf)
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	if err := first.shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	second, err := newServer(conf)
	if err != nil {
		t.Fatalf("newServer (reopen): %v", err)
	}
	if second.Store().Width != first.Store().Width || second.Store().Height != first.Store().Height {
		t.Fatalf("reopened world dims = %dx%d, want %dx%d",
			second.Store().Width, second.Store().Height, first.Store().Width, first.Store().Height)
	}
}

func TestRunAdvancesTicksAndStopsOnContextCancel(t *testing.T) {
	srv, err := newServer(testConfig(t))
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	if srv.Store().Time() == 0 {
		t.Fatal("expected at least one tick to have advanced")
	}

	reloaded, err := world.Load(srv.conf.PersistDir)
	if err != nil {
		t.Fatalf("Load after shutdown: %v", err)
	}
	if reloaded.Width != srv.Store().Width {
		t.Fatalf("reloaded width = %d, want %d", reloaded.Width, srv.Store().Width)
	}
}

func TestCloseStopsRun(t *testing.T) {
	srv, err := newServer(testConfig(t))
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	if err := srv.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}
