// Context constructors for binaries and tests.
package state_new

import (
	"context"
	"os"
	"testing"

	"github.com/temoto/hwcomposer/hardware/drm"
	"github.com/temoto/hwcomposer/internal/state"
	"github.com/temoto/hwcomposer/log2"
)

func NewContext(log *log2.Log, buildVersion string) (context.Context, *state.Global) {
	if log == nil {
		panic("code error NewContext() log=nil")
	}

	g := state.NewGlobal(log, buildVersion)
	ctx := context.Background()
	ctx = context.WithValue(ctx, log2.ContextKey, log)
	ctx = context.WithValue(ctx, state.ContextKey, g)
	return ctx, g
}

// NewTestContext reads inline config, driver is drm.Mock with connected displays
// unless config sets hardware.driver itself.
func NewTestContext(t testing.TB, confString string) (context.Context, *state.Global) {
	fs := state.NewMockFullReader(map[string]string{
		"test-inline": confString,
	})

	var log *log2.Log
	if os.Getenv("hwcomposer_test_log_stderr") == "1" {
		log = log2.NewStderr(log2.LDebug) // useful with panics
	} else {
		log = log2.NewTest(t, log2.LDebug)
	}
	log.SetFlags(log2.LTestFlags)
	ctx, g := NewContext(log, "test")
	cfg := state.MustReadConfig(log, fs, "test-inline")
	if cfg.Hardware.Driver == "" {
		cfg.Hardware.Driver = state.DriverMock
	}
	if cfg.Persist.Root == "" {
		cfg.Persist.Root = t.TempDir()
	}
	g.MustInit(ctx, cfg)
	t.Cleanup(func() {
		g.StopWait(state.DefaultStopTimeout)
		if err := g.Close(); err != nil {
			t.Error(err)
		}
	})
	return ctx, g
}

// MockDriver of test context.
func MockDriver(t testing.TB, g *state.Global) *drm.Mock {
	d, err := g.Driver()
	if err != nil {
		t.Fatal(err)
	}
	m, ok := d.(*drm.Mock)
	if !ok {
		t.Fatalf("driver=%T expected *drm.Mock", d)
	}
	return m
}
