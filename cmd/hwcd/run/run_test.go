package run

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/hwcomposer/hardware/drm"
	"github.com/temoto/hwcomposer/internal/state"
	state_new "github.com/temoto/hwcomposer/internal/state/new"
	"github.com/temoto/hwcomposer/log2"
)

func TestRunFrames(t *testing.T) {
	log := log2.NewTest(t, log2.LDebug)
	config, err := state.ReadConfig(log, state.NewMockFullReader(map[string]string{"main": `
hardware { driver = "mock" }
display "lvds" {
	pipe = 0
	refresh = 100
}
scene "lvds" {
	layer {
		pattern = "checker:8"
		size = [64, 64]
		frame = [16, 16, 64, 64]
	}
}
persist { root = "` + t.TempDir() + `" }
`}), "main")
	require.NoError(t, err)

	mock := drm.NewMock(0x0f31)
	mock.SetConnector(drm.Connector{Pipe: 0, Name: "DSI-1", Connected: true,
		Modes: []drm.Mode{{Name: "320x240", Width: 320, Height: 240, Refresh: 100}}})
	ctx, g := state_new.NewContext(log, "test")
	g.SetDriver(mock)
	done := make(chan error, 1)
	go func() { done <- Main(ctx, config) }()

	assert.Eventually(t, func() bool {
		return len(mock.Commits(0)) >= 3
	}, 5*time.Second, 10*time.Millisecond, "frames paced by timer vsync")

	g.Stop()
	select {
	case err = <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Main did not return after Stop")
	}
}
