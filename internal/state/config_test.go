package state_test

import (
	"context"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/hwcomposer/internal/display"
	"github.com/temoto/hwcomposer/internal/state"
	state_new "github.com/temoto/hwcomposer/internal/state/new"
	"github.com/temoto/hwcomposer/internal/tele"
	"github.com/temoto/hwcomposer/log2"
)

const twoDisplays = `
display "lvds" { pipe = 0 }
display "hdmi" {
	pipe = 1
	vsync = "timer"
	refresh = 50
}
`

func TestReadConfig(t *testing.T) {
	t.Parallel()

	type Case struct {
		name      string
		sources   map[string]string
		check     func(testing.TB, *state.Config)
		expectErr string
	}
	cases := []Case{
		{"empty", map[string]string{"main": ""}, func(t testing.TB, c *state.Config) {
			assert.Equal(t, "", c.Hardware.Driver)
			assert.Empty(t, c.Displays)
			assert.False(t, c.Tele.Enabled)
		}, ""},

		{"full", map[string]string{"main": `
hardware {
	driver = "mock"
	variant = "baytrail"
	fbdev = "/dev/fb0"
	cache_capacity = 4
}
display "lvds" {
	pipe = 0
	vsync = "gpio"
	te_chip = "/dev/gpiochip0"
	te_line = 17
}
hotplug {
	enable = true
	devpath = "/devices/pci0000:00/0000:00:02.0/drm"
}
input { device = "/dev/input/event0" }
log { level = "debug" }
persist { root = "/var/lib/hwc" }
tele {
	enable = true
	client_id = "hwc1"
	mqtt_broker = "tls://example.com:8883"
	report_sec = 60
}
scene "lvds" {
	layer {
		pattern = "solid:#102030"
		format = "RGB565"
	}
	layer {
		pattern = "qr:hello"
		size = [320, 240]
		frame = [10, 20, 320, 240]
		transform = 180
	}
}`}, func(t testing.TB, c *state.Config) {
			assert.Equal(t, state.DriverMock, c.Hardware.Driver)
			assert.Equal(t, "baytrail", c.Hardware.Variant)
			assert.Equal(t, 4, c.Hardware.CacheCapacity)
			dc, ok := c.Display("lvds")
			require.True(t, ok)
			assert.Equal(t, state.VsyncGpio, dc.Vsync)
			assert.Equal(t, 17, dc.TeLine)
			assert.True(t, c.Hotplug.Enable)
			assert.Equal(t, "/dev/input/event0", c.Input.Device)
			assert.Equal(t, "debug", c.Log.Level)
			assert.Equal(t, "/var/lib/hwc", c.Persist.Root)
			assert.Equal(t, "hwc1", c.Tele.ClientID)
			assert.Equal(t, 60, c.Tele.ReportSec)
			sc, ok := c.Scene("lvds")
			require.True(t, ok)
			require.Len(t, sc.Layers, 2)
			assert.Equal(t, "RGB565", sc.Layers[0].Format)
			assert.Equal(t, []int{10, 20, 320, 240}, sc.Layers[1].Frame)
			assert.Equal(t, 180, sc.Layers[1].Transform)
		}, ""},

		{"include", map[string]string{
			"main": `
display "lvds" { pipe = 0 }
tele { client_id = "main" }
include "local" {}
include "extra" { optional = true }`,
			"local": `tele { client_id = "local" }`,
		}, func(t testing.TB, c *state.Config) {
			assert.Len(t, c.Displays, 1)
			_, ok := c.Display("lvds")
			assert.True(t, ok)
			assert.Equal(t, "local", c.Tele.ClientID, "include overwrites")
		}, ""},

		{"include-loop", map[string]string{
			"main": `include "a" {}`,
			"a":    `include "main" {}`,
		}, nil, "include loop"},
		{"include-required", map[string]string{"main": `include "missing" {}`}, nil, "missing"},
		{"syntax", map[string]string{"main": `display "lvds" {`}, nil, "unmarshal"},
		{"log-level", map[string]string{"main": `log { level = "loud" }`}, nil, "log level=loud"},
		{"driver", map[string]string{"main": `hardware { driver = "vga" }`}, nil, "hardware.driver=vga"},
		{"duplicate-pipe", map[string]string{"main": `
display "a" { pipe = 1 }
display "b" { pipe = 1 }`}, nil, "pipe=1"},
		{"duplicate-name", map[string]string{"main": `
display "a" { pipe = 0 }
display "a" { pipe = 1 }`}, nil, "display=a already exists"},
		{"vsync", map[string]string{"main": `display "a" { vsync = "irq" }`}, nil, "vsync=irq"},
		{"gpio-chip", map[string]string{"main": `display "a" { vsync = "gpio" }`}, nil, "te_chip"},
		{"scene-display", map[string]string{"main": `scene "tv" { layer {} }`}, nil, "scene display=tv"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			log := log2.NewTest(t, log2.LDebug)
			cfg, err := state.ReadConfig(log, state.NewMockFullReader(c.sources), "main")
			if c.expectErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), c.expectErr)
				return
			}
			require.NoError(t, err)
			c.check(t, cfg)
		})
	}
}

func TestGlobalInit(t *testing.T) {
	t.Parallel()

	_, g := state_new.NewTestContext(t, twoDisplays)
	c, err := g.Composer()
	require.NoError(t, err)
	require.Len(t, c.Devices(), 2)
	s := g.Stat()
	require.Len(t, s.Displays, 2)
	assert.Equal(t, "lvds", s.Displays[0].Name)
	assert.True(t, s.Displays[1].Connected)

	configs, err := c.GetDisplayConfigs(0)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, 640, configs[0].Width)

	vsyncs := make(chan int, 8)
	require.NoError(t, g.RegisterProcs(display.Procs{Vsync: func(display int, ts int64) {
		select {
		case vsyncs <- display:
		default:
		}
	}}))
	require.NoError(t, c.VsyncControl(1, true))
	select {
	case d := <-vsyncs:
		assert.Equal(t, 1, d)
	case <-time.After(5 * time.Second):
		t.Fatal("no vsync from timer source")
	}
	require.NoError(t, c.VsyncControl(1, false))

	o, err := g.Hotplug()
	require.NoError(t, err)
	assert.Nil(t, o, "hotplug disabled")
}

func TestTeleCommand(t *testing.T) {
	t.Parallel()

	ctx, g := state_new.NewTestContext(t, twoDisplays)
	drv := state_new.MockDriver(t, g)

	require.NoError(t, g.TeleCommand(ctx, &tele.Command{Kind: tele.Command_Blank, Display: 1}))
	assert.True(t, drv.Blanked(1))
	assert.False(t, drv.Blanked(0))
	require.NoError(t, g.TeleCommand(ctx, &tele.Command{Kind: tele.Command_Unblank, Display: 1}))
	assert.False(t, drv.Blanked(1))

	err := g.TeleCommand(ctx, &tele.Command{Kind: tele.Command_Blank, Display: 7})
	assert.True(t, errors.IsNotFound(err), "err=%v", err)
	err = g.TeleCommand(context.Background(), &tele.Command{Kind: tele.Command_Noop})
	assert.True(t, errors.IsNotSupported(err), "err=%v", err)
}

func TestGlobalDriverError(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	g := state.NewGlobal(log, "test")
	cfg, err := state.ReadConfig(log, state.NewMockFullReader(map[string]string{
		"main": `
hardware { card = "/nonexistent/card9" }
persist { root = "` + t.TempDir() + `" }`,
	}), "main")
	require.NoError(t, err)
	err = g.Init(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/nonexistent/card9")
	require.NoError(t, g.Close())
}
