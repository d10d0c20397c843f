package display

import (
	"sync"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/hwcomposer/hardware/bufmap"
	"github.com/temoto/hwcomposer/hardware/drm"
	"github.com/temoto/hwcomposer/hardware/plane"
	"github.com/temoto/hwcomposer/hardware/vsync"
	"github.com/temoto/hwcomposer/internal/layer"
	"github.com/temoto/hwcomposer/log2"
)

var (
	modeHD  = drm.Mode{Name: "1280x720", Width: 1280, Height: 720, Refresh: 60, DpiX: 96, DpiY: 96}
	modeVGA = drm.Mode{Name: "640x480", Width: 640, Height: 480, Refresh: 60, DpiX: 72, DpiY: 72}
	modeFB  = drm.Mode{Name: "480x800", Width: 480, Height: 800, Refresh: 58, DpiX: 240, DpiY: 240}
)

type memStore struct {
	mu sync.Mutex
	m  map[string]int
}

func (self *memStore) LoadActive(display string) (int, bool) {
	self.mu.Lock()
	defer self.mu.Unlock()
	i, ok := self.m[display]
	return i, ok
}

func (self *memStore) SaveActive(display string, index int) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.m == nil {
		self.m = make(map[string]int)
	}
	self.m[display] = index
	return nil
}

type fixture struct {
	log *log2.Log
	drv *drm.Mock
	mgr *plane.Manager
	dev *Device
}

func newFixture(t testing.TB, store Store, c drm.Connector) *fixture {
	f := &fixture{log: log2.NewTest(t, log2.LDebug), drv: drm.NewMock(0x0130)}
	f.mgr = plane.NewManager(f.log, f.drv.Memory(), f.drv, 4)
	require.NoError(t, f.mgr.Detect("", f.drv.DeviceID()))
	f.drv.SetConnector(c)
	f.dev = NewDevice(f.log, f.drv, f.mgr, store, Options{Name: "main", Pipe: c.Pipe})
	return f
}

func connected(modes ...drm.Mode) drm.Connector {
	return drm.Connector{Name: "DSI-1", Connected: true, Modes: modes}
}

// video over fb layer, fits VGA
func (f *fixture) scene() *layer.Contents {
	mem := f.drv.MockMemory()
	mem.Register(0x10, 640, 480, bufmap.FormatRGB565)
	mem.Register(0x20, 320, 240, bufmap.FormatNV12)
	mem.Register(0x30, 640, 480, bufmap.FormatBGRX8888)
	return &layer.Contents{
		GeometryChanged: true,
		Layers: []*layer.Layer{
			{Handle: 0x10, Frame: plane.Rect{W: 640, H: 480}, Skip: true},
			{Handle: 0x20, Frame: plane.Rect{X: 160, Y: 120, W: 320, H: 240}},
			{Handle: 0x30, Frame: plane.Rect{W: 640, H: 480}, Target: true},
		},
	}
}

func TestDeviceInitialize(t *testing.T) {
	t.Parallel()

	type Case struct {
		name      string
		connector drm.Connector
		fallback  *drm.Mode
		expect    []Config
		err       func(error) bool
	}
	preferred := connected(modeHD, modeVGA)
	preferred.Preferred = 1
	cases := []Case{
		{name: "preferred-first", connector: preferred, expect: []Config{configFromMode(modeVGA), configFromMode(modeHD)}},
		{name: "disconnected", connector: drm.Connector{Name: "HDMI-A-1"}},
		{name: "no-modes", connector: connected()},
		{name: "fbdev-fallback", connector: connected(), fallback: &modeFB, expect: []Config{configFromMode(modeFB)}},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, nil, c.connector)
			f.dev.opt.Fallback = c.fallback
			require.NoError(t, f.dev.Initialize())
			assert.True(t, errors.IsAlreadyExists(f.dev.Initialize()))

			configs, err := f.dev.GetDisplayConfigs()
			if c.expect == nil {
				assert.True(t, IsDisconnected(err), "err=%v", err)
				assert.False(t, f.dev.Connected())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.expect, configs)
			assert.Equal(t, c.expect[0].Mode(), f.drv.Mode(0))
			active, err := f.dev.GetActiveConfig()
			require.NoError(t, err)
			assert.Equal(t, 0, active)
		})
	}
}

func TestDeviceDetectFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, connected(modeVGA))
	f.drv.FailDetect = errors.New("no card")
	assert.Error(t, f.dev.Initialize())
	err := f.dev.Prepare(&layer.Contents{})
	assert.True(t, errors.IsNotValid(err), "err=%v", err)
	assert.True(t, errors.IsNotValid(f.dev.Commit()))
}

func TestDeviceFrame(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, connected(modeVGA))
	require.NoError(t, f.dev.Initialize())
	c := f.scene()
	require.NoError(t, f.dev.Prepare(c))
	assert.Equal(t, layer.CompositionFramebuffer, c.Layers[0].Composition)
	assert.Equal(t, layer.CompositionOverlay, c.Layers[1].Composition)
	require.NoError(t, f.dev.Commit())

	commit := f.drv.LastCommit(0)
	require.Len(t, commit, 2)
	assert.Equal(t, plane.TypePrimary, commit[0].Type)
	assert.Equal(t, bufmap.Handle(0x30), commit[0].Handle)
	assert.Equal(t, plane.TypeOverlay, commit[1].Type)
	assert.Equal(t, bufmap.Handle(0x20), commit[1].Handle)

	c.GeometryChanged = false
	require.NoError(t, f.dev.Prepare(c))
	require.NoError(t, f.dev.Commit())
	s := f.dev.Stat()
	assert.Equal(t, uint64(2), s.Frames)
	assert.Equal(t, uint64(1), s.Layers.Checks)
	t.Log(f.dev.Dump())
}

func TestDeviceHotplugDuringCommit(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, connected(modeVGA))
	require.NoError(t, f.dev.Initialize())
	hotplugs := make(chan bool, 1)
	f.dev.SetProcs(Procs{Hotplug: func(display int, connected bool) { hotplugs <- connected }})

	done := make(chan error, 1)
	var once sync.Once
	f.drv.OnCommit = func(pipe int) {
		once.Do(func() {
			// cable pulled while frame is in flight
			f.drv.SetConnector(drm.Connector{Name: "DSI-1"})
			go func() { done <- f.dev.OnHotplug() }()
			time.Sleep(20 * time.Millisecond)
		})
	}

	c := f.scene()
	require.NoError(t, f.dev.Prepare(c))
	require.NoError(t, f.dev.Commit(), "in flight commit completes with old config")
	require.Len(t, f.drv.Commits(0), 1)
	assert.Len(t, f.drv.LastCommit(0), 2)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("hotplug did not finish")
	}
	assert.False(t, <-hotplugs)

	c.GeometryChanged = false
	assert.True(t, IsDisconnected(f.dev.Prepare(c)))
	assert.Equal(t, layer.CompositionFramebuffer, c.Layers[1].Composition)
	assert.True(t, IsDisconnected(f.dev.Commit()))
	assert.Len(t, f.drv.Commits(0), 1, "nothing applied to disconnected pipe")
	assert.Equal(t, uint64(1), f.dev.Stat().Skipped)

	// planes went back to manager
	require.NoError(t, f.mgr.DisableReclaimedPlanes())
	assert.Equal(t, 1, f.mgr.FreeCount(plane.TypeOverlay, 0))

	f.drv.SetConnector(connected(modeVGA))
	require.NoError(t, f.dev.OnHotplug())
	assert.True(t, <-hotplugs)
	c.GeometryChanged = true
	require.NoError(t, f.dev.Prepare(c))
	require.NoError(t, f.dev.Commit())
	assert.Len(t, f.drv.Commits(0), 2)
}

func TestDeviceSetActiveConfig(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	f := newFixture(t, store, connected(modeVGA, modeHD))
	require.NoError(t, f.dev.Initialize())
	invalidated := 0
	f.dev.SetProcs(Procs{Invalidate: func() { invalidated++ }})

	require.NoError(t, f.dev.Prepare(f.scene()))
	require.NoError(t, f.dev.Commit())

	assert.True(t, errors.IsNotValid(f.dev.SetActiveConfig(2)))
	require.NoError(t, f.dev.SetActiveConfig(1))
	assert.Equal(t, 1, invalidated)
	assert.Equal(t, modeHD, f.drv.Mode(0))
	active, _ := store.LoadActive("main")
	assert.Equal(t, 1, active)
	// overlay was on screen, now off and unmapped
	assert.Equal(t, 1, f.drv.Disables(plane.TypeOverlay, 0))
	assert.Equal(t, 1, f.mgr.FreeCount(plane.TypeOverlay, 0))
	require.NoError(t, f.dev.SetActiveConfig(1))
	assert.Equal(t, 1, invalidated, "same config is no-op")

	// restored after restart
	g := newFixture(t, store, connected(modeVGA, modeHD))
	require.NoError(t, g.dev.Initialize())
	active, err := g.dev.GetActiveConfig()
	require.NoError(t, err)
	assert.Equal(t, 1, active)
	assert.Equal(t, modeHD, g.drv.Mode(0))
}

func TestDeviceAttributes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, connected(modeHD, modeVGA))
	require.NoError(t, f.dev.Initialize())
	vs, err := f.dev.GetDisplayAttributes(1,
		AttributeVsyncPeriod, AttributeWidth, AttributeHeight, AttributeDpiX, AttributeDpiY)
	require.NoError(t, err)
	assert.Equal(t, []int64{16666666, 640, 480, 72000, 72000}, vs)
	_, err = f.dev.GetDisplayAttributes(2, AttributeWidth)
	assert.True(t, errors.IsNotValid(err))
	_, err = f.dev.GetDisplayAttributes(0, Attribute(99))
	assert.True(t, errors.IsNotSupported(err))
}

func TestDeviceBlank(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, connected(modeVGA))
	require.NoError(t, f.dev.Initialize())
	c := f.scene()
	require.NoError(t, f.dev.Prepare(c))
	require.NoError(t, f.dev.Commit())

	require.NoError(t, f.dev.Blank(true))
	assert.True(t, f.drv.Blanked(0))
	assert.True(t, f.dev.Blanked())
	c.GeometryChanged = false
	require.NoError(t, f.dev.Prepare(c))
	assert.Equal(t, layer.CompositionFramebuffer, c.Layers[1].Composition)
	require.NoError(t, f.dev.Commit())
	assert.Len(t, f.drv.Commits(0), 1)

	require.NoError(t, f.dev.Blank(false))
	assert.False(t, f.drv.Blanked(0))
	require.NoError(t, f.dev.Prepare(c))
	assert.Equal(t, layer.CompositionOverlay, c.Layers[1].Composition, "rebuilt after unblank")
	require.NoError(t, f.dev.Commit())
	assert.Len(t, f.drv.Commits(0), 2)
}

func TestDeviceVsync(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, connected(modeVGA))
	f.drv.Vblank = make(chan int64, 1)
	require.NoError(t, f.dev.Initialize())
	assert.True(t, errors.IsNotFound(f.dev.VsyncControl(true)))

	got := make(chan int64, 4)
	f.dev.SetProcs(Procs{Vsync: func(display int, ts int64) { got <- ts }})
	require.NoError(t, f.dev.AttachVsync(vsync.NewDrmSource(f.drv, 0)))
	assert.True(t, errors.IsAlreadyExists(f.dev.AttachVsync(vsync.NewTimerSource(0))))
	require.NoError(t, f.dev.VsyncControl(true))
	f.drv.Vblank <- 1234
	select {
	case ts := <-got:
		assert.Equal(t, int64(1234), ts)
	case <-time.After(time.Second):
		t.Fatal("vsync not delivered")
	}
	require.NoError(t, f.dev.VsyncControl(false))
	require.NoError(t, f.dev.Deinitialize())
	assert.Equal(t, uint64(1), f.dev.Stat().Vsyncs)
}
