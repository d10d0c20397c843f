package state

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/hardware/bufmap"
	"github.com/temoto/hwcomposer/hardware/drm"
	"github.com/temoto/hwcomposer/hardware/fbdev"
	"github.com/temoto/hwcomposer/hardware/input"
	"github.com/temoto/hwcomposer/hardware/uevent"
	"github.com/temoto/hwcomposer/hardware/vsync"
	"github.com/temoto/hwcomposer/helpers"
	"github.com/temoto/hwcomposer/internal/display"
	"github.com/temoto/hwcomposer/internal/hwc"
	"github.com/temoto/hwcomposer/internal/persist"
)

const (
	DefaultCard           = "/dev/dri/card0"
	DefaultHotplugTimeout = 1 * time.Second
	DefaultMockDeviceID   = 0x0f31 // baytrail
	defaultRefresh        = 60
)

var mockMode = drm.Mode{Name: "640x480", Width: 640, Height: 480, Refresh: defaultRefresh, DpiX: 72, DpiY: 72}

type hardware struct {
	driver struct {
		once
		d drm.Driver
	}
	store struct {
		once
		s *persist.Displays
	}
	composer struct {
		once
		c *hwc.Composer
	}
	hotplug struct {
		once
		o *uevent.Observer
	}
	input struct {
		once
		d *input.Dispatch
	}
}

// SetDriver injects driver before first use, for tests and tools.
func (g *Global) SetDriver(d drm.Driver) {
	x := &g.Hardware.driver
	_ = x.do(func() error { x.d = d; return nil })
}

func (g *Global) Driver() (drm.Driver, error) {
	x := &g.Hardware.driver // short alias
	_ = x.do(func() error {
		cfg := &g.Config.Hardware
		switch cfg.Driver {
		case "", DriverDrm:
			card := cfg.Card
			if card == "" {
				card = DefaultCard
			}
			var c *drm.Card
			c, x.err = drm.Open(card, g.Log)
			if x.err != nil {
				x.err = errors.Annotatef(x.err, "config: hardware.card=%s", card)
				return x.err
			}
			x.d = c

		case DriverMock:
			id := uint16(cfg.DeviceID)
			if id == 0 {
				id = DefaultMockDeviceID
			}
			m := drm.NewMock(id)
			for _, d := range g.Config.Displays {
				m.SetConnector(drm.Connector{Pipe: d.Pipe, Name: d.Name, Connected: true, Modes: []drm.Mode{mockMode}})
			}
			x.d = m

		default:
			x.err = errors.NotValidf("config: hardware.driver=%s", cfg.Driver)
		}
		return x.err
	})
	return x.d, x.err
}

// Allocator for scene buffers, nil error means driver memory can allocate.
func (g *Global) Allocator() (bufmap.Allocator, error) {
	drv, err := g.Driver()
	if err != nil {
		return nil, err
	}
	if a, ok := drv.Memory().(bufmap.Allocator); ok {
		return a, nil
	}
	return nil, errors.NotSupportedf("driver memory allocate")
}

func (g *Global) DisplayStore() (*persist.Displays, error) {
	x := &g.Hardware.store
	_ = x.do(func() error {
		x.s, x.err = persist.NewDisplays(g.Log, g.Config.Persist.Root, g.Config.Persist.Root != "")
		return x.err
	})
	return x.s, x.err
}

// Composer initializes displays and attaches vsync sources. Vsync events are off until VsyncControl.
func (g *Global) Composer() (*hwc.Composer, error) {
	x := &g.Hardware.composer
	_ = x.do(func() error {
		drv, err := g.Driver()
		if err != nil {
			x.err = err
			return err
		}
		store, err := g.DisplayStore()
		if err != nil {
			x.err = err
			return err
		}

		opt := hwc.Options{
			Variant:       g.Config.Hardware.Variant,
			CacheCapacity: g.Config.Hardware.CacheCapacity,
			Displays:      make([]display.Options, 0, len(g.Config.Displays)),
		}
		fallback := g.fallbackMode()
		for _, dc := range g.Config.Displays {
			opt.Displays = append(opt.Displays, display.Options{Name: dc.Name, Pipe: dc.Pipe, Fallback: fallback})
		}
		c := hwc.New(g.Log, drv, store)
		if x.err = c.Initialize(opt); x.err != nil {
			return x.err
		}
		for _, dev := range c.Devices() {
			dc, _ := g.Config.Display(dev.Name())
			src, err := g.vsyncSource(drv, dc, dev)
			if err != nil {
				g.Log.Error(errors.Annotatef(err, "display=%s vsync", dev.Name()))
				continue
			}
			if err = dev.AttachVsync(src); err != nil {
				g.Log.Error(errors.Annotatef(err, "display=%s vsync", dev.Name()))
			}
		}
		x.c = c
		return nil
	})
	return x.c, x.err
}

// RegisterProcs on composer, hotplug also updates telemetry state.
func (g *Global) RegisterProcs(p display.Procs) error {
	c, err := g.Composer()
	if err != nil {
		return err
	}
	hotplug := p.Hotplug
	p.Hotplug = func(index int, connected bool) {
		g.Log.Infof("display=%d connected=%t", index, connected)
		if hotplug != nil {
			hotplug(index, connected)
		}
		// procs run under device lock
		go g.ReportState()
	}
	c.RegisterProcs(p)
	return nil
}

// ReportState sends composite display state to telemetry.
func (g *Global) ReportState() {
	if c, err := g.Composer(); err == nil {
		g.teleState(c)
	}
}

// Hotplug observer calls composer on DRM connector uevents. Nil when disabled.
func (g *Global) Hotplug() (*uevent.Observer, error) {
	x := &g.Hardware.hotplug
	_ = x.do(func() error {
		cfg := &g.Config.Hotplug
		if !cfg.Enable {
			return nil
		}
		c, err := g.Composer()
		if err != nil {
			x.err = err
			return err
		}
		src, err := uevent.OpenNetlink(helpers.IntSecondDefault(cfg.TimeoutSec, DefaultHotplugTimeout))
		if err != nil {
			x.err = errors.Annotate(err, "hotplug")
			return x.err
		}
		o := uevent.NewObserver(g.Log, src, uevent.Filter{DevPathPrefix: cfg.DevPath, Hotplug: true}, c.OnHotplug)
		if x.err = o.Start(); x.err != nil {
			_ = src.Close()
			return x.err
		}
		x.o = o
		return nil
	})
	return x.o, x.err
}

// Input dispatch reads configured event device until Global stops.
func (g *Global) Input() (*input.Dispatch, error) {
	x := &g.Hardware.input
	_ = x.do(func() error {
		x.d = input.NewDispatch(g.Log, g.Alive.StopChan())
		sources := make([]input.Source, 0, 1)
		if dev := g.Config.Input.Device; dev != "" {
			src, err := input.NewDevInputEventSource(dev)
			if err != nil {
				x.err = errors.Annotatef(err, "config: input.device=%s", dev)
				return x.err
			}
			sources = append(sources, src)
		}
		if !g.Alive.Add(1) {
			return errors.Errorf("input stopped")
		}
		go func() {
			defer g.Alive.Done()
			x.d.Run(sources)
		}()
		return nil
	})
	return x.d, x.err
}

func (g *Global) fallbackMode() *drm.Mode {
	path := g.Config.Hardware.Fbdev
	if path == "" {
		return nil
	}
	info, err := fbdev.ReadInfo(path)
	if err != nil {
		g.Log.Error(errors.Annotatef(err, "config: hardware.fbdev=%s", path))
		return nil
	}
	g.Log.Debugf("fbdev fallback %s", info.String())
	m := info.Mode()
	return &m
}

func (g *Global) vsyncSource(drv drm.Driver, dc *DisplayConfig, dev *display.Device) (vsync.Source, error) {
	kind := VsyncTimer
	if dc != nil && dc.Vsync != "" {
		kind = dc.Vsync
	}
	switch kind {
	case VsyncDrm:
		return vsync.NewDrmSource(drv, dev.Pipe()), nil
	case VsyncGpio:
		return vsync.OpenGpioSource(dc.TeChip, uint32(dc.TeLine))
	}
	period := time.Second / defaultRefresh
	if dc != nil && dc.Refresh > 0 {
		period = time.Second / time.Duration(dc.Refresh)
	} else if active, err := dev.GetActiveConfig(); err == nil {
		if vs, err := dev.GetDisplayAttributes(active, display.AttributeVsyncPeriod); err == nil && vs[0] > 0 {
			period = time.Duration(vs[0])
		}
	}
	return vsync.NewTimerSource(period), nil
}

func (self *hardware) close() error {
	errs := make([]error, 0, 3)
	if self.hotplug.done() && self.hotplug.o != nil {
		errs = append(errs, self.hotplug.o.Stop())
	}
	if self.composer.done() && self.composer.c != nil {
		// composer closes driver
		errs = append(errs, self.composer.c.Close())
	} else if self.driver.done() && self.driver.d != nil {
		errs = append(errs, self.driver.d.Close())
	}
	return helpers.FoldErrors(errs)
}

type once struct {
	sync.Mutex
	called uint32 // atomic bool
	err    error
}

func (o *once) done() bool {
	return atomic.LoadUint32(&o.called) == 1
}

func (o *once) do(f func() error) error {
	if o.done() { // fast path
		return o.err
	}
	o.Lock()
	defer o.Unlock()
	if o.done() {
		return o.err
	}
	o.err = f()
	atomic.StoreUint32(&o.called, 1)
	return o.err
}
