// Package display drives one pipe: connector state, display configs,
// per frame layer list and the commit of bound planes to the kernel.
package display

import (
	"fmt"
	"strings"
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/hardware/drm"
	"github.com/temoto/hwcomposer/hardware/plane"
	"github.com/temoto/hwcomposer/hardware/vsync"
	"github.com/temoto/hwcomposer/helpers"
	"github.com/temoto/hwcomposer/internal/layer"
	"github.com/temoto/hwcomposer/log2"
)

// ErrDisconnected marks skipped frame on a display that is gone. Not fatal.
var ErrDisconnected = errors.New("display disconnected")

func IsDisconnected(err error) bool { return errors.Cause(err) == ErrDisconnected }

// Procs are compositor callbacks. They run with device lock held
// and must not call back into the device.
type Procs struct {
	Vsync      func(display int, ts int64)
	Hotplug    func(display int, connected bool)
	Invalidate func()
}

type Options struct {
	Name  string
	Index int // display id reported to Procs
	Pipe  int
	// Fallback mode for connected panels that report no modes, usually read from fbdev.
	Fallback *drm.Mode
}

type Stat struct {
	Name         string
	Connected    bool
	Blanked      bool
	Frames       uint64
	Skipped      uint64
	CommitErrors uint64
	Vsyncs       uint64
	Hotplugs     uint64
	Layers       layer.Stat
}

type Device struct {
	mu    sync.Mutex
	log   *log2.Log
	drv   drm.Driver
	mgr   *plane.Manager
	store Store
	opt   Options
	list  *layer.List
	procs Procs
	vsync *vsync.Observer

	initialized bool
	connected   bool
	blanked     bool
	connector   drm.Connector
	configs     []Config
	active      int
	stat        Stat
}

func NewDevice(log *log2.Log, drv drm.Driver, mgr *plane.Manager, store Store, opt Options) *Device {
	if opt.Name == "" {
		opt.Name = fmt.Sprintf("display%d", opt.Index)
	}
	return &Device{
		log:   log,
		drv:   drv,
		mgr:   mgr,
		store: store,
		opt:   opt,
		list:  layer.NewList(log, mgr, drv.Memory(), opt.Pipe),
	}
}

func (self *Device) Name() string { return self.opt.Name }
func (self *Device) Index() int   { return self.opt.Index }
func (self *Device) Pipe() int    { return self.opt.Pipe }

func (self *Device) Initialize() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.initialized {
		return errors.AlreadyExistsf("display=%s initialized", self.opt.Name)
	}
	if err := self.scan(); err != nil {
		return errors.Annotatef(err, "display=%s initialize", self.opt.Name)
	}
	self.initialized = true
	self.log.Debugf("display=%s pipe=%d initialized connected=%t configs=%d", self.opt.Name, self.opt.Pipe, self.connected, len(self.configs))
	return nil
}

// scan reads connector, rebuilds configs and sets active mode. Lock must be held.
func (self *Device) scan() error {
	c, err := self.drv.Detect(self.opt.Pipe)
	if err != nil {
		return errors.Annotate(err, "detect")
	}
	self.connector = c
	self.configs = buildConfigs(c, self.opt.Fallback)
	self.connected = c.Connected && len(self.configs) != 0
	if !self.connected {
		self.active = 0
		return nil
	}
	self.active = 0
	if self.store != nil {
		if i, ok := self.store.LoadActive(self.opt.Name); ok && i >= 0 && i < len(self.configs) {
			self.active = i
		}
	}
	return self.applyMode()
}

func (self *Device) applyMode() error {
	cfg := self.configs[self.active]
	if err := self.drv.SetMode(self.opt.Pipe, cfg.mode); err != nil {
		return errors.Annotatef(err, "set mode %s", cfg.String())
	}
	self.list.SetDisplaySize(cfg.Width, cfg.Height)
	return nil
}

// Prepare classifies layers of next frame and binds planes.
func (self *Device) Prepare(c *layer.Contents) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if !self.initialized {
		return errors.NotValidf("display=%s not initialized", self.opt.Name)
	}
	if !self.connected || self.blanked {
		err := self.list.Release()
		for _, l := range c.Layers {
			if l.Target {
				l.Composition = layer.CompositionFramebufferTarget
			} else {
				l.Composition = layer.CompositionFramebuffer
			}
		}
		if !self.connected {
			return ErrDisconnected
		}
		return err
	}
	return self.list.Update(c)
}

// Commit submits every plane bound by previous Prepare.
func (self *Device) Commit() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if !self.initialized {
		return errors.NotValidf("display=%s not initialized", self.opt.Name)
	}
	if !self.connected {
		self.stat.Skipped++
		return ErrDisconnected
	}
	if self.blanked {
		return nil
	}
	updates := self.list.Flip()
	if err := self.drv.Commit(self.opt.Pipe, updates); err != nil {
		self.stat.CommitErrors++
		return errors.Annotatef(err, "display=%s commit", self.opt.Name)
	}
	self.stat.Frames++
	return nil
}

func (self *Device) SetProcs(p Procs) {
	self.mu.Lock()
	self.procs = p
	self.mu.Unlock()
}

// AttachVsync starts observer on src delivering into OnVsync. Disabled until VsyncControl.
func (self *Device) AttachVsync(src vsync.Source) error {
	o := vsync.NewObserver(self.log, src, self.OnVsync)
	self.mu.Lock()
	if self.vsync != nil {
		self.mu.Unlock()
		return errors.AlreadyExistsf("display=%s vsync observer", self.opt.Name)
	}
	self.vsync = o
	self.mu.Unlock()
	return o.Start()
}

func (self *Device) VsyncControl(enable bool) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.vsync == nil {
		return errors.NotFoundf("display=%s vsync source", self.opt.Name)
	}
	self.vsync.Control(enable)
	return nil
}

func (self *Device) OnVsync(ts int64) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.stat.Vsyncs++
	if self.procs.Vsync != nil {
		self.procs.Vsync(self.opt.Index, ts)
	}
}

// OnHotplug rescans connector. Waits for in-flight commit via device lock,
// so a frame is either committed with old config or skipped.
func (self *Device) OnHotplug() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if !self.initialized {
		return nil
	}
	self.stat.Hotplugs++
	was := self.connected
	err := self.scan()
	if err != nil {
		self.connected = false
	}
	if was && !self.connected {
		err = helpers.FoldErrors([]error{err, self.list.Release()})
	}
	self.log.Debugf("display=%s hotplug connected=%t->%t", self.opt.Name, was, self.connected)
	if was != self.connected && self.procs.Hotplug != nil {
		self.procs.Hotplug(self.opt.Index, self.connected)
	}
	return errors.Annotatef(err, "display=%s hotplug", self.opt.Name)
}

// Release hands planes back to manager, they stay visible until
// DisableReclaimedPlanes.
func (self *Device) Release() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if !self.initialized {
		return nil
	}
	return self.list.Release()
}

func (self *Device) Blank(blank bool) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if blank == self.blanked {
		return nil
	}
	errs := make([]error, 0, 2)
	if self.connected {
		errs = append(errs, self.drv.Blank(self.opt.Pipe, blank))
	}
	if blank {
		errs = append(errs, self.list.Release())
	} else {
		self.list.Invalidate()
		if self.procs.Invalidate != nil {
			self.procs.Invalidate()
		}
	}
	self.blanked = blank
	return helpers.FoldErrors(errs)
}

func (self *Device) Blanked() bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.blanked
}

func (self *Device) Connected() bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.connected
}

func (self *Device) GetDisplayConfigs() ([]Config, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if !self.connected {
		return nil, ErrDisconnected
	}
	out := make([]Config, len(self.configs))
	copy(out, self.configs)
	return out, nil
}

func (self *Device) GetDisplayAttributes(config int, attrs ...Attribute) ([]int64, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if !self.connected {
		return nil, ErrDisconnected
	}
	if config < 0 || config >= len(self.configs) {
		return nil, errors.NotValidf("display=%s config=%d", self.opt.Name, config)
	}
	out := make([]int64, len(attrs))
	for i, a := range attrs {
		v, err := self.configs[config].Value(a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (self *Device) GetActiveConfig() (int, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if !self.connected {
		return -1, ErrDisconnected
	}
	return self.active, nil
}

// SetActiveConfig switches mode, drops every plane and buffer mapping
// of this pipe and remembers the choice.
func (self *Device) SetActiveConfig(index int) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if !self.connected {
		return ErrDisconnected
	}
	if index < 0 || index >= len(self.configs) {
		return errors.NotValidf("display=%s config=%d", self.opt.Name, index)
	}
	if index == self.active {
		return nil
	}
	errs := make([]error, 0, 4)
	errs = append(errs, self.list.Release())
	errs = append(errs, self.mgr.DisableReclaimedPlanes())
	errs = append(errs, self.invalidateCaches())
	prev := self.active
	self.active = index
	if err := self.applyMode(); err != nil {
		self.active = prev
		errs = append(errs, err)
		return helpers.FoldErrors(errs)
	}
	if self.store != nil {
		errs = append(errs, self.store.SaveActive(self.opt.Name, index))
	}
	if self.procs.Invalidate != nil {
		self.procs.Invalidate()
	}
	return helpers.FoldErrors(errs)
}

// Only free planes last attached to this pipe, others may be in use elsewhere.
func (self *Device) invalidateCaches() error {
	errs := make([]error, 0)
	for _, t := range []plane.Type{plane.TypeSprite, plane.TypeOverlay, plane.TypePrimary} {
		for _, p := range self.mgr.Planes(t) {
			if p.Pipe() == self.opt.Pipe && p.State() == plane.StateFree {
				errs = append(errs, p.InvalidateBufferCache())
			}
		}
	}
	return helpers.FoldErrors(errs)
}

func (self *Device) Deinitialize() error {
	self.mu.Lock()
	o := self.vsync
	self.vsync = nil
	self.mu.Unlock()
	errs := make([]error, 0, 4)
	// observer delivers under device lock, stop it unlocked
	if o != nil {
		errs = append(errs, o.Stop())
	}

	self.mu.Lock()
	defer self.mu.Unlock()
	if !self.initialized {
		return helpers.FoldErrors(errs)
	}
	errs = append(errs, self.list.Release())
	errs = append(errs, self.mgr.DisableReclaimedPlanes())
	self.initialized = false
	self.connected = false
	return helpers.FoldErrors(errs)
}

func (self *Device) Stat() Stat {
	self.mu.Lock()
	defer self.mu.Unlock()
	s := self.stat
	s.Name = self.opt.Name
	s.Connected = self.connected
	s.Blanked = self.blanked
	s.Layers = self.list.Stat()
	return s
}

func (self *Device) Dump() string {
	self.mu.Lock()
	defer self.mu.Unlock()
	var sb strings.Builder
	fmt.Fprintf(&sb, "display=%s index=%d pipe=%d connector=%s initialized=%t connected=%t blanked=%t\n",
		self.opt.Name, self.opt.Index, self.opt.Pipe, self.connector.Name, self.initialized, self.connected, self.blanked)
	for i, c := range self.configs {
		mark := " "
		if i == self.active {
			mark = "*"
		}
		fmt.Fprintf(&sb, " %s config %d %s\n", mark, i, c.String())
	}
	if self.vsync != nil {
		fmt.Fprintf(&sb, "  vsync %s enabled=%t count=%d\n", self.vsync.String(), self.vsync.Enabled(), self.vsync.Count())
	}
	sb.WriteString(self.list.Dump())
	return sb.String()
}
