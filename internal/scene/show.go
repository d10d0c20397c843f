package scene

import (
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/hardware/bufmap"
	"github.com/temoto/hwcomposer/helpers"
	"github.com/temoto/hwcomposer/internal/display"
	"github.com/temoto/hwcomposer/internal/hwc"
	"github.com/temoto/hwcomposer/internal/layer"
	"github.com/temoto/hwcomposer/log2"
)

// Show keeps one scene per display and composes frames on demand.
// Procs() glue vsync and hotplug callbacks to the frame loop in Run.
type Show struct {
	log     *log2.Log
	c       *hwc.Composer
	mem     bufmap.Allocator
	configs []Config

	mu     sync.Mutex
	scenes map[int]*Scene // by display index
	stale  map[int]bool
	kick   chan struct{}
	frames uint64
	// buffers of dropped scenes and layers, freed once planes let go
	garbage []bufmap.Handle
}

func NewShow(log *log2.Log, c *hwc.Composer, mem bufmap.Allocator, configs []Config) *Show {
	return &Show{
		log:     log,
		c:       c,
		mem:     mem,
		configs: configs,
		scenes:  make(map[int]*Scene),
		stale:   make(map[int]bool),
		kick:    make(chan struct{}, 1),
	}
}

func (self *Show) config(name string) Config {
	for _, cfg := range self.configs {
		if cfg.Display == name {
			return cfg
		}
	}
	return Config{Display: name}
}

// Build scenes for all connected displays. Existing scenes are replaced.
func (self *Show) Build() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	devices := self.c.Devices()
	errs := make([]error, 0, len(devices))
	for _, dev := range devices {
		errs = append(errs, self.rebuild(dev))
	}
	return helpers.FoldErrors(errs)
}

func (self *Show) rebuild(dev *display.Device) error {
	index := dev.Index()
	if old := self.scenes[index]; old != nil {
		if err := old.Free(); err != nil {
			self.log.Debugf("display=%s scene free later err=%v", dev.Name(), err)
		}
		self.garbage = append(self.garbage, old.TakeGarbage()...)
		delete(self.scenes, index)
	}
	delete(self.stale, index)
	if !dev.Connected() {
		self.log.Debugf("display=%s disconnected, no scene", dev.Name())
		return nil
	}
	active, err := dev.GetActiveConfig()
	if err != nil {
		return errors.Annotatef(err, "display=%s", dev.Name())
	}
	wh, err := dev.GetDisplayAttributes(active, display.AttributeWidth, display.AttributeHeight)
	if err != nil {
		return errors.Annotatef(err, "display=%s", dev.Name())
	}
	s, err := Build(self.log, self.mem, int(wh[0]), int(wh[1]), self.config(dev.Name()))
	if err != nil {
		return err
	}
	self.log.Debugf("display=%s %dx%d scene %s", dev.Name(), wh[0], wh[1], s.String())
	self.scenes[index] = s
	return nil
}

// Scene of display or nil.
func (self *Show) Scene(index int) *Scene {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.scenes[index]
}

// Edit scene of display between frames.
func (self *Show) Edit(index int, f func(*Scene) error) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	s := self.scenes[index]
	if s == nil {
		return errors.NotFoundf("display=%d scene", index)
	}
	return f(s)
}

// Invalidate schedules scene rebuild before next frame, e.g. after mode change.
func (self *Show) Invalidate(index int) {
	self.mu.Lock()
	self.stale[index] = true
	self.mu.Unlock()
	self.Kick()
}

// Kick requests a frame, never blocks.
func (self *Show) Kick() {
	select {
	case self.kick <- struct{}{}:
	default:
	}
}

func (self *Show) Frames() uint64 {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.frames
}

// Garbage counts buffers waiting for planes to release them.
func (self *Show) Garbage() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return len(self.garbage)
}

// Frame prepares and commits contents of every display that has a scene.
func (self *Show) Frame() error {
	self.mu.Lock()
	defer self.mu.Unlock()

	errs := make([]error, 0, 4)
	contents := make([]*layer.Contents, 0, len(self.scenes))
	for _, dev := range self.c.Devices() {
		index := dev.Index()
		if self.stale[index] {
			errs = append(errs, self.rebuild(dev))
		}
		for len(contents) <= index {
			contents = append(contents, nil)
		}
		if s := self.scenes[index]; s != nil {
			contents[index] = s.Contents()
		}
	}
	if err := self.c.Prepare(contents); err != nil {
		errs = append(errs, errors.Annotate(err, "prepare"))
	}
	if err := self.c.Commit(contents); err != nil {
		errs = append(errs, errors.Annotate(err, "commit"))
	}
	self.frames++
	for _, s := range self.scenes {
		self.garbage = append(self.garbage, s.TakeGarbage()...)
	}
	self.collect()
	return helpers.FoldErrors(errs)
}

// collect frees garbage buffers no plane holds anymore. Returns errors of
// buffers kept for later.
func (self *Show) collect() []error {
	var errs []error
	keep := self.garbage[:0]
	for _, h := range self.garbage {
		if !self.c.ForgetBuffer(h) {
			keep = append(keep, h)
			continue
		}
		if err := self.mem.Free(h); err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			errs = append(errs, err)
			keep = append(keep, h)
		}
	}
	self.garbage = keep
	if len(keep) != 0 {
		self.log.Debugf("scene garbage buffers=%d wait", len(keep))
	}
	return errs
}

// Procs drive frames from vsync of primary display, rebuild scenes on hotplug.
// Callbacks may run under display lock, so they only signal Run.
func (self *Show) Procs() display.Procs {
	return display.Procs{
		Vsync: func(index int, ts int64) {
			if index == 0 {
				self.Kick()
			}
		},
		Hotplug: func(index int, connected bool) {
			self.Invalidate(index)
		},
		Invalidate: self.Kick,
	}
}

// Run composes a frame per kick until stop is closed.
func (self *Show) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-self.kick:
			if err := self.Frame(); err != nil {
				self.log.Error(errors.Annotate(err, "frame"))
			}
		}
	}
}

// Free buffers of all scenes. Planes are released first, call after Run returned.
func (self *Show) Free() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	errs := make([]error, 0, len(self.scenes)+2)
	errs = append(errs, errors.Annotate(self.c.Release(), "release planes"))
	for index, s := range self.scenes {
		_ = s.Free()
		self.garbage = append(self.garbage, s.TakeGarbage()...)
		delete(self.scenes, index)
	}
	errs = append(errs, self.collect()...)
	if n := len(self.garbage); n != 0 {
		errs = append(errs, errors.Errorf("scene buffers=%d still in use", n))
	}
	return helpers.FoldErrors(errs)
}
