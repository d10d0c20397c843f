// Package hwc is the composer entry point used by compositor: it owns
// plane manager and display devices and runs frames across all of them.
package hwc

import (
	"fmt"
	"strings"
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/hardware/bufmap"
	"github.com/temoto/hwcomposer/hardware/drm"
	"github.com/temoto/hwcomposer/hardware/plane"
	"github.com/temoto/hwcomposer/hardware/uevent"
	"github.com/temoto/hwcomposer/helpers"
	"github.com/temoto/hwcomposer/internal/display"
	"github.com/temoto/hwcomposer/internal/layer"
	"github.com/temoto/hwcomposer/log2"
)

const DefaultCacheCapacity = 8

type Options struct {
	// Variant name overrides detection by PCI device id.
	Variant       string
	CacheCapacity int
	Displays      []display.Options
}

type Stat struct {
	Frames   uint64
	Displays []display.Stat
}

type Composer struct {
	mu      sync.Mutex
	log     *log2.Log
	drv     drm.Driver
	mgr     *plane.Manager
	store   display.Store
	devices []*display.Device
	procs   display.Procs
	frames  uint64
}

func New(log *log2.Log, drv drm.Driver, store display.Store) *Composer {
	return &Composer{log: log, drv: drv, store: store}
}

// Initialize detects hardware variant, that failure is fatal.
// Displays failing to initialize are logged and excluded.
func (self *Composer) Initialize(opt Options) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.mgr != nil {
		return errors.AlreadyExistsf("composer initialized")
	}
	capacity := opt.CacheCapacity
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	mgr := plane.NewManager(self.log, self.drv.Memory(), self.drv, capacity)
	if err := mgr.Detect(opt.Variant, self.drv.DeviceID()); err != nil {
		return errors.Annotate(err, "composer initialize")
	}
	self.mgr = mgr

	for i, dopt := range opt.Displays {
		dopt.Index = i
		dev := display.NewDevice(self.log, self.drv, mgr, self.store, dopt)
		if err := dev.Initialize(); err != nil {
			self.log.Error(errors.Annotatef(err, "composer exclude display=%s", dev.Name()))
			continue
		}
		self.devices = append(self.devices, dev)
	}
	if len(self.devices) == 0 {
		self.log.Errorf("composer no displays initialized")
	}
	return nil
}

func (self *Composer) Devices() []*display.Device {
	self.mu.Lock()
	defer self.mu.Unlock()
	out := make([]*display.Device, len(self.devices))
	copy(out, self.devices)
	return out
}

// Device by display index given to Procs.
func (self *Composer) Device(index int) (*display.Device, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	for _, dev := range self.devices {
		if dev.Index() == index {
			return dev, nil
		}
	}
	return nil, errors.NotFoundf("display=%d", index)
}

func (self *Composer) Manager() *plane.Manager {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.mgr
}

// Prepare runs layer classification per display, contents indexed by display.
// Planes nobody took back this frame are disabled after all displays prepared.
func (self *Composer) Prepare(contents []*layer.Contents) error {
	devices, mgr := self.Devices(), self.Manager()
	errs := make([]error, 0, len(devices)+1)
	for _, dev := range devices {
		c := contentsOf(contents, dev.Index())
		if c == nil {
			continue
		}
		if err := dev.Prepare(c); err != nil && !display.IsDisconnected(err) {
			errs = append(errs, err)
		}
	}
	if mgr != nil {
		errs = append(errs, mgr.DisableReclaimedPlanes())
	}
	return helpers.FoldErrors(errs)
}

// Commit skips disconnected displays silently.
func (self *Composer) Commit(contents []*layer.Contents) error {
	devices := self.Devices()
	errs := make([]error, 0, len(devices))
	for _, dev := range devices {
		if contentsOf(contents, dev.Index()) == nil {
			continue
		}
		if err := dev.Commit(); err != nil && !display.IsDisconnected(err) {
			errs = append(errs, err)
		}
	}
	self.mu.Lock()
	self.frames++
	self.mu.Unlock()
	return helpers.FoldErrors(errs)
}

// Release unbinds planes of every display and disables them, so client
// buffers may be freed. Next Prepare binds planes again.
func (self *Composer) Release() error {
	devices, mgr := self.Devices(), self.Manager()
	errs := make([]error, 0, len(devices)+1)
	for _, dev := range devices {
		errs = append(errs, dev.Release())
	}
	if mgr != nil {
		errs = append(errs, mgr.DisableReclaimedPlanes())
	}
	return helpers.FoldErrors(errs)
}

// ForgetBuffer drops idle plane mappings of buffer before client frees it.
// False means buffer is still scanned out or in flight.
func (self *Composer) ForgetBuffer(h bufmap.Handle) bool {
	mgr := self.Manager()
	if mgr == nil {
		return true
	}
	return mgr.ForgetBuffer(h)
}

func contentsOf(contents []*layer.Contents, index int) *layer.Contents {
	if index < 0 || index >= len(contents) {
		return nil
	}
	return contents[index]
}

func (self *Composer) VsyncControl(index int, enable bool) error {
	dev, err := self.Device(index)
	if err != nil {
		return err
	}
	return dev.VsyncControl(enable)
}

func (self *Composer) Blank(index int, blank bool) error {
	dev, err := self.Device(index)
	if err != nil {
		return err
	}
	return dev.Blank(blank)
}

// ToggleBlank flips blanking of all displays following the first one, returns new state.
func (self *Composer) ToggleBlank() (bool, error) {
	devices := self.Devices()
	if len(devices) == 0 {
		return false, errors.NotFoundf("displays")
	}
	blank := !devices[0].Blanked()
	errs := make([]error, 0, len(devices))
	for _, dev := range devices {
		errs = append(errs, dev.Blank(blank))
	}
	return blank, helpers.FoldErrors(errs)
}

func (self *Composer) RegisterProcs(p display.Procs) {
	self.mu.Lock()
	self.procs = p
	devices := self.devices
	self.mu.Unlock()
	for _, dev := range devices {
		dev.SetProcs(p)
	}
}

func (self *Composer) GetDisplayConfigs(index int) ([]display.Config, error) {
	dev, err := self.Device(index)
	if err != nil {
		return nil, err
	}
	return dev.GetDisplayConfigs()
}

func (self *Composer) GetDisplayAttributes(index, config int, attrs ...display.Attribute) ([]int64, error) {
	dev, err := self.Device(index)
	if err != nil {
		return nil, err
	}
	return dev.GetDisplayAttributes(config, attrs...)
}

func (self *Composer) SetActiveConfig(index, config int) error {
	dev, err := self.Device(index)
	if err != nil {
		return err
	}
	return dev.SetActiveConfig(config)
}

// OnHotplug lets every display rescan its connector.
func (self *Composer) OnHotplug(e uevent.Event) {
	self.log.Debugf("composer hotplug %s", e.String())
	for _, dev := range self.Devices() {
		if err := dev.OnHotplug(); err != nil {
			self.log.Error(err)
		}
	}
}

func (self *Composer) Stat() Stat {
	devices := self.Devices()
	self.mu.Lock()
	s := Stat{Frames: self.frames, Displays: make([]display.Stat, 0, len(devices))}
	self.mu.Unlock()
	for _, dev := range devices {
		s.Displays = append(s.Displays, dev.Stat())
	}
	return s
}

func (self *Composer) Dump() string {
	var sb strings.Builder
	s := self.Stat()
	fmt.Fprintf(&sb, "composer frames=%d displays=%d\n", s.Frames, len(s.Displays))
	if mgr := self.Manager(); mgr != nil {
		sb.WriteString(mgr.Dump())
	}
	for _, dev := range self.Devices() {
		sb.WriteString(dev.Dump())
	}
	return sb.String()
}

func (self *Composer) Close() error {
	self.mu.Lock()
	devices := self.devices
	self.devices = nil
	mgr := self.mgr
	self.mgr = nil
	self.mu.Unlock()

	errs := make([]error, 0, len(devices)+2)
	for _, dev := range devices {
		errs = append(errs, dev.Deinitialize())
	}
	if mgr != nil {
		errs = append(errs, mgr.Deinitialize())
	}
	errs = append(errs, self.drv.Close())
	return helpers.FoldErrors(errs)
}
