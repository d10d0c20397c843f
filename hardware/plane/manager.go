package plane

import (
	"fmt"
	"math/bits"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/hardware/bufmap"
	"github.com/temoto/hwcomposer/helpers"
	"github.com/temoto/hwcomposer/log2"
)

// Manager owns all planes of the display controller and hands them out to pipes.
// Bit i of free/reclaimed mask stands for plane with index i of that type.
type Manager struct {
	mu            sync.Mutex
	log           *log2.Log
	mem           bufmap.Memory
	hw            Programmer
	cacheCapacity int
	variant       Variant
	initialized   bool
	planes        [numTypes][]Plane
	free          [numTypes]uint32
	reclaimed     [numTypes]uint32
}

func NewManager(log *log2.Log, mem bufmap.Memory, hw Programmer, cacheCapacity int) *Manager {
	return &Manager{
		log:           log,
		mem:           mem,
		hw:            hw,
		cacheCapacity: cacheCapacity,
	}
}

// Detect finds variant by name override or device id and initializes pools.
func (self *Manager) Detect(name string, deviceID uint16) error {
	v, err := FindVariant(name, deviceID)
	if err != nil {
		return errors.Annotate(err, "plane manager detect")
	}
	return self.Initialize(v)
}

func (self *Manager) Initialize(v Variant) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.initialized {
		return errors.AlreadyExistsf("plane manager variant=%s", self.variant.Name)
	}
	if v.Pipes <= 0 || v.Pipes > 32 || v.Sprites() > 32 || v.Overlays() > 32 {
		return errors.NotValidf("plane manager variant %s", v.String())
	}

	for i, pipes := range v.SpritePipes {
		self.planes[TypeSprite] = append(self.planes[TypeSprite],
			NewSprite(self.log, self.mem, self.hw, i, pipes, self.cacheCapacity))
	}
	for i, pipes := range v.OverlayPipes {
		self.planes[TypeOverlay] = append(self.planes[TypeOverlay],
			NewOverlay(self.log, self.mem, self.hw, i, pipes, self.cacheCapacity))
	}
	for pipe := 0; pipe < v.Pipes; pipe++ {
		self.planes[TypePrimary] = append(self.planes[TypePrimary],
			NewPrimary(self.log, self.mem, self.hw, pipe, self.cacheCapacity))
	}
	for t := range self.planes {
		self.free[t] = fullMask(len(self.planes[t]))
		self.reclaimed[t] = 0
	}
	self.variant = v
	self.initialized = true
	self.log.Debugf("plane manager initialized %s", v.String())
	return nil
}

func (self *Manager) Deinitialize() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	errs := make([]error, 0)
	for t := range self.planes {
		for _, p := range self.planes[t] {
			if err := p.Reset(); err != nil {
				errs = append(errs, err)
			}
			if err := p.InvalidateBufferCache(); err != nil {
				errs = append(errs, err)
			}
		}
		self.planes[t] = nil
		self.free[t] = 0
		self.reclaimed[t] = 0
	}
	self.initialized = false
	return helpers.FoldErrors(errs)
}

func (self *Manager) Initialized() bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.initialized
}

func (self *Manager) Variant() Variant {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.variant
}

func (self *Manager) GetSpritePlane(pipe int) Plane  { return self.get(TypeSprite, pipe) }
func (self *Manager) GetOverlayPlane(pipe int) Plane { return self.get(TypeOverlay, pipe) }

// GetPrimaryPlane returns the one primary plane wired to pipe, or nil when it is taken.
func (self *Manager) GetPrimaryPlane(pipe int) Plane { return self.get(TypePrimary, pipe) }

// get returns nil when pool is exhausted for the pipe.
// Preference: reclaimed plane still on this pipe (no flicker),
// then lowest free bit, then reclaimed plane of other pipe.
func (self *Manager) get(t Type, pipe int) Plane {
	self.mu.Lock()
	defer self.mu.Unlock()
	if !self.initialized || pipe < 0 || pipe >= 32 {
		return nil
	}
	pool := self.planes[t]
	pick := -1
	fromReclaimed := false
	for i, p := range pool {
		if self.reclaimed[t]&(1<<uint(i)) != 0 && p.Pipe() == pipe {
			pick, fromReclaimed = i, true
			break
		}
	}
	if pick < 0 {
		pick = lowestCapable(pool, self.free[t], pipe)
	}
	if pick < 0 {
		if pick = lowestCapable(pool, self.reclaimed[t], pipe); pick >= 0 {
			fromReclaimed = true
		}
	}
	if pick < 0 {
		self.log.Debugf("plane manager %s pipe=%d exhausted", t, pipe)
		return nil
	}

	p := pool[pick]
	b := p.planeBase()
	if fromReclaimed && b.pipe != pipe {
		// moving visible plane between pipes needs it off first
		if err := p.Disable(); err != nil {
			self.log.Error(errors.Annotatef(err, "plane manager move %s%d", t, pick))
		}
	}
	if err := b.attach(pipe); err != nil {
		self.log.Error(errors.Annotate(err, "code error plane manager attach"))
		return nil
	}
	bit := uint32(1) << uint(pick)
	self.free[t] &^= bit
	self.reclaimed[t] &^= bit
	atomic.StoreUint32(&b.owner, ownerAllocated)
	return p
}

// PeekPlane returns next plane get would give without allocating it.
func (self *Manager) PeekPlane(t Type, pipe int) Plane {
	self.mu.Lock()
	defer self.mu.Unlock()
	pool := self.planes[t]
	if i := lowestCapable(pool, self.free[t]|self.reclaimed[t], pipe); i >= 0 {
		return pool[i]
	}
	return nil
}

// PutPlane returns plane to free pool. Caller must disable it first.
func (self *Manager) PutPlane(p Plane) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	bit, err := self.allocatedBit(p)
	if err != nil {
		return errors.Annotate(err, "plane manager put")
	}
	if p.Enabled() {
		return errors.Errorf("plane manager put %s%d still enabled", p.Type(), p.Index())
	}
	self.free[p.Type()] |= bit
	atomic.StoreUint32(&p.planeBase().owner, ownerFree)
	return nil
}

// ReclaimPlane parks plane until DisableReclaimedPlanes, it stays visible meanwhile.
func (self *Manager) ReclaimPlane(p Plane) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	bit, err := self.allocatedBit(p)
	if err != nil {
		return errors.Annotate(err, "plane manager reclaim")
	}
	self.reclaimed[p.Type()] |= bit
	atomic.StoreUint32(&p.planeBase().owner, ownerReclaimed)
	return nil
}

// DisableReclaimedPlanes physically disables planes nobody took back this frame.
func (self *Manager) DisableReclaimedPlanes() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	errs := make([]error, 0)
	for t := range self.planes {
		for i, p := range self.planes[t] {
			bit := uint32(1) << uint(i)
			if self.reclaimed[t]&bit == 0 {
				continue
			}
			if err := p.Reset(); err != nil {
				errs = append(errs, err)
			}
			self.reclaimed[t] &^= bit
			self.free[t] |= bit
			atomic.StoreUint32(&p.planeBase().owner, ownerFree)
		}
	}
	return helpers.FoldErrors(errs)
}

// ForgetBuffer drops idle mappings of handle from every plane cache.
// False when some plane still scans it out or keeps it in flight.
func (self *Manager) ForgetBuffer(h bufmap.Handle) bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	ok := true
	for t := range self.planes {
		for _, p := range self.planes[t] {
			if !p.planeBase().cache.Forget(h) {
				ok = false
			}
		}
	}
	return ok
}

// FreeCount of planes of type available to pipe, reclaimed included.
func (self *Manager) FreeCount(t Type, pipe int) int {
	self.mu.Lock()
	defer self.mu.Unlock()
	n := 0
	for i, p := range self.planes[t] {
		if (self.free[t]|self.reclaimed[t])&(1<<uint(i)) != 0 && p.planeBase().pipes&(1<<uint(pipe)) != 0 {
			n++
		}
	}
	return n
}

func (self *Manager) Planes(t Type) []Plane {
	self.mu.Lock()
	defer self.mu.Unlock()
	out := make([]Plane, len(self.planes[t]))
	copy(out, self.planes[t])
	return out
}

func (self *Manager) Masks(t Type) (free, reclaimed uint32) {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.free[t], self.reclaimed[t]
}

func (self *Manager) Dump() string {
	self.mu.Lock()
	defer self.mu.Unlock()
	var sb strings.Builder
	fmt.Fprintf(&sb, "plane manager %s\n", self.variant.String())
	for t := range self.planes {
		fmt.Fprintf(&sb, "  %s free=%0*b reclaimed=%0*b\n", Type(t),
			maxInt(1, len(self.planes[t])), self.free[t], maxInt(1, len(self.planes[t])), self.reclaimed[t])
		for _, p := range self.planes[t] {
			fmt.Fprintf(&sb, "    %s\n", p.String())
		}
	}
	return sb.String()
}

func (self *Manager) allocatedBit(p Plane) (uint32, error) {
	if p == nil {
		return 0, errors.NotValidf("nil plane")
	}
	t, i := p.Type(), p.Index()
	if t >= numTypes || i < 0 || i >= len(self.planes[t]) || self.planes[t][i] != p {
		return 0, errors.NotFoundf("%s%d in pool", t, i)
	}
	if owner := atomic.LoadUint32(&p.planeBase().owner); owner != ownerAllocated {
		return 0, errors.NotValidf("%s%d state=%s", t, i, p.State())
	}
	return 1 << uint(i), nil
}

func lowestCapable(pool []Plane, mask uint32, pipe int) int {
	for mask != 0 {
		i := bits.TrailingZeros32(mask)
		if i < len(pool) && pool[i].planeBase().pipes&(1<<uint(pipe)) != 0 {
			return i
		}
		mask &^= 1 << uint(i)
	}
	return -1
}

func fullMask(n int) uint32 {
	if n >= 32 {
		return ^uint32(0)
	}
	return uint32(1)<<uint(n) - 1
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
