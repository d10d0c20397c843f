package plane

import (
	"fmt"
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/hardware/bufmap"
	"github.com/temoto/hwcomposer/helpers"
	"github.com/temoto/hwcomposer/log2"
)

// Flipped buffers stay referenced until this many newer flips,
// hardware may still scan out the previous one until next vsync.
const inFlight = 2

type owner = uint32

const (
	ownerFree owner = iota
	ownerAllocated
	ownerReclaimed
)

// kind is what differs between plane types.
type kind interface {
	validFormat(f bufmap.Format) bool
	validDescriptor(d bufmap.Descriptor) bool
	validTransform(t Transform) bool
	validBlending(b Blending) bool
	validScaling(src, dst Rect) bool
	build(m *bufmap.Mapper) ([]uint32, error)
}

type base struct {
	log   *log2.Log
	mem   bufmap.Memory
	hw    Programmer
	kind  kind
	cache *bufmap.Cache

	index int
	typ   Type
	pipes uint32 // bitmask of pipes this plane can be attached to
	pipe  int
	owner uint32

	zorder    int
	pos       Rect
	crop      Rect
	transform Transform
	dirty     bool

	pending *bufmap.Mapper
	current *bufmap.Mapper
	active  []*bufmap.Mapper // flipped out, still referenced
	staged  []uint32
	regs    []uint32
	enabled bool

	stat Stat
}

func newBase(log *log2.Log, mem bufmap.Memory, hw Programmer, typ Type, index int, pipes uint32, cacheCapacity int) base {
	return base{
		log:   log,
		mem:   mem,
		hw:    hw,
		cache: bufmap.NewCache(log, cacheCapacity),
		index: index,
		typ:   typ,
		pipes: pipes,
		pipe:  lowestBit(pipes),
	}
}

func (self *base) planeBase() *base { return self }

func (self *base) Index() int      { return self.index }
func (self *base) Type() Type      { return self.typ }
func (self *base) Pipe() int       { return self.pipe }
func (self *base) ZOrder() int     { return self.zorder }
func (self *base) SetZOrder(z int) { self.zorder = z }
func (self *base) Enabled() bool   { return self.enabled }
func (self *base) Stat() Stat      { return self.stat }

func (self *base) State() State {
	switch atomic.LoadUint32(&self.owner) {
	case ownerFree:
		return StateFree
	case ownerReclaimed:
		return StateReclaimed
	}
	switch {
	case self.current != nil && self.enabled:
		return StateActive
	case self.pending != nil:
		return StateBound
	}
	return StateAllocated
}

func (self *base) String() string {
	return fmt.Sprintf("%s%d pipe=%d state=%s z=%d dst=%s src=%s cache=%d",
		self.typ, self.index, self.pipe, self.State(), self.zorder, self.pos, self.crop, self.cache.Len())
}

func (self *base) Position() Rect       { return self.pos }
func (self *base) SourceCrop() Rect     { return self.crop }
func (self *base) Transform() Transform { return self.transform }

func (self *base) SetPosition(x, y, w, h int) error {
	if w <= 0 || h <= 0 {
		return errors.NotValidf("%s%d position %dx%d", self.typ, self.index, w, h)
	}
	r := Rect{X: x, Y: y, W: w, H: h}
	if r != self.pos {
		self.pos = r
		self.dirty = true
	}
	return nil
}

func (self *base) SetSourceCrop(x, y, w, h int) error {
	if x < 0 || y < 0 || w <= 0 || h <= 0 {
		return errors.NotValidf("%s%d source crop %dx%d+%d+%d", self.typ, self.index, w, h, x, y)
	}
	r := Rect{X: x, Y: y, W: w, H: h}
	if r != self.crop {
		self.crop = r
		self.dirty = true
	}
	return nil
}

func (self *base) SetTransform(t Transform) error {
	if !self.kind.validTransform(t) {
		return errors.NotSupportedf("%s%d transform %d", self.typ, self.index, t.Degrees())
	}
	if t != self.transform {
		self.transform = t
		self.dirty = true
	}
	return nil
}

func (self *base) IsValidBuffer(h bufmap.Handle) bool {
	d, err := self.mem.Describe(h)
	if err != nil {
		return false
	}
	return self.kind.validFormat(d.Format) && self.kind.validDescriptor(d)
}

func (self *base) IsValidTransform(t Transform) bool { return self.kind.validTransform(t) }
func (self *base) IsValidBlending(b Blending) bool   { return self.kind.validBlending(b) }
func (self *base) IsValidScaling(src, dst Rect) bool {
	if src.Empty() || dst.Empty() {
		return false
	}
	return self.kind.validScaling(src, dst)
}

// SetDataBuffer maps buffer (once per handle) and stages registers for next Flip.
// On error, plane keeps its previous pending buffer.
func (self *base) SetDataBuffer(h bufmap.Handle) error {
	m, err := self.mapper(h)
	if err != nil {
		return errors.Annotatef(err, "%s%d set data buffer", self.typ, self.index)
	}
	regs, err := self.build(m)
	if err != nil {
		return errors.Annotatef(err, "%s%d set data buffer", self.typ, self.index)
	}
	if self.pending != m {
		m.IncRef()
		self.release(self.pending)
		self.pending = m
	}
	self.staged = regs
	self.dirty = false
	return nil
}

func (self *base) mapper(h bufmap.Handle) (*bufmap.Mapper, error) {
	d, err := self.mem.Describe(h)
	if err != nil {
		return nil, err
	}
	if !self.kind.validFormat(d.Format) {
		return nil, errors.NotSupportedf("format %s", d.Format)
	}
	if !self.kind.validDescriptor(d) {
		return nil, errors.NotValidf("buffer %s", d.String())
	}
	if m, ok := self.cache.Get(h); ok {
		md := m.Descriptor()
		md.Crop = d.Crop
		if md.SameLayout(d) {
			return m, nil
		}
		// handle reused by allocator with new layout
		if m.Refs() != 0 {
			return nil, errors.Errorf("buffer handle=%x layout changed while in use", uint64(h))
		}
		if err = self.cache.Remove(h); err != nil {
			return nil, err
		}
	}
	m := bufmap.NewMapper(self.mem, d)
	if err = m.Map(); err != nil {
		return nil, err
	}
	self.stat.Maps++
	if err = self.cache.Add(h, m); err != nil {
		_ = m.Unmap()
		return nil, err
	}
	return m, nil
}

func (self *base) build(m *bufmap.Mapper) ([]uint32, error) {
	if self.crop.Empty() {
		m.SetCrop(bufmap.Crop{W: m.Width(), H: m.Height()})
	} else {
		m.SetCrop(self.crop.Crop())
	}
	return self.kind.build(m)
}

func (self *base) CurrentBuffer() (bufmap.Handle, bool) {
	if self.current == nil {
		return 0, false
	}
	return self.current.Handle(), true
}

func (self *base) PendingBuffer() (bufmap.Handle, bool) {
	if self.pending == nil {
		return 0, false
	}
	return self.pending.Handle(), true
}

// Flip promotes pending buffer to current and returns the update to submit.
// Without pending buffer, current one is resubmitted. Returns false when
// there is nothing to show.
func (self *base) Flip() (Update, bool) {
	if self.pending == nil {
		if self.current == nil {
			return Update{}, false
		}
		if self.dirty {
			regs, err := self.build(self.current)
			if err != nil {
				self.log.Error(errors.Annotatef(err, "%s%d flip rebuild", self.typ, self.index))
				return Update{}, false
			}
			self.regs = regs
			self.dirty = false
		}
		self.enabled = true
		return self.update(self.current, self.regs), true
	}
	if self.dirty {
		regs, err := self.build(self.pending)
		if err != nil {
			self.log.Error(errors.Annotatef(err, "%s%d flip rebuild", self.typ, self.index))
			return Update{}, false
		}
		self.staged = regs
		self.dirty = false
	}
	if self.current != nil && self.current != self.pending {
		self.retire(self.current)
	} else if self.current == self.pending {
		// same buffer flipped again, pending reference is redundant
		self.current.DecRef()
	}
	self.current = self.pending
	self.pending = nil
	self.regs = self.staged
	self.staged = nil
	self.enabled = true
	self.stat.Flips++
	return self.update(self.current, self.regs), true
}

func (self *base) update(m *bufmap.Mapper, regs []uint32) Update {
	u := self.disabledUpdate()
	u.Enabled = true
	u.Handle = m.Handle()
	u.Object = m.Object()
	c := m.Crop()
	u.Src = Rect{X: c.X, Y: c.Y, W: c.W, H: c.H}
	u.Dst = self.pos
	u.Transform = self.transform
	u.Regs = regs
	return u
}

func (self *base) disabledUpdate() Update {
	return Update{
		Index:  self.index,
		Type:   self.typ,
		Pipe:   self.pipe,
		ZOrder: self.zorder,
	}
}

func (self *base) retire(m *bufmap.Mapper) {
	self.active = append(self.active, m)
	for len(self.active) > inFlight {
		self.release(self.active[0])
		self.active[0] = nil
		self.active = self.active[1:]
	}
}

func (self *base) release(m *bufmap.Mapper) {
	if m != nil {
		m.DecRef()
	}
}

func (self *base) releaseAll() {
	self.release(self.pending)
	self.release(self.current)
	for _, m := range self.active {
		self.release(m)
	}
	self.pending = nil
	self.current = nil
	self.active = nil
	self.staged = nil
	self.regs = nil
}

func (self *base) Enable() error {
	if self.enabled {
		return nil
	}
	if self.current == nil {
		return errors.NotValidf("%s%d enable without buffer", self.typ, self.index)
	}
	if err := self.hw.Apply(self.update(self.current, self.regs)); err != nil {
		return errors.Annotatef(err, "%s%d enable", self.typ, self.index)
	}
	self.enabled = true
	self.stat.Enables++
	return nil
}

// Disable takes effect immediately and drops buffer references.
// Calling it on disabled plane is no-op.
func (self *base) Disable() error {
	if !self.enabled {
		self.releaseAll()
		return nil
	}
	if err := self.hw.Apply(self.disabledUpdate()); err != nil {
		return errors.Annotatef(err, "%s%d disable", self.typ, self.index)
	}
	self.enabled = false
	self.stat.Disables++
	self.releaseAll()
	return nil
}

// Reset disables plane and unmaps its idle buffers, so allocator may free them.
func (self *base) Reset() error {
	err := self.Disable()
	self.cache.Trim()
	self.pos = Rect{}
	self.crop = Rect{}
	self.transform = Transform0
	self.zorder = 0
	self.dirty = false
	return err
}

func (self *base) InvalidateBufferCache() error {
	errs := make([]error, 0, 2)
	if self.enabled {
		errs = append(errs, self.Disable())
	}
	self.releaseAll()
	errs = append(errs, self.cache.Clear())
	return helpers.FoldErrors(errs)
}

func (self *base) attach(pipe int) error {
	if self.pipes&(1<<uint(pipe)) == 0 {
		return errors.NotSupportedf("%s%d pipe=%d mask=%b", self.typ, self.index, pipe, self.pipes)
	}
	if pipe != self.pipe {
		self.pipe = pipe
		self.dirty = true
	}
	return nil
}

func lowestBit(mask uint32) int {
	for i := 0; i < 32; i++ {
		if mask&(1<<uint(i)) != 0 {
			return i
		}
	}
	return -1
}
