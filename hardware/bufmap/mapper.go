// Package bufmap binds opaque client buffer handles to hardware addressable memory.
// Mapping is done once per handle per plane and cached.
package bufmap

import (
	"fmt"
	"sync/atomic"

	"github.com/juju/errors"
)

type Domain uint8

const (
	DomainGralloc Domain = iota
	DomainTTM
)

func (d Domain) String() string {
	if d == DomainTTM {
		return "ttm"
	}
	return "gralloc"
}

// Memory is the buffer allocator boundary (gralloc, TTM, DRM dumb buffers).
type Memory interface {
	Domain() Domain
	Describe(h Handle) (Descriptor, error)
	Wrap(d Descriptor) (Wrapper, error)
}

// Allocator creates CPU writable buffers, used for framebuffer target and
// diagnostic content.
type Allocator interface {
	Memory
	Allocate(width, height int, format Format) (Descriptor, error)
	CPU(h Handle) ([]byte, error)
	Free(h Handle) error
}

// Wrapper is the allocator's reference to one buffer, valid until Release.
type Wrapper interface {
	// GTT offset in pages, 0 when buffer is not bound into GTT.
	GttOffset() uint32
	// CPU mapping, may be nil.
	CPU() []byte
	// Kernel framebuffer object id, 0 when not registered.
	Object() uint32
	WaitIdle() error
	Release() error
}

const PageShift = 12

type Mapper struct {
	mem    Memory
	desc   Descriptor
	w      Wrapper
	gtt    uint32
	cpu    []byte
	object uint32
	refs   int32
	mapped bool
}

func NewMapper(mem Memory, desc Descriptor) *Mapper {
	return &Mapper{mem: mem, desc: desc}
}

func (self *Mapper) Map() error {
	if self.mapped {
		return nil
	}
	w, err := self.mem.Wrap(self.desc)
	if err != nil {
		return errors.Annotatef(err, "map %s", self.desc.String())
	}
	// GPU may still render into buffer
	if err = w.WaitIdle(); err != nil {
		_ = w.Release()
		return errors.Annotatef(err, "map wait idle handle=%x", uint64(self.desc.Handle))
	}
	gtt, cpu := w.GttOffset(), w.CPU()
	if gtt == 0 && cpu == nil {
		_ = w.Release()
		return errors.NotValidf("map handle=%x no gtt offset and no cpu address", uint64(self.desc.Handle))
	}
	self.w = w
	self.gtt = gtt
	self.cpu = cpu
	self.object = w.Object()
	self.mapped = true
	return nil
}

func (self *Mapper) Unmap() error {
	if !self.mapped {
		return nil
	}
	if refs := atomic.LoadInt32(&self.refs); refs != 0 {
		return errors.Errorf("unmap handle=%x refs=%d", uint64(self.desc.Handle), refs)
	}
	err := self.w.Release()
	self.w = nil
	self.gtt = 0
	self.cpu = nil
	self.object = 0
	self.mapped = false
	return errors.Annotatef(err, "unmap handle=%x", uint64(self.desc.Handle))
}

func (self *Mapper) IncRef() int32 { return atomic.AddInt32(&self.refs, 1) }
func (self *Mapper) DecRef() int32 {
	n := atomic.AddInt32(&self.refs, -1)
	if n < 0 {
		panic(fmt.Sprintf("code error mapper handle=%x decref<0", uint64(self.desc.Handle)))
	}
	return n
}
func (self *Mapper) Refs() int32 { return atomic.LoadInt32(&self.refs) }

func (self *Mapper) Mapped() bool           { return self.mapped }
func (self *Mapper) Descriptor() Descriptor { return self.desc }
func (self *Mapper) Handle() Handle         { return self.desc.Handle }
func (self *Mapper) Width() int             { return self.desc.Width }
func (self *Mapper) Height() int            { return self.desc.Height }
func (self *Mapper) Stride() Stride         { return self.desc.Stride }
func (self *Mapper) Format() Format         { return self.desc.Format }
func (self *Mapper) Tiling() Tiling         { return self.desc.Tiling }
func (self *Mapper) Crop() Crop             { return self.desc.Crop }
func (self *Mapper) GttOffset() uint32      { return self.gtt }
func (self *Mapper) GttBytes() uint32       { return self.gtt << PageShift }
func (self *Mapper) CPU() []byte            { return self.cpu }
func (self *Mapper) Object() uint32         { return self.object }

// SetCrop updates crop only, mapping stays valid.
func (self *Mapper) SetCrop(c Crop) { self.desc.Crop = c }
