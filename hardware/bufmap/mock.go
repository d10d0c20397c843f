package bufmap

// Public API to easy create buffer allocator stubs to test your code.

import (
	"sync"

	"github.com/juju/errors"
)

type MockMemory struct {
	mu        sync.Mutex
	domain    Domain
	descs     map[Handle]Descriptor
	pix       map[Handle][]byte
	nextAlloc Handle
	failWrap  map[Handle]error
	failIdle  map[Handle]error
	wrapped   map[Handle]int
	nextPage  uint32
	Wraps     int
	Releases  int
	IdleWaits int
}

var _ Allocator = new(MockMemory)

func NewMockMemory() *MockMemory {
	return &MockMemory{
		descs:     make(map[Handle]Descriptor),
		pix:       make(map[Handle][]byte),
		failWrap:  make(map[Handle]error),
		failIdle:  make(map[Handle]error),
		wrapped:   make(map[Handle]int),
		nextPage:  0x100,
		nextAlloc: 0x10000,
	}
}

// Register buffer with computed stride and full crop. Returns descriptor.
func (self *MockMemory) Register(h Handle, width, height int, format Format) Descriptor {
	d := Descriptor{
		Handle: h,
		Width:  width,
		Height: height,
		Format: format,
		Crop:   Crop{W: width, H: height},
	}
	d.Stride.Luma = alignUp(width*format.BytesPerPixel(), 64)
	if format.IsPlanar() {
		d.Stride.Chroma = alignUp(width/2, 64)
		if format == FormatNV12 {
			d.Stride.Chroma = d.Stride.Luma
		}
	}
	self.RegisterDescriptor(d)
	return d
}

func (self *MockMemory) RegisterDescriptor(d Descriptor) {
	self.mu.Lock()
	self.descs[d.Handle] = d
	self.mu.Unlock()
}

func (self *MockMemory) Allocate(width, height int, format Format) (Descriptor, error) {
	if format.BytesPerPixel() == 0 {
		return Descriptor{}, errors.NotSupportedf("mock allocate format %s", format)
	}
	self.mu.Lock()
	h := self.nextAlloc
	self.nextAlloc++
	self.mu.Unlock()
	d := self.Register(h, width, height, format)
	self.mu.Lock()
	size := d.Stride.Luma * height
	switch {
	case format == FormatNV12:
		size += d.Stride.Chroma * height / 2
	case format.IsPlanar():
		size += d.Stride.Chroma * height
	}
	self.pix[h] = make([]byte, size)
	self.mu.Unlock()
	return d, nil
}

func (self *MockMemory) CPU(h Handle) ([]byte, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	b, ok := self.pix[h]
	if !ok {
		return nil, errors.NotFoundf("mock buffer handle=%x", uint64(h))
	}
	return b, nil
}

// Free fails while buffer is wrapped, like DRM dumb buffers.
func (self *MockMemory) Free(h Handle) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if _, ok := self.descs[h]; !ok {
		return errors.NotFoundf("mock buffer handle=%x", uint64(h))
	}
	if refs := self.wrapped[h]; refs != 0 {
		return errors.Errorf("mock buffer handle=%x wrapped refs=%d", uint64(h), refs)
	}
	delete(self.descs, h)
	delete(self.pix, h)
	return nil
}

func (self *MockMemory) FailWrap(h Handle, err error) {
	self.mu.Lock()
	self.failWrap[h] = err
	self.mu.Unlock()
}

func (self *MockMemory) FailIdle(h Handle, err error) {
	self.mu.Lock()
	self.failIdle[h] = err
	self.mu.Unlock()
}

func (self *MockMemory) Live() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.Wraps - self.Releases
}

// Buffers counts registered and allocated buffers not freed yet.
func (self *MockMemory) Buffers() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return len(self.descs)
}

func (self *MockMemory) Domain() Domain { return self.domain }

func (self *MockMemory) Describe(h Handle) (Descriptor, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	d, ok := self.descs[h]
	if !ok {
		return Descriptor{}, errors.NotFoundf("mock buffer handle=%x", uint64(h))
	}
	return d, nil
}

func (self *MockMemory) Wrap(d Descriptor) (Wrapper, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if err := self.failWrap[d.Handle]; err != nil {
		return nil, err
	}
	if _, ok := self.descs[d.Handle]; !ok {
		return nil, errors.NotFoundf("mock buffer handle=%x", uint64(d.Handle))
	}
	self.Wraps++
	self.wrapped[d.Handle]++
	page := self.nextPage
	self.nextPage += uint32((d.Stride.Luma*d.Height*2)>>PageShift) + 1
	return &mockWrapper{mem: self, handle: d.Handle, gtt: page, object: uint32(d.Handle)}, nil
}

type mockWrapper struct {
	mem    *MockMemory
	handle Handle
	gtt    uint32
	object uint32
}

func (self *mockWrapper) GttOffset() uint32 { return self.gtt }
func (self *mockWrapper) CPU() []byte {
	self.mem.mu.Lock()
	defer self.mem.mu.Unlock()
	return self.mem.pix[self.handle]
}
func (self *mockWrapper) Object() uint32 { return self.object }
func (self *mockWrapper) WaitIdle() error {
	self.mem.mu.Lock()
	defer self.mem.mu.Unlock()
	self.mem.IdleWaits++
	return self.mem.failIdle[self.handle]
}
func (self *mockWrapper) Release() error {
	self.mem.mu.Lock()
	self.mem.Releases++
	self.mem.wrapped[self.handle]--
	self.mem.mu.Unlock()
	return nil
}

func alignUp(v, a int) int { return (v + a - 1) / a * a }
