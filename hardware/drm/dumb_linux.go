package drm

import (
	"sync"
	"unsafe"

	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/hardware/bufmap"
	"github.com/temoto/hwcomposer/helpers"
	"golang.org/x/sys/unix"
)

// DumbMemory allocates CPU mapped scan-out buffers (DRM dumb buffers)
// and registers them as framebuffer objects. Used for framebuffer target
// and test patterns where no GPU allocator is present.
type DumbMemory struct {
	mu   sync.Mutex
	fd   uintptr
	bufs map[bufmap.Handle]*dumbBuffer
	next bufmap.Handle
}

type dumbBuffer struct {
	desc bufmap.Descriptor
	gem  uint32
	fb   uint32
	cpu  []byte
	refs int
}

var _ bufmap.Allocator = new(DumbMemory)

func newDumbMemory(fd uintptr) *DumbMemory {
	return &DumbMemory{fd: fd, bufs: make(map[bufmap.Handle]*dumbBuffer), next: 1}
}

func dumbDepth(f bufmap.Format) (bpp, depth uint32, ok bool) {
	switch f {
	case bufmap.FormatRGB565:
		return 16, 16, true
	case bufmap.FormatBGRX8888, bufmap.FormatRGBX8888:
		return 32, 24, true
	case bufmap.FormatBGRA8888, bufmap.FormatRGBA8888:
		return 32, 32, true
	}
	return 0, 0, false
}

func (self *DumbMemory) Allocate(width, height int, format bufmap.Format) (bufmap.Descriptor, error) {
	bpp, depth, ok := dumbDepth(format)
	if !ok {
		return bufmap.Descriptor{}, errors.NotSupportedf("dumb buffer format %s", format)
	}
	self.mu.Lock()
	defer self.mu.Unlock()

	create := drmModeCreateDumb{Width: uint32(width), Height: uint32(height), Bpp: bpp}
	if err := ioctl(self.fd, ioctlModeCreateDumb, unsafe.Pointer(&create)); err != nil {
		return bufmap.Descriptor{}, errors.Annotate(err, "MODE_CREATE_DUMB")
	}
	buf := &dumbBuffer{gem: create.Handle}
	fb := drmModeFbCmd{
		Width:  uint32(width),
		Height: uint32(height),
		Pitch:  create.Pitch,
		Bpp:    bpp,
		Depth:  depth,
		Handle: create.Handle,
	}
	if err := ioctl(self.fd, ioctlModeAddFB, unsafe.Pointer(&fb)); err != nil {
		_ = self.destroy(buf)
		return bufmap.Descriptor{}, errors.Annotate(err, "MODE_ADDFB")
	}
	buf.fb = fb.FbID
	mapReq := drmModeMapDumb{Handle: create.Handle}
	if err := ioctl(self.fd, ioctlModeMapDumb, unsafe.Pointer(&mapReq)); err != nil {
		_ = self.destroy(buf)
		return bufmap.Descriptor{}, errors.Annotate(err, "MODE_MAP_DUMB")
	}
	cpu, err := unix.Mmap(int(self.fd), int64(mapReq.Offset), int(create.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = self.destroy(buf)
		return bufmap.Descriptor{}, errors.Annotate(err, "dumb buffer mmap")
	}
	buf.cpu = cpu

	h := self.next
	self.next++
	buf.desc = bufmap.Descriptor{
		Handle: h,
		Width:  width,
		Height: height,
		Stride: bufmap.Stride{Luma: int(create.Pitch)},
		Format: format,
		Crop:   bufmap.Crop{W: width, H: height},
	}
	self.bufs[h] = buf
	return buf.desc, nil
}

// Free fails while buffer is wrapped.
func (self *DumbMemory) Free(h bufmap.Handle) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	buf, ok := self.bufs[h]
	if !ok {
		return errors.NotFoundf("dumb buffer handle=%x", uint64(h))
	}
	if buf.refs != 0 {
		return errors.Errorf("dumb buffer handle=%x wrapped refs=%d", uint64(h), buf.refs)
	}
	delete(self.bufs, h)
	return self.destroy(buf)
}

// CPU mapping for drawing into buffer.
func (self *DumbMemory) CPU(h bufmap.Handle) ([]byte, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	buf, ok := self.bufs[h]
	if !ok {
		return nil, errors.NotFoundf("dumb buffer handle=%x", uint64(h))
	}
	return buf.cpu, nil
}

func (self *DumbMemory) destroy(buf *dumbBuffer) error {
	errs := make([]error, 0, 3)
	if buf.cpu != nil {
		errs = append(errs, unix.Munmap(buf.cpu))
		buf.cpu = nil
	}
	if buf.fb != 0 {
		fb := buf.fb
		errs = append(errs, errors.Annotate(ioctl(self.fd, ioctlModeRmFB, unsafe.Pointer(&fb)), "MODE_RMFB"))
		buf.fb = 0
	}
	if buf.gem != 0 {
		gem := buf.gem
		errs = append(errs, errors.Annotate(ioctl(self.fd, ioctlModeDestroyDumb, unsafe.Pointer(&gem)), "MODE_DESTROY_DUMB"))
		buf.gem = 0
	}
	return helpers.FoldErrors(errs)
}

func (self *DumbMemory) close() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	errs := make([]error, 0, len(self.bufs))
	for h, buf := range self.bufs {
		errs = append(errs, self.destroy(buf))
		delete(self.bufs, h)
	}
	return helpers.FoldErrors(errs)
}

func (self *DumbMemory) Domain() bufmap.Domain { return bufmap.DomainTTM }

func (self *DumbMemory) Describe(h bufmap.Handle) (bufmap.Descriptor, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	buf, ok := self.bufs[h]
	if !ok {
		return bufmap.Descriptor{}, errors.NotFoundf("dumb buffer handle=%x", uint64(h))
	}
	return buf.desc, nil
}

func (self *DumbMemory) Wrap(d bufmap.Descriptor) (bufmap.Wrapper, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	buf, ok := self.bufs[d.Handle]
	if !ok {
		return nil, errors.NotFoundf("dumb buffer handle=%x", uint64(d.Handle))
	}
	buf.refs++
	return &dumbWrapper{mem: self, buf: buf}, nil
}

type dumbWrapper struct {
	mem *DumbMemory
	buf *dumbBuffer
}

// Dumb buffers are not in GTT, display engine addresses them by fb object.
func (self *dumbWrapper) GttOffset() uint32 { return 0 }
func (self *dumbWrapper) CPU() []byte       { return self.buf.cpu }
func (self *dumbWrapper) Object() uint32    { return self.buf.fb }
func (self *dumbWrapper) WaitIdle() error   { return nil }
func (self *dumbWrapper) Release() error {
	self.mem.mu.Lock()
	self.buf.refs--
	self.mem.mu.Unlock()
	return nil
}
