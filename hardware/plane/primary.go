package plane

import (
	"github.com/temoto/hwcomposer/hardware/bufmap"
	"github.com/temoto/hwcomposer/log2"
)

// Primary plane is hard wired to the pipe of the same index.
// It shows the framebuffer target, or a single full screen layer directly.
type Primary struct {
	base
}

var _ Plane = new(Primary)

func NewPrimary(log *log2.Log, mem bufmap.Memory, hw Programmer, pipe int, cacheCapacity int) *Primary {
	self := &Primary{base: newBase(log, mem, hw, TypePrimary, pipe, 1<<uint(pipe), cacheCapacity)}
	self.kind = self
	return self
}

func (self *Primary) validFormat(f bufmap.Format) bool {
	_, ok := dspFormat(f)
	return ok
}

func (self *Primary) validDescriptor(d bufmap.Descriptor) bool {
	return d.Width > 0 && d.Height > 0 && d.Stride.Luma > 0 && d.Stride.Luma%spriteStrideAlign == 0
}

func (self *Primary) validTransform(t Transform) bool { return t == Transform0 }
func (self *Primary) validBlending(b Blending) bool   { return b == BlendingNone }
func (self *Primary) validScaling(src, dst Rect) bool {
	// no panel fitter, primary always starts at pipe origin
	return src.W == dst.W && src.H == dst.H && dst.X == 0 && dst.Y == 0
}

func (self *Primary) build(m *bufmap.Mapper) ([]uint32, error) {
	return dspRegs(&self.base, m)
}
