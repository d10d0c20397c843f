package plane

import (
	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/hardware/bufmap"
	"github.com/temoto/hwcomposer/log2"
)

// Display sprite control register bits (DSPxCNTR layout, shared with primary).
const (
	dspEnable     uint32 = 1 << 31
	dspTiled      uint32 = 1 << 10
	dspPipeShift         = 24
	dspFormatMask uint32 = 0xf << 26

	dspFormatRGB565 uint32 = 0x5 << 26
	dspFormatBGRX   uint32 = 0x6 << 26
	dspFormatBGRA   uint32 = 0x7 << 26
	dspFormatRGBX   uint32 = 0xe << 26
	dspFormatRGBA   uint32 = 0xf << 26
)

// Sprite register words in Update.Regs order.
const (
	SpriteRegControl = iota
	SpriteRegStride
	SpriteRegPos
	SpriteRegSize
	SpriteRegSurface
	SpriteRegLinOff
	SpriteRegTileOff
	SpriteRegCount
)

const (
	spriteMaxWidth    = 2048
	spriteMaxHeight   = 2048
	spriteMaxStride   = 16384
	spriteStrideAlign = 64
)

type Sprite struct {
	base
}

var _ Plane = new(Sprite)

func NewSprite(log *log2.Log, mem bufmap.Memory, hw Programmer, index int, pipes uint32, cacheCapacity int) *Sprite {
	self := &Sprite{base: newBase(log, mem, hw, TypeSprite, index, pipes, cacheCapacity)}
	self.kind = self
	return self
}

func (self *Sprite) validFormat(f bufmap.Format) bool {
	_, ok := dspFormat(f)
	return ok
}

func (self *Sprite) validDescriptor(d bufmap.Descriptor) bool {
	return d.Width > 0 && d.Width <= spriteMaxWidth &&
		d.Height > 0 && d.Height <= spriteMaxHeight &&
		d.Stride.Luma > 0 && d.Stride.Luma <= spriteMaxStride &&
		d.Stride.Luma%spriteStrideAlign == 0
}

func (self *Sprite) validTransform(t Transform) bool { return t == Transform0 }
func (self *Sprite) validBlending(b Blending) bool {
	return b == BlendingNone || b == BlendingPremult
}
func (self *Sprite) validScaling(src, dst Rect) bool { return src.W == dst.W && src.H == dst.H }

func (self *Sprite) build(m *bufmap.Mapper) ([]uint32, error) {
	return dspRegs(&self.base, m)
}

func dspFormat(f bufmap.Format) (uint32, bool) {
	switch f {
	case bufmap.FormatRGB565:
		return dspFormatRGB565, true
	case bufmap.FormatBGRX8888:
		return dspFormatBGRX, true
	case bufmap.FormatBGRA8888:
		return dspFormatBGRA, true
	case bufmap.FormatRGBX8888:
		return dspFormatRGBX, true
	case bufmap.FormatRGBA8888:
		return dspFormatRGBA, true
	}
	return 0, false
}

// dspRegs computes sprite/primary register words for the mapped buffer.
// Linear buffers are addressed by byte offset, tiled ones by x/y tile offset.
func dspRegs(b *base, m *bufmap.Mapper) ([]uint32, error) {
	format, ok := dspFormat(m.Format())
	if !ok {
		return nil, errors.NotSupportedf("format %s", m.Format())
	}
	crop := m.Crop()
	if crop.W <= 0 || crop.H <= 0 || crop.X+crop.W > m.Width() || crop.Y+crop.H > m.Height() {
		return nil, errors.NotValidf("crop %s of %dx%d", crop, m.Width(), m.Height())
	}
	dst := b.pos
	if dst.Empty() {
		dst = Rect{W: crop.W, H: crop.H}
	}

	regs := make([]uint32, SpriteRegCount)
	ctl := dspEnable | format | uint32(b.pipe&0x3)<<dspPipeShift
	if m.Tiling() == bufmap.TilingX {
		ctl |= dspTiled
		regs[SpriteRegTileOff] = uint32(crop.Y)<<16 | uint32(crop.X)
	} else {
		regs[SpriteRegLinOff] = uint32(crop.Y*m.Stride().Luma + crop.X*m.Format().BytesPerPixel())
	}
	regs[SpriteRegControl] = ctl
	regs[SpriteRegStride] = uint32(m.Stride().Luma)
	regs[SpriteRegPos] = uint32(dst.Y)<<16 | uint32(dst.X)
	regs[SpriteRegSize] = uint32(crop.H-1)<<16 | uint32(crop.W-1)
	regs[SpriteRegSurface] = m.GttBytes()
	return regs, nil
}
