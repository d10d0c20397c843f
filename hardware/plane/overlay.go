package plane

import (
	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/hardware/bufmap"
	"github.com/temoto/hwcomposer/log2"
)

// Overlay register words in Update.Regs order.
// Filter coefficients follow at OverlayRegCount, one tap per word,
// horizontal luma, horizontal chroma, vertical luma, vertical chroma.
const (
	OverlayRegBufY = iota
	OverlayRegBufU
	OverlayRegBufV
	OverlayRegStride
	OverlayRegWinPos
	OverlayRegWinSize
	OverlayRegSrcWidth
	OverlayRegSrcWidthSW
	OverlayRegSrcHeight
	OverlayRegScaleY
	OverlayRegScaleUV
	OverlayRegScaleUVV
	OverlayRegCmd
	OverlayRegConfig
	OverlayRegCount
)

const OverlayCoeffCount = NumPhases * (HorizLumaTaps + HorizChromaTaps + VertLumaTaps + VertChromaTaps)

const (
	ocmdEnable     uint32 = 1
	ocmdMirrorBoth uint32 = 3 << 17
	ocmdYUV422     uint32 = 0x8 << 10
	ocmdYUV420     uint32 = 0xc << 10
	ocmdNV12       uint32 = 0xd << 10
	ocmdYSwap      uint32 = 2 << 14

	oconfigCCOut8Bit uint32 = 1 << 3
	oconfigPipeShift        = 18
)

const (
	overlayMaxWidth  = 2048
	overlayMaxHeight = 2048
	overlayMaxStride = 8192
	overlayMaxScale  = 7
)

type Overlay struct {
	base

	// filter is recomputed only when scale factors change
	lastScaleX, lastScaleY uint32
	coeffs                 []uint32
}

var _ Plane = new(Overlay)

func NewOverlay(log *log2.Log, mem bufmap.Memory, hw Programmer, index int, pipes uint32, cacheCapacity int) *Overlay {
	self := &Overlay{base: newBase(log, mem, hw, TypeOverlay, index, pipes, cacheCapacity)}
	self.kind = self
	return self
}

func (self *Overlay) validFormat(f bufmap.Format) bool { return f.IsYUV() }

func (self *Overlay) validDescriptor(d bufmap.Descriptor) bool {
	if d.Width <= 0 || d.Width > overlayMaxWidth || d.Height <= 0 || d.Height > overlayMaxHeight {
		return false
	}
	if d.Stride.Luma <= 0 || d.Stride.Luma > overlayMaxStride || d.Stride.Luma%64 != 0 {
		return false
	}
	return !d.Format.IsPlanar() || d.Stride.Chroma > 0
}

func (self *Overlay) validTransform(t Transform) bool { return t == Transform0 || t == Transform180 }
func (self *Overlay) validBlending(b Blending) bool   { return b == BlendingNone }
func (self *Overlay) validScaling(src, dst Rect) bool {
	return src.W <= dst.W*overlayMaxScale && dst.W <= src.W*overlayMaxScale &&
		src.H <= dst.H*overlayMaxScale && dst.H <= src.H*overlayMaxScale
}

// chroma subsampling factors
func uvRatio(f bufmap.Format) (h, v int) {
	if f.IsPlanar() {
		return 2, 2
	}
	return 2, 1
}

// Offsets of Y, U, V planes including crop, relative to buffer start.
func yuvOffsets(m *bufmap.Mapper) (y, u, v int) {
	crop := m.Crop()
	stride := m.Stride()
	height := m.Height()
	switch m.Format() {
	case bufmap.FormatNV12:
		y = crop.Y*stride.Luma + crop.X
		u = stride.Luma*height + (crop.Y/2)*stride.Chroma + crop.X&^1
		v = u
	case bufmap.FormatYV12, bufmap.FormatI420:
		first := stride.Luma * height
		second := first + stride.Chroma*(height/2)
		chroma := (crop.Y/2)*stride.Chroma + crop.X/2
		y = crop.Y*stride.Luma + crop.X
		if m.Format() == bufmap.FormatYV12 {
			v, u = first+chroma, second+chroma
		} else {
			u, v = first+chroma, second+chroma
		}
	default: // packed 422
		y = crop.Y*stride.Luma + crop.X*2
	}
	return
}

// Source width in 64 byte units fetched by overlay engine.
func calcSwidthSW(offset, width int) uint32 {
	return uint32(((((offset+width+63)>>6)-(offset>>6))*2 - 1) << 2)
}

func (self *Overlay) build(m *bufmap.Mapper) ([]uint32, error) {
	crop := m.Crop()
	if crop.W <= 0 || crop.H <= 0 || crop.X+crop.W > m.Width() || crop.Y+crop.H > m.Height() {
		return nil, errors.NotValidf("crop %s of %dx%d", crop, m.Width(), m.Height())
	}
	dst := self.pos
	if dst.Empty() {
		dst = Rect{W: crop.W, H: crop.H}
	}
	src := Rect{X: crop.X, Y: crop.Y, W: crop.W, H: crop.H}
	if !self.validScaling(src, dst) {
		return nil, errors.NotSupportedf("overlay scaling %s -> %s", src, dst)
	}

	format := m.Format()
	stride := m.Stride()
	gtt := int(m.GttBytes())
	yOff, uOff, vOff := yuvOffsets(m)
	uvH, uvV := uvRatio(format)

	regs := make([]uint32, OverlayRegCount, OverlayRegCount+OverlayCoeffCount)
	regs[OverlayRegBufY] = uint32(gtt + yOff)
	if format.IsPlanar() {
		regs[OverlayRegBufU] = uint32(gtt + uOff)
		regs[OverlayRegBufV] = uint32(gtt + vOff)
	}
	regs[OverlayRegStride] = uint32(stride.Luma) | uint32(stride.Chroma)<<16
	regs[OverlayRegWinPos] = uint32(dst.Y)<<16 | uint32(dst.X)
	regs[OverlayRegWinSize] = uint32(dst.H)<<16 | uint32(dst.W)
	regs[OverlayRegSrcWidth] = uint32(crop.W) | uint32(crop.W/uvH)<<16
	regs[OverlayRegSrcHeight] = uint32(crop.H) | uint32(crop.H/uvV)<<16

	swY := calcSwidthSW(yOff, crop.W*format.BytesPerPixel())
	var swUV uint32
	switch format {
	case bufmap.FormatNV12:
		swUV = calcSwidthSW(uOff, crop.W)
	case bufmap.FormatYV12, bufmap.FormatI420:
		swUV = calcSwidthSW(uOff, crop.W/2)
	}
	regs[OverlayRegSrcWidthSW] = swY | swUV<<16

	// 20.12 fixed point source/destination ratio
	xscale := uint32(((crop.W - 1) << 12) / dst.W)
	yscale := uint32(((crop.H - 1) << 12) / dst.H)
	xscaleUV := xscale / uint32(uvH)
	yscaleUV := yscale / uint32(uvV)
	xInt, yInt := (xscale>>12)&0x7ff, (yscale>>12)&0x7ff
	xIntUV, yIntUV := (xscaleUV>>12)&0x7ff, (yscaleUV>>12)&0x7ff
	regs[OverlayRegScaleY] = xInt<<16 | (xscale&0xfff)<<3 | (yscale&0xfff)<<20
	regs[OverlayRegScaleUV] = xIntUV<<16 | (xscaleUV&0xfff)<<3 | (yscaleUV&0xfff)<<20
	regs[OverlayRegScaleUVV] = yInt<<16 | yIntUV

	cmd := ocmdEnable
	switch format {
	case bufmap.FormatNV12:
		cmd |= ocmdNV12
	case bufmap.FormatYV12, bufmap.FormatI420:
		cmd |= ocmdYUV420
	case bufmap.FormatUYVY:
		cmd |= ocmdYUV422 | ocmdYSwap
	default:
		cmd |= ocmdYUV422
	}
	if self.transform == Transform180 {
		cmd |= ocmdMirrorBoth
	}
	regs[OverlayRegCmd] = cmd
	regs[OverlayRegConfig] = oconfigCCOut8Bit | uint32(self.pipe&0x3)<<oconfigPipeShift

	if self.coeffs == nil || xscale != self.lastScaleX || yscale != self.lastScaleY {
		self.coeffs = overlayCoeffs(xscale, yscale, xscaleUV, yscaleUV)
		self.lastScaleX, self.lastScaleY = xscale, yscale
	}
	regs = append(regs, self.coeffs...)
	return regs, nil
}

func overlayCoeffs(xscale, yscale, xscaleUV, yscaleUV uint32) []uint32 {
	out := make([]uint32, 0, OverlayCoeffCount)
	tables := [][]Coeff{
		UpdateCoeff(HorizLumaTaps, float64(xscale)/4096, true, true),
		UpdateCoeff(HorizChromaTaps, float64(xscaleUV)/4096, true, false),
		UpdateCoeff(VertLumaTaps, float64(yscale)/4096, false, true),
		UpdateCoeff(VertChromaTaps, float64(yscaleUV)/4096, false, false),
	}
	for _, t := range tables {
		for _, c := range t {
			out = append(out, uint32(c.Reg()))
		}
	}
	return out
}
