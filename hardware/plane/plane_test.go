package plane

import (
	"fmt"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/hwcomposer/hardware/bufmap"
	"github.com/temoto/hwcomposer/log2"
)

func newTestSprite(t testing.TB) (*Sprite, *bufmap.MockMemory, *MockProgrammer) {
	mem := bufmap.NewMockMemory()
	hw := &MockProgrammer{}
	return NewSprite(log2.NewTest(t, log2.LDebug), mem, hw, 0, 0x1, 4), mem, hw
}

func TestSpriteRegisters(t *testing.T) {
	t.Parallel()

	type Case struct {
		name    string
		tiling  bufmap.Tiling
		crop    Rect
		linOff  uint32
		tileOff uint32
		size    uint32
	}
	cases := []Case{
		{"linear-full", bufmap.TilingNone, Rect{}, 0, 0, 479<<16 | 639},
		{"linear-crop", bufmap.TilingNone, Rect{X: 8, Y: 2, W: 320, H: 240}, 2*2560 + 8*4, 0, 239<<16 | 319},
		{"tiled-crop", bufmap.TilingX, Rect{X: 8, Y: 2, W: 320, H: 240}, 0, 2<<16 | 8, 239<<16 | 319},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			p, mem, _ := newTestSprite(t)
			d := mem.Register(1, 640, 480, bufmap.FormatBGRX8888)
			d.Tiling = c.tiling
			mem.RegisterDescriptor(d)
			require.NoError(t, p.SetPosition(10, 20, 640, 480))
			if !c.crop.Empty() {
				require.NoError(t, p.SetSourceCrop(c.crop.X, c.crop.Y, c.crop.W, c.crop.H))
			}
			require.NoError(t, p.SetDataBuffer(1))
			u, ok := p.Flip()
			require.True(t, ok)
			require.Len(t, u.Regs, SpriteRegCount)

			ctl := u.Regs[SpriteRegControl]
			assert.Equal(t, dspEnable, ctl&dspEnable)
			assert.Equal(t, dspFormatBGRX, ctl&dspFormatMask)
			assert.Equal(t, c.tiling == bufmap.TilingX, ctl&dspTiled != 0)
			assert.Equal(t, uint32(2560), u.Regs[SpriteRegStride])
			assert.Equal(t, uint32(20<<16|10), u.Regs[SpriteRegPos])
			assert.Equal(t, c.size, u.Regs[SpriteRegSize])
			assert.Equal(t, c.linOff, u.Regs[SpriteRegLinOff])
			assert.Equal(t, c.tileOff, u.Regs[SpriteRegTileOff])
			assert.NotZero(t, u.Regs[SpriteRegSurface])
			assert.Zero(t, u.Regs[SpriteRegSurface]&0xfff, "surface must be page aligned")
		})
	}
}

func TestSetDataBufferStagesWithoutTearing(t *testing.T) {
	t.Parallel()

	p, mem, _ := newTestSprite(t)
	atomicOwner(p, ownerAllocated)
	mem.Register(1, 64, 64, bufmap.FormatRGBA8888)
	mem.Register(2, 64, 64, bufmap.FormatRGBA8888)

	require.NoError(t, p.SetDataBuffer(1))
	assert.Equal(t, StateBound, p.State())
	_, ok := p.Flip()
	require.True(t, ok)
	assert.Equal(t, StateActive, p.State())

	require.NoError(t, p.SetDataBuffer(2))
	cur, _ := p.CurrentBuffer()
	pend, _ := p.PendingBuffer()
	assert.Equal(t, bufmap.Handle(1), cur, "visible frame must not change before flip")
	assert.Equal(t, bufmap.Handle(2), pend)
	assert.Equal(t, StateActive, p.State())

	u, ok := p.Flip()
	require.True(t, ok)
	assert.Equal(t, bufmap.Handle(2), u.Handle)
	_, ok = p.PendingBuffer()
	assert.False(t, ok)
}

func TestFlipWithoutBuffer(t *testing.T) {
	t.Parallel()

	p, _, hw := newTestSprite(t)
	_, ok := p.Flip()
	assert.False(t, ok)
	assert.False(t, p.Enabled())
	assert.Error(t, p.Enable())
	assert.Len(t, hw.Applied, 0)
}

func TestSetDataBufferFailure(t *testing.T) {
	t.Parallel()

	p, mem, _ := newTestSprite(t)
	mem.Register(1, 64, 64, bufmap.FormatRGB565)
	mem.Register(2, 64, 64, bufmap.FormatNV12)
	mem.Register(3, 64, 64, bufmap.FormatRGB565)
	mem.FailIdle(3, errors.Timeoutf("gpu busy"))
	wide := mem.Register(4, 4096, 16, bufmap.FormatRGB565)

	require.NoError(t, p.SetDataBuffer(1))
	err := p.SetDataBuffer(2)
	assert.True(t, errors.IsNotSupported(errors.Cause(err)), "err=%v", err)
	assert.Error(t, p.SetDataBuffer(3))
	assert.Error(t, p.SetDataBuffer(wide.Handle))
	assert.Error(t, p.SetDataBuffer(99))
	pend, ok := p.PendingBuffer()
	assert.True(t, ok)
	assert.Equal(t, bufmap.Handle(1), pend)
	assert.False(t, p.IsValidBuffer(2))
	assert.False(t, p.IsValidBuffer(99))
	assert.True(t, p.IsValidBuffer(1))
}

func TestDisableIdempotent(t *testing.T) {
	t.Parallel()

	p, mem, hw := newTestSprite(t)
	mem.Register(1, 64, 64, bufmap.FormatRGB565)
	require.NoError(t, p.SetDataBuffer(1))
	_, ok := p.Flip()
	require.True(t, ok)

	require.NoError(t, p.Disable())
	once := fmt.Sprintf("%v %v %s", p.Enabled(), p.State(), p.String())
	require.NoError(t, p.Disable())
	twice := fmt.Sprintf("%v %v %s", p.Enabled(), p.State(), p.String())
	assert.Equal(t, once, twice)
	assert.Equal(t, 1, hw.Disables(TypeSprite, 0))
	assert.Equal(t, uint32(1), p.Stat().Disables)
	_, ok = p.CurrentBuffer()
	assert.False(t, ok)
}

func TestInFlightReferences(t *testing.T) {
	t.Parallel()

	p, mem, _ := newTestSprite(t)
	p.cache = bufmap.NewCache(nil, 8)
	for h := bufmap.Handle(1); h <= 4; h++ {
		mem.Register(h, 64, 64, bufmap.FormatRGB565)
		require.NoError(t, p.SetDataBuffer(h))
		_, ok := p.Flip()
		require.True(t, ok)
	}
	refs := func(h bufmap.Handle) int32 {
		m, ok := p.cache.Get(h)
		require.True(t, ok)
		return m.Refs()
	}
	assert.Equal(t, int32(0), refs(1), "retired beyond in-flight window")
	assert.Equal(t, int32(1), refs(2))
	assert.Equal(t, int32(1), refs(3))
	assert.Equal(t, int32(1), refs(4))

	// same buffer flipped twice keeps single reference
	require.NoError(t, p.SetDataBuffer(4))
	_, _ = p.Flip()
	assert.Equal(t, int32(1), refs(4))

	require.NoError(t, p.Disable())
	for h := bufmap.Handle(1); h <= 4; h++ {
		assert.Equal(t, int32(0), refs(h))
	}
	require.NoError(t, p.InvalidateBufferCache())
	assert.Equal(t, 0, mem.Live())
}

func TestInvalidateBufferCacheRemaps(t *testing.T) {
	t.Parallel()

	p, mem, _ := newTestSprite(t)
	mem.Register(1, 64, 64, bufmap.FormatRGB565)
	require.NoError(t, p.SetDataBuffer(1))
	require.NoError(t, p.SetDataBuffer(1))
	assert.Equal(t, uint32(1), p.Stat().Maps, "cached mapping reused")
	require.NoError(t, p.InvalidateBufferCache())
	require.NoError(t, p.SetDataBuffer(1))
	assert.Equal(t, uint32(2), p.Stat().Maps)
}

func TestGeometrySetters(t *testing.T) {
	t.Parallel()

	p, _, _ := newTestSprite(t)
	assert.Error(t, p.SetPosition(0, 0, 0, 10))
	assert.Error(t, p.SetSourceCrop(0, 0, 10, -1))
	assert.Error(t, p.SetSourceCrop(-1, 0, 10, 10))
	assert.True(t, errors.IsNotSupported(p.SetTransform(Transform90)))
	require.NoError(t, p.SetPosition(1, 2, 3, 4))
	assert.Equal(t, Rect{1, 2, 3, 4}, p.Position())
}

func TestOverlayRegistersNV12(t *testing.T) {
	t.Parallel()

	mem := bufmap.NewMockMemory()
	p := NewOverlay(log2.NewTest(t, log2.LDebug), mem, &MockProgrammer{}, 0, 0x3, 4)
	d := mem.Register(1, 1280, 720, bufmap.FormatNV12)
	require.NoError(t, p.SetPosition(100, 50, 640, 360))
	require.NoError(t, p.SetDataBuffer(1))
	u, ok := p.Flip()
	require.True(t, ok)
	require.Len(t, u.Regs, OverlayRegCount+OverlayCoeffCount)

	m, _ := p.cache.Get(1)
	gtt := m.GttBytes()
	assert.Equal(t, gtt, u.Regs[OverlayRegBufY])
	assert.Equal(t, gtt+uint32(d.Stride.Luma*720), u.Regs[OverlayRegBufU])
	assert.Equal(t, uint32(1280|1280<<16), u.Regs[OverlayRegStride])
	assert.Equal(t, uint32(50<<16|100), u.Regs[OverlayRegWinPos])
	assert.Equal(t, uint32(360<<16|640), u.Regs[OverlayRegWinSize])
	assert.Equal(t, uint32(1280|640<<16), u.Regs[OverlayRegSrcWidth])
	assert.Equal(t, uint32(720|360<<16), u.Regs[OverlayRegSrcHeight])
	assert.Equal(t, calcSwidthSW(0, 1280)|calcSwidthSW(1280*720, 1280)<<16, u.Regs[OverlayRegSrcWidthSW])

	// (1279<<12)/640 = 8185: int 1, fract 4089
	// (719<<12)/360 = 8180: int 1, fract 4084
	// uv halves: 4092 int 0, 4090 int 0
	assert.Equal(t, uint32(1<<16|4089<<3|4084<<20), u.Regs[OverlayRegScaleY])
	assert.Equal(t, uint32(0<<16|4092<<3|4090<<20), u.Regs[OverlayRegScaleUV])
	assert.Equal(t, uint32(1<<16|0), u.Regs[OverlayRegScaleUVV])

	cmd := u.Regs[OverlayRegCmd]
	assert.Equal(t, ocmdEnable, cmd&ocmdEnable)
	assert.Equal(t, ocmdNV12, cmd&(0xf<<10))
	assert.Zero(t, cmd&ocmdMirrorBoth)
}

func TestOverlayYV12CropOffsets(t *testing.T) {
	t.Parallel()

	mem := bufmap.NewMockMemory()
	p := NewOverlay(nil, mem, &MockProgrammer{}, 0, 0x1, 4)
	d := mem.Register(1, 640, 480, bufmap.FormatYV12)
	require.Equal(t, 320, d.Stride.Chroma)
	require.NoError(t, p.SetSourceCrop(16, 8, 320, 240))
	require.NoError(t, p.SetTransform(Transform180))
	require.NoError(t, p.SetDataBuffer(1))
	u, ok := p.Flip()
	require.True(t, ok)

	m, _ := p.cache.Get(1)
	gtt := m.GttBytes()
	assert.Equal(t, gtt+5136, u.Regs[OverlayRegBufY])
	assert.Equal(t, gtt+308488, u.Regs[OverlayRegBufV])
	assert.Equal(t, gtt+385288, u.Regs[OverlayRegBufU])
	assert.Equal(t, ocmdYUV420, u.Regs[OverlayRegCmd]&(0xf<<10))
	assert.Equal(t, ocmdMirrorBoth, u.Regs[OverlayRegCmd]&ocmdMirrorBoth)
}

func TestOverlayValidity(t *testing.T) {
	t.Parallel()

	mem := bufmap.NewMockMemory()
	p := NewOverlay(nil, mem, &MockProgrammer{}, 0, 0x1, 4)
	mem.Register(1, 640, 480, bufmap.FormatRGBA8888)
	mem.Register(2, 4096, 64, bufmap.FormatYUY2)
	mem.Register(3, 640, 480, bufmap.FormatUYVY)

	assert.False(t, p.IsValidBuffer(1), "rgb")
	assert.False(t, p.IsValidBuffer(2), "too wide")
	assert.True(t, p.IsValidBuffer(3))
	assert.True(t, p.IsValidTransform(Transform180))
	assert.False(t, p.IsValidTransform(Transform90))
	assert.True(t, p.IsValidBlending(BlendingNone))
	assert.False(t, p.IsValidBlending(BlendingPremult))
	assert.True(t, p.IsValidScaling(Rect{W: 700, H: 70}, Rect{W: 100, H: 10}))
	assert.False(t, p.IsValidScaling(Rect{W: 800, H: 80}, Rect{W: 100, H: 10}))
	assert.False(t, p.IsValidScaling(Rect{W: 10, H: 10}, Rect{W: 100, H: 10}))
	assert.False(t, p.IsValidScaling(Rect{W: 10, H: 10}, Rect{}))
}

func TestCalcSwidthSW(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint32(156), calcSwidthSW(0, 1280))
	// one byte past 64 boundary costs extra fetch unit
	assert.Equal(t, uint32(((2*2)-1)<<2), calcSwidthSW(63, 64))
}

func TestPrimaryValidity(t *testing.T) {
	t.Parallel()

	mem := bufmap.NewMockMemory()
	p := NewPrimary(nil, mem, &MockProgrammer{}, 1, 4)
	assert.Equal(t, 1, p.Pipe())
	assert.True(t, p.IsValidScaling(Rect{W: 800, H: 480}, Rect{W: 800, H: 480}))
	assert.False(t, p.IsValidScaling(Rect{W: 800, H: 480}, Rect{X: 1, W: 800, H: 480}))
	assert.False(t, p.IsValidScaling(Rect{W: 400, H: 240}, Rect{W: 800, H: 480}))
	assert.False(t, p.IsValidBlending(BlendingPremult))
}

func atomicOwner(p Plane, o owner) { p.planeBase().owner = o }
