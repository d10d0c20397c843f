package plane

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/hwcomposer/hardware/bufmap"
	"github.com/temoto/hwcomposer/log2"
)

func newTestManager(t testing.TB, v Variant) (*Manager, *bufmap.MockMemory, *MockProgrammer) {
	mem := bufmap.NewMockMemory()
	hw := &MockProgrammer{}
	m := NewManager(log2.NewTest(t, log2.LDebug), mem, hw, 4)
	require.NoError(t, m.Initialize(v))
	return m, mem, hw
}

func TestManagerDetect(t *testing.T) {
	t.Parallel()

	m := NewManager(log2.NewTest(t, log2.LDebug), bufmap.NewMockMemory(), &MockProgrammer{}, 0)
	err := m.Detect("", 0xdead)
	assert.True(t, errors.IsNotFound(err), "err=%v", err)
	assert.False(t, m.Initialized())

	require.NoError(t, m.Detect("", 0x0132))
	v := m.Variant()
	assert.Equal(t, "medfield", v.Name)
	assert.Equal(t, 0, v.Sprites())
	assert.Equal(t, 1, v.Overlays())
	assert.Equal(t, 3, v.Primaries())
	assert.True(t, errors.IsAlreadyExists(m.Detect("", 0x0132)))

	require.NoError(t, m.Deinitialize())
	require.NoError(t, m.Detect("BayTrail", 0))
	assert.Equal(t, "baytrail", m.Variant().Name)
	assert.Len(t, m.Planes(TypeSprite), 4)
	assert.True(t, errors.IsNotFound(errors.Cause(NewManager(nil, nil, nil, 0).Detect("nope", 0x0132))))
}

func TestManagerPoolExhaustion(t *testing.T) {
	t.Parallel()

	for n := 1; n <= 4; n++ {
		pipes := make([]uint32, n)
		for i := range pipes {
			pipes[i] = 0x1
		}
		m, _, _ := newTestManager(t, Variant{Name: "test", Pipes: 1, OverlayPipes: pipes})
		got := make(map[Plane]bool)
		for i := 0; i < n; i++ {
			p := m.GetOverlayPlane(0)
			require.NotNil(t, p, "n=%d i=%d", n, i)
			assert.Equal(t, i, p.Index(), "lowest free bit first")
			assert.False(t, got[p])
			got[p] = true
		}
		assert.Nil(t, m.GetOverlayPlane(0), "n=%d plane n+1", n)
		assert.Nil(t, m.GetSpritePlane(0))
		assert.Equal(t, 0, m.FreeCount(TypeOverlay, 0))
	}
}

func TestManagerPipeAffinity(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t, Variants[3]) // baytrail
	p := m.GetPrimaryPlane(1)
	require.NotNil(t, p)
	assert.Equal(t, 1, p.Index())
	assert.Equal(t, 1, p.Pipe())
	assert.Nil(t, m.GetPrimaryPlane(1))
	assert.NotNil(t, m.GetPrimaryPlane(0))
	assert.Nil(t, m.GetPrimaryPlane(2))

	s := m.GetSpritePlane(1)
	require.NotNil(t, s)
	assert.Equal(t, 2, s.Index(), "sprites 0,1 are wired to pipe 0")
	assert.Equal(t, 1, s.Pipe())
	assert.Equal(t, 1, m.FreeCount(TypeSprite, 1))
	assert.Equal(t, 2, m.FreeCount(TypeSprite, 0))
	assert.Equal(t, m.Planes(TypeSprite)[0], m.PeekPlane(TypeSprite, 0))
	assert.Equal(t, 2, m.FreeCount(TypeSprite, 0), "peek does not allocate")
}

func TestManagerPutRequiresDisable(t *testing.T) {
	t.Parallel()

	m, mem, hw := newTestManager(t, Variant{Name: "test", Pipes: 1, OverlayPipes: []uint32{1}})
	mem.Register(1, 320, 240, bufmap.FormatNV12)
	p := m.GetOverlayPlane(0)
	require.NotNil(t, p)
	assert.Equal(t, StateAllocated, p.State())
	require.NoError(t, p.SetDataBuffer(1))
	_, ok := p.Flip()
	require.True(t, ok)

	assert.Error(t, m.PutPlane(p), "manager must not disable on behalf of caller")
	assert.Equal(t, 0, hw.Disables(TypeOverlay, 0))
	require.NoError(t, p.Disable())
	require.NoError(t, m.PutPlane(p))
	assert.Equal(t, StateFree, p.State())
	assert.Error(t, m.PutPlane(p), "double put")
	assert.Error(t, m.ReclaimPlane(p), "reclaim free plane")
	assert.Error(t, m.PutPlane(nil))
}

func TestManagerReclaimReacquireNoFlicker(t *testing.T) {
	t.Parallel()

	m, mem, hw := newTestManager(t, Variant{Name: "test", Pipes: 1, OverlayPipes: []uint32{1}})
	mem.Register(1, 320, 240, bufmap.FormatNV12)
	mem.Register(2, 320, 240, bufmap.FormatYUY2)

	a := m.GetOverlayPlane(0)
	require.NotNil(t, a)
	require.NoError(t, a.SetDataBuffer(1))
	_, ok := a.Flip()
	require.True(t, ok)

	// next frame: layer A gone, layer B wants overlay
	require.NoError(t, m.ReclaimPlane(a))
	assert.Equal(t, StateReclaimed, a.State())
	assert.True(t, a.Enabled(), "reclaimed plane keeps showing until frame is decided")
	b := m.GetOverlayPlane(0)
	require.Equal(t, a, b)
	require.NoError(t, b.SetDataBuffer(2))
	require.NoError(t, m.DisableReclaimedPlanes())
	_, ok = b.Flip()
	require.True(t, ok)

	assert.Equal(t, 0, hw.Disables(TypeOverlay, 0))
	assert.Equal(t, StateActive, b.State())
	free, reclaimed := m.Masks(TypeOverlay)
	assert.Equal(t, uint32(0), free)
	assert.Equal(t, uint32(0), reclaimed)
}

func TestManagerDisableReclaimed(t *testing.T) {
	t.Parallel()

	m, mem, hw := newTestManager(t, Variant{Name: "test", Pipes: 1, OverlayPipes: []uint32{1, 1}})
	mem.Register(1, 320, 240, bufmap.FormatNV12)
	a := m.GetOverlayPlane(0)
	require.NoError(t, a.SetDataBuffer(1))
	_, _ = a.Flip()
	require.NoError(t, m.ReclaimPlane(a))
	_, reclaimed := m.Masks(TypeOverlay)
	assert.Equal(t, uint32(1), reclaimed)
	assert.Equal(t, 2, m.FreeCount(TypeOverlay, 0))

	require.NoError(t, m.DisableReclaimedPlanes())
	assert.Equal(t, 1, hw.Disables(TypeOverlay, 0))
	assert.Equal(t, StateFree, a.State())
	assert.False(t, a.Enabled())
	free, reclaimed := m.Masks(TypeOverlay)
	assert.Equal(t, uint32(3), free)
	assert.Equal(t, uint32(0), reclaimed)

	// second pass has nothing to do
	require.NoError(t, m.DisableReclaimedPlanes())
	assert.Equal(t, 1, hw.Disables(TypeOverlay, 0))
}

func TestManagerReclaimedMovesPipe(t *testing.T) {
	t.Parallel()

	m, mem, hw := newTestManager(t, Variant{Name: "test", Pipes: 2, OverlayPipes: []uint32{0x3}})
	mem.Register(1, 320, 240, bufmap.FormatNV12)
	a := m.GetOverlayPlane(0)
	require.NoError(t, a.SetDataBuffer(1))
	_, _ = a.Flip()
	require.NoError(t, m.ReclaimPlane(a))

	b := m.GetOverlayPlane(1)
	require.Equal(t, a, b)
	assert.Equal(t, 1, b.Pipe())
	assert.Equal(t, 1, hw.Disables(TypeOverlay, 0), "plane must be off before moving to other pipe")
}

func TestManagerDeinitialize(t *testing.T) {
	t.Parallel()

	m, mem, _ := newTestManager(t, Variants[0])
	mem.Register(1, 320, 240, bufmap.FormatNV12)
	p := m.GetOverlayPlane(0)
	require.NoError(t, p.SetDataBuffer(1))
	_, _ = p.Flip()
	require.NoError(t, m.Deinitialize())
	assert.Equal(t, 0, mem.Live())
	assert.Nil(t, m.GetOverlayPlane(0))
	assert.Contains(t, m.Dump(), "plane manager")
}

func TestManagerForgetBuffer(t *testing.T) {
	t.Parallel()

	m, mem, _ := newTestManager(t, Variant{Name: "test", Pipes: 1, OverlayPipes: []uint32{1}})
	a := m.GetOverlayPlane(0)
	require.NotNil(t, a)
	for h := bufmap.Handle(1); h <= 4; h++ {
		mem.Register(h, 320, 240, bufmap.FormatNV12)
		require.NoError(t, a.SetDataBuffer(h))
		_, ok := a.Flip()
		require.True(t, ok)
	}

	cases := []struct {
		h      bufmap.Handle
		forget bool
	}{
		{1, true}, // retired beyond in-flight window
		{2, false},
		{3, false},
		{4, false}, // current
		{9, true},  // never mapped
	}
	for _, c := range cases {
		if c.h <= 4 {
			assert.Error(t, mem.Free(c.h), "handle=%d mapped", c.h)
		}
		assert.Equal(t, c.forget, m.ForgetBuffer(c.h), "handle=%d", c.h)
	}
	require.NoError(t, mem.Free(1))
	assert.Equal(t, 3, mem.Live())

	require.NoError(t, m.ReclaimPlane(a))
	assert.False(t, m.ForgetBuffer(4), "reclaimed plane is still scanning out")
	require.NoError(t, m.DisableReclaimedPlanes())
	assert.Equal(t, 0, mem.Live())
	for h := bufmap.Handle(2); h <= 4; h++ {
		assert.True(t, m.ForgetBuffer(h))
		require.NoError(t, mem.Free(h))
	}
	assert.Equal(t, 0, mem.Buffers())
}
