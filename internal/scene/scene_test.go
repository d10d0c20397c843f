package scene

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/hwcomposer/hardware/bufmap"
	"github.com/temoto/hwcomposer/hardware/drm"
	"github.com/temoto/hwcomposer/hardware/plane"
	"github.com/temoto/hwcomposer/internal/display"
	"github.com/temoto/hwcomposer/internal/hwc"
	"github.com/temoto/hwcomposer/internal/layer"
	"github.com/temoto/hwcomposer/log2"
)

func TestBuild(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	mem := bufmap.NewMockMemory()
	s, err := Build(log, mem, 640, 480, Config{Display: "lvds", Layers: []LayerConfig{
		{Pattern: "solid:#ff0000", Format: "RGB565"},
		{Pattern: "qr:hello", Format: "NV12", Size: []int{320, 240}, Frame: []int{100, 100, 320, 240}},
	}})
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())

	c := s.Contents()
	assert.True(t, c.GeometryChanged)
	assert.False(t, s.Contents().GeometryChanged, "reported once")
	base, video, target := c.Layers[0], c.Layers[1], c.Layers[2]
	assert.Equal(t, plane.Rect{W: 640, H: 480}, base.Frame)
	assert.Equal(t, plane.Rect{W: 640, H: 480}, base.Crop)
	assert.Equal(t, plane.Rect{X: 100, Y: 100, W: 320, H: 240}, video.Frame)
	assert.Equal(t, plane.Rect{W: 320, H: 240}, video.Crop)
	assert.True(t, target.Target)
	assert.Same(t, target, c.Target())

	d, err := mem.Describe(base.Handle)
	require.NoError(t, err)
	assert.Equal(t, bufmap.FormatRGB565, d.Format)
	pix, err := mem.CPU(base.Handle)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xf8}, pix[:2], "red in RGB565")
	d, err = mem.Describe(target.Handle)
	require.NoError(t, err)
	assert.Equal(t, bufmap.FormatBGRX8888, d.Format)

	require.NoError(t, s.Free())
	_, err = mem.Describe(video.Handle)
	assert.True(t, errors.IsNotFound(err))
}

func TestBuildInvalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		layer LayerConfig
	}{
		{"format", LayerConfig{Format: "RGB666"}},
		{"pattern", LayerConfig{Pattern: "gradient:1"}},
		{"frame", LayerConfig{Frame: []int{0, 0, 10}}},
		{"frame-empty", LayerConfig{Frame: []int{0, 0, 0, 10}}},
		{"size", LayerConfig{Size: []int{-1, 10}}},
		{"crop", LayerConfig{Crop: []int{-1, 0, 10, 10}}},
		{"transform", LayerConfig{Transform: 45}},
		{"blending", LayerConfig{Blending: "add"}},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			mem := bufmap.NewMockMemory()
			_, err := Build(log2.NewTest(t, log2.LDebug), mem, 640, 480, Config{Layers: []LayerConfig{c.layer}})
			require.Error(t, err)
			t.Logf("err=%v", err)
		})
	}
}

func TestAddRemove(t *testing.T) {
	t.Parallel()

	mem := bufmap.NewMockMemory()
	s, err := Build(log2.NewTest(t, log2.LDebug), mem, 640, 480, Config{})
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())
	s.Contents()

	require.NoError(t, s.Add(LayerConfig{Pattern: "checker:8", Blending: "premult", Transform: 180}))
	c := s.Contents()
	assert.True(t, c.GeometryChanged)
	require.Len(t, c.Layers, 2)
	assert.True(t, c.Layers[1].Target, "target stays last")
	assert.Equal(t, plane.BlendingPremult, c.Layers[0].Blending)
	assert.Equal(t, plane.Transform180, c.Layers[0].Transform)
	assert.True(t, errors.IsAlreadyExists(s.Add(LayerConfig{Target: true})))

	require.NoError(t, s.Move(0, plane.Rect{X: 8, Y: 8, W: 64, H: 64}))
	assert.False(t, s.Contents().GeometryChanged, "move keeps geometry")

	h := c.Layers[0].Handle
	require.NoError(t, s.Remove(0))
	assert.True(t, errors.IsNotFound(s.Remove(5)))
	c = s.Contents()
	assert.True(t, c.GeometryChanged)
	require.Len(t, c.Layers, 1)
	_, err = mem.Describe(h)
	assert.True(t, errors.IsNotFound(err), "removed buffer freed")
	require.NoError(t, s.Free())
}

func TestSceneOnComposer(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	drv := drm.NewMock(0x0130)
	drv.SetConnector(drm.Connector{Pipe: 0, Name: "DSI-1", Connected: true,
		Modes: []drm.Mode{{Name: "640x480", Width: 640, Height: 480, Refresh: 60}}})
	c := hwc.New(log, drv, nil)
	require.NoError(t, c.Initialize(hwc.Options{Displays: []display.Options{{Name: "lvds", Pipe: 0}}}))
	defer c.Close()

	s, err := Build(log, drv.MockMemory(), 640, 480, Config{Display: "lvds", Layers: []LayerConfig{
		{Pattern: "solid:#336699", Format: "RGB888", Skip: true},
		{Format: "NV12", Size: []int{320, 240}, Frame: []int{160, 120, 320, 240}},
	}})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		frame := []*layer.Contents{s.Contents()}
		require.NoError(t, c.Prepare(frame))
		require.NoError(t, c.Commit(frame))
		ls := frame[0].Layers
		assert.Equal(t, layer.CompositionFramebuffer, ls[0].Composition)
		assert.Equal(t, layer.CompositionOverlay, ls[1].Composition)
		assert.Equal(t, layer.CompositionFramebufferTarget, ls[2].Composition)
	}
	assert.Len(t, drv.Commits(0), 3)
	st := c.Stat().Displays[0]
	assert.Equal(t, uint64(1), st.Layers.Rebuilds)
	assert.Equal(t, uint64(2), st.Layers.Checks)
}
