package console

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/hwcomposer/internal/scene"
	state_new "github.com/temoto/hwcomposer/internal/state/new"
)

func newTestConsole(t testing.TB) *console {
	_, g := state_new.NewTestContext(t, `
display "lvds" { pipe = 0 }
display "hdmi" { pipe = 1 }
`)
	c, err := g.Composer()
	require.NoError(t, err)
	mem, err := g.Allocator()
	require.NoError(t, err)
	self := &console{g: g, c: c, show: scene.NewShow(g.Log, c, mem, nil)}
	require.NoError(t, self.show.Build())
	t.Cleanup(func() { _ = self.show.Free() })
	return self
}

func TestParseLayer(t *testing.T) {
	t.Parallel()

	lc, err := parseLayer([]string{"pattern=qr:hi", "format=NV12", "size=64,32", "frame=1,2,64,32", "rot=90", "blend=premult", "skip"})
	require.NoError(t, err)
	assert.Equal(t, scene.LayerConfig{
		Pattern:   "qr:hi",
		Format:    "NV12",
		Size:      []int{64, 32},
		Frame:     []int{1, 2, 64, 32},
		Transform: 90,
		Blending:  "premult",
		Skip:      true,
	}, lc)

	_, err = parseLayer([]string{"color=red"})
	assert.Error(t, err)
	_, err = parseLayer([]string{"size=a,b"})
	assert.Error(t, err)
}

func TestConsole(t *testing.T) {
	t.Parallel()

	self := newTestConsole(t)
	type Case struct {
		line      string
		expectErr string
	}
	cases := []Case{
		{"help", ""},
		{"add 0 pattern=solid:#00ff00 size=32,32 frame=0,0,32,32", ""},
		{"add 0 target", "already exists"},
		{"move 0 0 8,8,32,32", ""},
		{"move 0 0 8,8", "not valid"},
		{"frame 2", ""},
		{"rm 0 0", ""},
		{"rm 0 5", "not found"},
		{"scene 0", ""},
		{"scene 9", "not found"},
		{"configs 1", ""},
		{"mode 1 0", ""},
		{"blank 1 on", ""},
		{"blank 1 maybe", "not valid"},
		{"vsync 0 on", ""},
		{"vsync 0 off", ""},
		{"toggle", ""},
		{"hotplug", ""},
		{"frame", ""},
		{"stat", ""},
		{"dump", ""},
		{"report", ""},
		{"blank", "expected display"},
		{"bogus 0", "unknown command"},
	}
	// sequential, each line changes console state
	for _, c := range cases {
		words := strings.Fields(c.line)
		err := self.run(words[0], words[1:])
		if c.expectErr == "" {
			assert.NoError(t, err, c.line)
		} else if assert.Error(t, err, c.line) {
			assert.Contains(t, err.Error(), c.expectErr, c.line)
		}
	}
	assert.Equal(t, uint64(3), self.show.Frames())
	assert.Equal(t, 1, self.show.Scene(0).Len())
}
