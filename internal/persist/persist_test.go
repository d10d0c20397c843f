package persist

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/hwcomposer/log2"
)

func TestDisplaysRoundTrip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	log := log2.NewTest(t, log2.LDebug)
	d, err := NewDisplays(log, root, true)
	require.NoError(t, err)
	_, ok := d.LoadActive("main")
	assert.False(t, ok)
	require.NoError(t, d.SaveActive("main", 2))
	require.NoError(t, d.SaveActive("hdmi", 0))

	d2, err := NewDisplays(log, root, true)
	require.NoError(t, err)
	i, ok := d2.LoadActive("main")
	assert.True(t, ok)
	assert.Equal(t, 2, i)
	i, ok = d2.LoadActive("hdmi")
	assert.True(t, ok)
	assert.Equal(t, 0, i)

	b, err := d2.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, "hdmi=0\nmain=2\n", string(b))
}

func TestDisplaysDisabled(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	d, err := NewDisplays(log, "", false)
	require.NoError(t, err)
	require.NoError(t, d.SaveActive("main", 1))
	i, ok := d.LoadActive("main")
	assert.True(t, ok, "kept in memory")
	assert.Equal(t, 1, i)

	_, err = NewDisplays(log, "", true)
	assert.True(t, errors.IsNotValid(err), "err=%v", err)
}

func TestDisplaysUnmarshal(t *testing.T) {
	t.Parallel()

	type Case struct {
		input  string
		expect map[string]int
		valid  bool
	}
	cases := []Case{
		{"", map[string]int{}, true},
		{"main=1\n", map[string]int{"main": 1}, true},
		{"a=b=3\nx=0", map[string]int{"a=b": 3, "x": 0}, true},
		{"main\n", nil, false},
		{"=1\n", nil, false},
		{"main=-1\n", nil, false},
		{"main=one\n", nil, false},
	}
	for _, c := range cases {
		c := c
		t.Run(c.input, func(t *testing.T) {
			t.Parallel()
			d := &Displays{}
			err := d.UnmarshalBinary([]byte(c.input))
			if !c.valid {
				assert.True(t, errors.IsNotValid(err), "err=%v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.expect, d.active)
		})
	}
}

func TestDisplaysCorruptFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	log := log2.NewTest(t, log2.LError)
	d, err := NewDisplays(log, root, true)
	require.NoError(t, err)
	require.NoError(t, d.SaveActive("main", 1))

	dir := filepath.Join(root, DisplaysTag)
	files, err := ioutil.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, fi := range files {
		require.NoError(t, ioutil.WriteFile(filepath.Join(dir, fi.Name()), []byte("garbage"), 0644))
	}
	d2, err := NewDisplays(log, root, true)
	require.NoError(t, err, "unreadable state is not fatal")
	_, ok := d2.LoadActive("main")
	assert.False(t, ok)
}
