package pattern

import (
	"encoding/binary"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/hwcomposer/hardware/bufmap"
)

func TestRGB565(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input  color.RGBA
		expect uint16
	}{
		{color.RGBA{0, 0, 0, 0}, 0},
		{color.RGBA{0, 0, 0, 0xff}, 0},
		{color.RGBA{0xff, 0xff, 0xff, 0xff}, 0xffff},
		{color.RGBA{0xff, 0x00, 0x00, 0xff}, 0xf800},
		{color.RGBA{0x00, 0xff, 0x00, 0xff}, 0x07e0},
		{color.RGBA{0x00, 0x00, 0xff, 0xff}, 0x001f},
		{color.RGBA{0x0c, 0x0c, 0x0c, 0xff}, 0x0861},
	}
	for _, c := range cases {
		assert.Equal(t, c.expect, encode565(c.input), c.input)
	}
}

func TestQR(t *testing.T) {
	t.Parallel()

	c := NewCanvas(image.Point{X: 37, Y: 37})
	blank := strings.Repeat(strings.Repeat("  ", 37)+"\n", 37)
	assert.Equal(t, blank, c.String2())

	qrText := "t=20200211T1825&s=23.00&fn=9998887776665555&i=15&fp=0000000000&n=1"
	require.NoError(t, c.QR(qrText, false, qrcode.High))
	qr, err := qrcode.New(qrText, qrcode.High)
	require.NoError(t, err)
	qr.DisableBorder = true
	assert.Equal(t, qr.ToString(false), c.String2())

	c.Fill(Black)
	assert.Equal(t, blank, c.String2())

	small := NewCanvas(image.Point{X: 10, Y: 10})
	assert.Error(t, small.QR(qrText, true, qrcode.High))
}

func TestParse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input  string
		expect Pattern
		err    func(error) bool
	}{
		{"solid:#ff8000", Pattern{Kind: KindSolid, Color: color.RGBA{0xff, 0x80, 0, 0xff}}, nil},
		{"solid:#10203040", Pattern{Kind: KindSolid, Color: color.RGBA{0x10, 0x20, 0x30, 0x40}}, nil},
		{"checker:8", Pattern{Kind: KindChecker, Cell: 8}, nil},
		{"qr:hello:world", Pattern{Kind: KindQR, Text: "hello:world"}, nil},
		{"solid:red", Pattern{}, errors.IsNotValid},
		{"checker:0", Pattern{}, errors.IsNotValid},
		{"qr:", Pattern{}, errors.IsNotValid},
		{"gradient:1", Pattern{}, errors.IsNotSupported},
		{"plain", Pattern{}, errors.IsNotValid},
	}
	for _, c := range cases {
		c := c
		t.Run(c.input, func(t *testing.T) {
			t.Parallel()
			p, err := Parse(c.input)
			if c.err != nil {
				require.Error(t, err)
				assert.True(t, c.err(errors.Cause(err)), err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.expect, p)
		})
	}
}

func TestPaint(t *testing.T) {
	t.Parallel()

	mem := bufmap.NewMockMemory()
	cases := []struct {
		format bufmap.Format
		expect []byte
	}{
		{bufmap.FormatRGB565, []byte{0x00, 0xfc}},
		{bufmap.FormatRGB888, []byte{0xff, 0x80, 0x00}},
		{bufmap.FormatRGBX8888, []byte{0xff, 0x80, 0x00, 0xff}},
		{bufmap.FormatBGRA8888, []byte{0x00, 0x80, 0xff, 0xff}},
	}
	p, err := Parse("solid:#ff8000")
	require.NoError(t, err)
	for _, c := range cases {
		d, err := mem.Allocate(3, 2, c.format)
		require.NoError(t, err)
		require.NoError(t, Paint(mem, d, p), c.format.String())
		pix, err := mem.CPU(d.Handle)
		require.NoError(t, err)
		bpp := c.format.BytesPerPixel()
		assert.Equal(t, c.expect, pix[d.Stride.Luma+2*bpp:d.Stride.Luma+3*bpp], c.format.String())
		// stride padding untouched
		assert.Equal(t, byte(0), pix[3*bpp])
	}

	d := mem.Register(0x77, 4, 4, bufmap.FormatNV12)
	assert.Error(t, Paint(mem, d, p))
}

func TestChecker(t *testing.T) {
	t.Parallel()

	c := NewCanvas(image.Point{X: 4, Y: 2})
	c.Checker(2, White, Black)
	assert.Equal(t, "████    \n████    \n", c.String2())

	d := bufmap.Descriptor{Width: 4, Height: 2, Stride: bufmap.Stride{Luma: 8}, Format: bufmap.FormatRGB565}
	dst := make([]byte, 16)
	require.NoError(t, c.Encode(dst, d))
	assert.Equal(t, uint16(0xffff), binary.LittleEndian.Uint16(dst[0:]))
	assert.Equal(t, uint16(0), binary.LittleEndian.Uint16(dst[4:]))

	assert.True(t, errors.IsNotValid(c.Encode(dst[:10], d)))
	d.Width = 5
	assert.True(t, errors.IsNotValid(c.Encode(dst, d)))
}
