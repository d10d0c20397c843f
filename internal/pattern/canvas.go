// Package pattern paints diagnostic content (solid fill, checkerboard, QR code)
// into CPU mapped buffers used as scene layers.
package pattern

import (
	"image"
	"image/color"
	"strings"

	"github.com/juju/errors"
	"github.com/skip2/go-qrcode"
)

var (
	Black = color.RGBA{0, 0, 0, 0xff}
	White = color.RGBA{0xff, 0xff, 0xff, 0xff}
)

type Canvas struct {
	pix  []color.RGBA
	size image.Point
}

func NewCanvas(size image.Point) *Canvas {
	return &Canvas{
		pix:  make([]color.RGBA, size.X*size.Y),
		size: size,
	}
}

func (self *Canvas) Size() image.Point { return self.size }

func (self *Canvas) Fill(c color.RGBA) {
	for i := range self.pix {
		self.pix[i] = c
	}
}

// Checker with square cells of given size, a at top-left.
func (self *Canvas) Checker(cell int, a, b color.RGBA) {
	if cell <= 0 {
		cell = 1
	}
	for y := 0; y < self.size.Y; y++ {
		for x := 0; x < self.size.X; x++ {
			c := a
			if (x/cell+y/cell)%2 != 0 {
				c = b
			}
			self.set(x, y, c)
		}
	}
}

// QR code centered on black background, as large as fits.
func (self *Canvas) QR(text string, border bool, level qrcode.RecoveryLevel) error {
	qr, err := qrcode.New(text, level)
	if err != nil {
		return errors.Annotate(err, "QR")
	}
	qr.DisableBorder = !border
	img := qr.Image(minInt(self.size.X, self.size.Y)).(*image.Paletted)
	if !img.Rect.In(image.Rectangle{Max: self.size}) {
		return errors.Errorf("QR image size=%s > canvas size=%s", img.Bounds().Max.String(), self.size.String())
	}
	self.Fill(Black)
	off := image.Point{X: (self.size.X - img.Rect.Dx()) / 2, Y: (self.size.Y - img.Rect.Dy()) / 2}
	self.paletted2(img, off)
	return nil
}

// String2 renders lit pixels as blocks, for tests and terminal preview.
func (self *Canvas) String2() string {
	b := strings.Builder{}
	b.Grow((self.size.X*2 + 1) * self.size.Y)
	for y := 0; y < self.size.Y; y++ {
		for x := 0; x < self.size.X; x++ {
			c := self.get(x, y)
			if c.R == 0 && c.G == 0 && c.B == 0 {
				b.WriteString("  ")
			} else {
				b.WriteString("██")
			}
		}
		b.WriteRune('\n')
	}
	return b.String()
}

func (self *Canvas) paletted2(img *image.Paletted, off image.Point) {
	min, max := img.Bounds().Min, img.Bounds().Max
	bg := toRGBA(img.Palette[0])
	fg := toRGBA(img.Palette[1])
	for y := min.Y; y < max.Y; y++ {
		for x := min.X; x < max.X; x++ {
			c := bg
			if img.Pix[img.PixOffset(x, y)] != 0 {
				c = fg
			}
			self.set(off.X+x-min.X, off.Y+y-min.Y, c)
		}
	}
}

func (self *Canvas) get(x, y int) color.RGBA    { return self.pix[y*self.size.X+x] }
func (self *Canvas) set(x, y int, c color.RGBA) { self.pix[y*self.size.X+x] = c }

func minInt(i1, i2 int) int {
	if i1 <= i2 {
		return i1
	}
	return i2
}

func toRGBA(c color.Color) color.RGBA {
	r, g, b, a := c.RGBA()
	return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
}
