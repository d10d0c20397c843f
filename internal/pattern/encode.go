package pattern

import (
	"encoding/binary"
	"image/color"

	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/hardware/bufmap"
)

// Encode writes canvas pixels into buffer memory laid out as d describes.
// Canvas must be of buffer size.
func (self *Canvas) Encode(dst []byte, d bufmap.Descriptor) error {
	if d.Width != self.size.X || d.Height != self.size.Y {
		return errors.NotValidf("canvas size=%s buffer %dx%d", self.size.String(), d.Width, d.Height)
	}
	bpp := d.Format.BytesPerPixel()
	if d.Format.IsYUV() || bpp == 0 {
		return errors.NotSupportedf("encode format %s", d.Format)
	}
	if d.Height > 0 && len(dst) < d.Stride.Luma*(d.Height-1)+d.Width*bpp {
		return errors.NotValidf("buffer len=%d for %s", len(dst), d.String())
	}
	for y := 0; y < d.Height; y++ {
		row := dst[y*d.Stride.Luma:]
		for x := 0; x < d.Width; x++ {
			encodePixel(row[x*bpp:], d.Format, self.get(x, y))
		}
	}
	return nil
}

func encodePixel(b []byte, f bufmap.Format, c color.RGBA) {
	switch f {
	case bufmap.FormatRGB565:
		binary.LittleEndian.PutUint16(b, encode565(c))
	case bufmap.FormatRGB888:
		b[0], b[1], b[2] = c.R, c.G, c.B
	case bufmap.FormatRGBA8888:
		b[0], b[1], b[2], b[3] = c.R, c.G, c.B, c.A
	case bufmap.FormatRGBX8888:
		b[0], b[1], b[2], b[3] = c.R, c.G, c.B, 0xff
	case bufmap.FormatBGRA8888:
		b[0], b[1], b[2], b[3] = c.B, c.G, c.R, c.A
	case bufmap.FormatBGRX8888:
		b[0], b[1], b[2], b[3] = c.B, c.G, c.R, 0xff
	}
}

func encode565(c color.RGBA) uint16 {
	return (uint16(c.R) & 0xf8 << 8) | (uint16(c.G) & 0xfc << 3) | (uint16(c.B) & 0xf8 >> 3)
}
