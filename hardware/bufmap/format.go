package bufmap

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
)

// Handle identifies one client graphics buffer (gralloc handle or stamp).
type Handle uint64

type Format uint32

// Values follow Android HAL pixel formats where one exists.
const (
	FormatInvalid  Format = 0
	FormatRGBA8888 Format = 1
	FormatRGBX8888 Format = 2
	FormatRGB888   Format = 3
	FormatRGB565   Format = 4
	FormatBGRA8888 Format = 5
	FormatBGRX8888 Format = 0x1ff
	FormatYUY2     Format = 0x14 // YCbCr_422_I
	FormatUYVY     Format = 0x4559
	FormatNV12     Format = 0x3231564e
	FormatYV12     Format = 0x32315659
	FormatI420     Format = 0x30323449
)

func (f Format) String() string {
	switch f {
	case FormatRGBA8888:
		return "RGBA8888"
	case FormatRGBX8888:
		return "RGBX8888"
	case FormatRGB888:
		return "RGB888"
	case FormatRGB565:
		return "RGB565"
	case FormatBGRA8888:
		return "BGRA8888"
	case FormatBGRX8888:
		return "BGRX8888"
	case FormatYUY2:
		return "YUY2"
	case FormatUYVY:
		return "UYVY"
	case FormatNV12:
		return "NV12"
	case FormatYV12:
		return "YV12"
	case FormatI420:
		return "I420"
	}
	return fmt.Sprintf("format(0x%x)", uint32(f))
}

var formats = []Format{
	FormatRGBA8888, FormatRGBX8888, FormatRGB888, FormatRGB565, FormatBGRA8888, FormatBGRX8888,
	FormatYUY2, FormatUYVY, FormatNV12, FormatYV12, FormatI420,
}

// ParseFormat accepts names as printed by Format.String, case insensitive.
func ParseFormat(s string) (Format, error) {
	for _, f := range formats {
		if strings.EqualFold(s, f.String()) {
			return f, nil
		}
	}
	return FormatInvalid, errors.NotValidf("format=%q", s)
}

func (f Format) IsYUV() bool {
	switch f {
	case FormatYUY2, FormatUYVY, FormatNV12, FormatYV12, FormatI420:
		return true
	}
	return false
}

// IsPlanar is true for formats with separate chroma plane(s).
func (f Format) IsPlanar() bool {
	switch f {
	case FormatNV12, FormatYV12, FormatI420:
		return true
	}
	return false
}

func (f Format) HasAlpha() bool { return f == FormatRGBA8888 || f == FormatBGRA8888 }

// BytesPerPixel of the first (luma or RGB) plane, 0 for unknown formats.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatRGBA8888, FormatRGBX8888, FormatBGRA8888, FormatBGRX8888:
		return 4
	case FormatRGB888:
		return 3
	case FormatRGB565, FormatYUY2, FormatUYVY:
		return 2
	case FormatNV12, FormatYV12, FormatI420:
		return 1
	}
	return 0
}

type Tiling uint8

const (
	TilingNone Tiling = iota
	TilingX
)

func (t Tiling) String() string {
	if t == TilingX {
		return "x-tiled"
	}
	return "linear"
}

type Crop struct {
	X, Y, W, H int
}

func (c Crop) String() string { return fmt.Sprintf("%dx%d+%d+%d", c.W, c.H, c.X, c.Y) }

// Stride in bytes. Chroma is zero for packed and RGB formats.
type Stride struct {
	Luma   int
	Chroma int
}

// Descriptor is what the buffer allocator knows about a buffer.
type Descriptor struct {
	Handle Handle
	Width  int
	Height int
	Stride Stride
	Format Format
	Tiling Tiling
	Crop   Crop
}

func (d Descriptor) String() string {
	return fmt.Sprintf("handle=%x %dx%d stride=%d/%d format=%s %s crop=%s",
		uint64(d.Handle), d.Width, d.Height, d.Stride.Luma, d.Stride.Chroma, d.Format, d.Tiling, d.Crop)
}

// SameLayout reports whether two buffers can replace each other on a plane
// without register layout change.
func (d Descriptor) SameLayout(other Descriptor) bool {
	return d.Width == other.Width && d.Height == other.Height &&
		d.Stride == other.Stride && d.Format == other.Format &&
		d.Tiling == other.Tiling && d.Crop == other.Crop
}
