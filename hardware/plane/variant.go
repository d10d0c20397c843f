package plane

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
)

// Variant describes plane pool of one display controller generation.
// SpritePipes/OverlayPipes hold possible pipes bitmask per plane, like DRM possible_crtcs.
type Variant struct {
	Name         string
	DeviceIDs    []uint16
	Pipes        int
	SpritePipes  []uint32
	OverlayPipes []uint32
	// Overlay may be stacked below primary plane, video shows through
	// transparent framebuffer pixels.
	OverlayUnderPrimary bool
}

func (v Variant) Sprites() int   { return len(v.SpritePipes) }
func (v Variant) Overlays() int  { return len(v.OverlayPipes) }
func (v Variant) Primaries() int { return v.Pipes }

func (v Variant) String() string {
	return fmt.Sprintf("%s sprite=%d overlay=%d primary=%d", v.Name, v.Sprites(), v.Overlays(), v.Primaries())
}

var Variants = []Variant{
	{
		Name:                "medfield",
		DeviceIDs:           idRange(0x0130, 0x0137),
		Pipes:               3,
		OverlayPipes:        []uint32{0x3},
		OverlayUnderPrimary: true,
	},
	{
		Name:                "clovertrail",
		DeviceIDs:           idRange(0x08c0, 0x08c8),
		Pipes:               3,
		OverlayPipes:        []uint32{0x3, 0x3},
		OverlayUnderPrimary: true,
	},
	{
		Name:                "merrifield",
		DeviceIDs:           idRange(0x1180, 0x1188),
		Pipes:               3,
		SpritePipes:         []uint32{0x1, 0x1, 0x1},
		OverlayPipes:        []uint32{0x3, 0x3},
		OverlayUnderPrimary: true,
	},
	{
		Name:        "baytrail",
		DeviceIDs:   []uint16{0x0f30, 0x0f31, 0x0f32, 0x0f33},
		Pipes:       2,
		SpritePipes: []uint32{0x1, 0x1, 0x2, 0x2},
	},
}

// FindVariant by explicit name (config override) or PCI device id.
func FindVariant(name string, deviceID uint16) (Variant, error) {
	for _, v := range Variants {
		if name != "" {
			if strings.EqualFold(v.Name, name) {
				return v, nil
			}
			continue
		}
		for _, id := range v.DeviceIDs {
			if id == deviceID {
				return v, nil
			}
		}
	}
	if name != "" {
		return Variant{}, errors.NotFoundf("display variant name=%s", name)
	}
	return Variant{}, errors.NotFoundf("display variant device=%04x", deviceID)
}

func idRange(from, to uint16) []uint16 {
	ids := make([]uint16, 0, to-from+1)
	for id := from; id <= to; id++ {
		ids = append(ids, id)
	}
	return ids
}
