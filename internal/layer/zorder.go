package layer

import (
	"fmt"
	"strings"

	"github.com/temoto/hwcomposer/hardware/plane"
)

type Slot struct {
	Layer int // index in frame, -1 for framebuffer target
	Type  plane.Type
	Plane int
}

// ZOrderConfig is the plane stacking of one frame, back to front.
// Primary plane sits right below planes of layers above framebuffer layers,
// overlays under it are only there when variant supports it.
type ZOrderConfig struct {
	Layers      int
	Planes      int
	Slots       []Slot
	PrimarySlot int // -1 when primary is not used
}

func (z ZOrderConfig) String() string {
	parts := make([]string, len(z.Slots))
	for i, s := range z.Slots {
		if s.Layer < 0 {
			parts[i] = fmt.Sprintf("%s%d=target", s.Type, s.Plane)
		} else {
			parts[i] = fmt.Sprintf("%s%d=#%d", s.Type, s.Plane, s.Layer)
		}
	}
	return fmt.Sprintf("layers=%d planes=%d primary=%d [%s]", z.Layers, z.Planes, z.PrimarySlot, strings.Join(parts, " "))
}
