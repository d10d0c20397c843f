// Package layer decides per frame which compositor layers are scanned out by
// hardware planes and which are composited by GPU into the framebuffer target.
package layer

import (
	"fmt"

	"github.com/temoto/hwcomposer/hardware/bufmap"
	"github.com/temoto/hwcomposer/hardware/plane"
)

// Composition is the decision reported back to compositor.
type Composition uint8

const (
	// GPU renders layer into framebuffer target.
	CompositionFramebuffer Composition = iota
	// Hardware plane shows layer, compositor must not render it.
	CompositionOverlay
	// Layer is the framebuffer target itself.
	CompositionFramebufferTarget
)

func (c Composition) String() string {
	switch c {
	case CompositionFramebuffer:
		return "fb"
	case CompositionOverlay:
		return "overlay"
	case CompositionFramebufferTarget:
		return "fb-target"
	}
	return fmt.Sprintf("composition(%d)", uint8(c))
}

// Layer is supplied by compositor, ordered back to front.
// Composition is written by List.Update.
type Layer struct {
	Handle    bufmap.Handle
	Crop      plane.Rect // source, buffer coordinates
	Frame     plane.Rect // destination, display coordinates
	Transform plane.Transform
	Blending  plane.Blending
	// Skip forces GPU composition.
	Skip bool
	// Target marks framebuffer target, GPU output of framebuffer layers.
	Target bool

	Composition Composition
}

func (l *Layer) String() string {
	return fmt.Sprintf("handle=%x crop=%s frame=%s rot=%d blend=%d skip=%t target=%t comp=%s",
		uint64(l.Handle), l.Crop, l.Frame, l.Transform.Degrees(), l.Blending, l.Skip, l.Target, l.Composition)
}

// Contents is one frame of one display.
type Contents struct {
	Layers []*Layer
	// GeometryChanged is set by compositor when layer count, order or
	// identity changed since previous frame.
	GeometryChanged bool
}

// Target returns framebuffer target layer, last one wins.
func (c *Contents) Target() *Layer {
	for i := len(c.Layers) - 1; i >= 0; i-- {
		if c.Layers[i].Target {
			return c.Layers[i]
		}
	}
	return nil
}

type Class uint8

const (
	ClassFramebuffer Class = iota
	ClassSprite
	ClassOverlay
	// Bottom layer shown by primary plane directly, no GPU pass.
	ClassPrimary
)

func (c Class) String() string {
	switch c {
	case ClassFramebuffer:
		return "fb"
	case ClassSprite:
		return "sprite"
	case ClassOverlay:
		return "overlay"
	case ClassPrimary:
		return "primary"
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

func (c Class) planeType() (plane.Type, bool) {
	switch c {
	case ClassSprite:
		return plane.TypeSprite, true
	case ClassOverlay:
		return plane.TypeOverlay, true
	case ClassPrimary:
		return plane.TypePrimary, true
	}
	return 0, false
}

// HwcLayer is one compositor layer within one frame, with its plane binding.
type HwcLayer struct {
	Index int
	Class Class
	Plane plane.Plane
	Layer *Layer

	// state at bind time, compared by check
	desc      bufmap.Descriptor
	crop      plane.Rect
	frame     plane.Rect
	transform plane.Transform
	blending  plane.Blending
}

func (self *HwcLayer) String() string {
	p := "-"
	if self.Plane != nil {
		p = fmt.Sprintf("%s%d", self.Plane.Type(), self.Plane.Index())
	}
	return fmt.Sprintf("#%d %s plane=%s %s", self.Index, self.Class, p, self.Layer.String())
}

func (self *HwcLayer) remember(d bufmap.Descriptor) {
	l := self.Layer
	self.desc = d
	self.crop = l.Crop
	self.frame = l.Frame
	self.transform = l.Transform
	self.blending = l.Blending
}
