// Package plane programs hardware scan-out planes (sprite, overlay, primary)
// and arbitrates the fixed plane pool between display pipes.
package plane

import (
	"fmt"

	"github.com/temoto/hwcomposer/hardware/bufmap"
)

type Type uint8

const (
	TypeSprite Type = iota
	TypeOverlay
	TypePrimary
	numTypes
)

func (t Type) String() string {
	switch t {
	case TypeSprite:
		return "sprite"
	case TypeOverlay:
		return "overlay"
	case TypePrimary:
		return "primary"
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

type State uint8

const (
	StateFree State = iota
	StateAllocated
	StateBound
	StateActive
	StateReclaimed
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateAllocated:
		return "allocated"
	case StateBound:
		return "bound"
	case StateActive:
		return "active"
	case StateReclaimed:
		return "reclaimed"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

type Transform uint8

const (
	Transform0 Transform = iota
	Transform90
	Transform180
	Transform270
)

func (t Transform) Degrees() int { return int(t) * 90 }

type Blending uint8

const (
	BlendingNone Blending = iota
	BlendingPremult
	BlendingCoverage
)

type Rect struct {
	X, Y, W, H int
}

func (r Rect) Empty() bool       { return r.W <= 0 || r.H <= 0 }
func (r Rect) String() string    { return fmt.Sprintf("%dx%d+%d+%d", r.W, r.H, r.X, r.Y) }
func (r Rect) Crop() bufmap.Crop { return bufmap.Crop{X: r.X, Y: r.Y, W: r.W, H: r.H} }

// Update is the staged hardware state of one plane latched at next vsync.
type Update struct {
	Index     int
	Type      Type
	Pipe      int
	Enabled   bool
	Handle    bufmap.Handle
	Object    uint32
	Src       Rect
	Dst       Rect
	Transform Transform
	ZOrder    int
	Regs      []uint32
}

func (u Update) String() string {
	if !u.Enabled {
		return fmt.Sprintf("%s%d pipe=%d disable", u.Type, u.Index, u.Pipe)
	}
	return fmt.Sprintf("%s%d pipe=%d handle=%x src=%s dst=%s z=%d",
		u.Type, u.Index, u.Pipe, uint64(u.Handle), u.Src, u.Dst, u.ZOrder)
}

// Programmer is the kernel boundary used for immediate plane programming
// outside of a frame commit (disable, enable).
type Programmer interface {
	Apply(u Update) error
}

// Plane is implemented only by *Sprite, *Overlay and *Primary.
type Plane interface {
	Index() int
	Type() Type
	Pipe() int
	State() State
	ZOrder() int
	SetZOrder(z int)
	Enabled() bool

	Position() Rect
	SourceCrop() Rect
	Transform() Transform
	SetPosition(x, y, w, h int) error
	SetSourceCrop(x, y, w, h int) error
	SetTransform(t Transform) error

	IsValidBuffer(h bufmap.Handle) bool
	IsValidTransform(t Transform) bool
	IsValidBlending(b Blending) bool
	IsValidScaling(src, dst Rect) bool

	SetDataBuffer(h bufmap.Handle) error
	CurrentBuffer() (bufmap.Handle, bool)
	PendingBuffer() (bufmap.Handle, bool)
	Flip() (Update, bool)

	Enable() error
	Disable() error
	Reset() error
	InvalidateBufferCache() error

	Stat() Stat
	String() string

	planeBase() *base
}

// Stat counts physical programming events, mostly useful in tests and dumps.
type Stat struct {
	Maps     uint32
	Flips    uint32
	Enables  uint32
	Disables uint32
}
