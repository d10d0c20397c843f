// Package fbdev reads panel timings from legacy framebuffer device.
// Used when KMS connector reports no modes, typical for MIPI panels.
package fbdev

import (
	"fmt"

	"github.com/temoto/hwcomposer/hardware/drm"
)

type BitField struct {
	Offset uint32
	Length uint32
	Right  uint32
}

// <linux/fb.h> struct fb_var_screeninfo
type VarScreenInfo struct {
	Xres, Yres               uint32
	XresVirtual, YresVirtual uint32
	Xoffset, Yoffset         uint32
	BitsPerPixel             uint32
	Grayscale                uint32
	Red, Green, Blue, Transp BitField
	Nonstd                   uint32
	Activate                 uint32
	Height, Width            uint32 // mm
	AccelFlags               uint32
	Pixclock                 uint32 // picoseconds
	LeftMargin, RightMargin  uint32
	UpperMargin, LowerMargin uint32
	HsyncLen, VsyncLen       uint32
	Sync                     uint32
	Vmode                    uint32
	Rotate                   uint32
	Colorspace               uint32
	Reserved                 [4]uint32
}

// <linux/fb.h> struct fb_fix_screeninfo
type FixScreenInfo struct {
	ID           [16]byte
	SmemStart    uintptr
	SmemLen      uint32
	Type         uint32
	TypeAux      uint32
	Visual       uint32
	XPanStep     uint16
	YPanStep     uint16
	YWrapStep    uint16
	LineLength   uint32
	MmioStart    uintptr
	MmioLen      uint32
	Accel        uint32
	Capabilities uint16
	Reserved     [2]uint16
}

type Info struct {
	Name string
	Var  VarScreenInfo
	Fix  FixScreenInfo
}

var rgb565 = [3]BitField{{Offset: 11, Length: 5}, {Offset: 5, Length: 6}, {Offset: 0, Length: 5}}

func (self *Info) IsRGB565() bool {
	v := &self.Var
	return v.BitsPerPixel == 16 && [3]BitField{v.Red, v.Green, v.Blue} == rgb565
}

// Refresh in Hz computed from pixel clock and blanking intervals, 0 when unknown.
func (self *Info) Refresh() int {
	v := &self.Var
	if v.Pixclock == 0 {
		return 0
	}
	htotal := uint64(v.Xres + v.LeftMargin + v.RightMargin + v.HsyncLen)
	vtotal := uint64(v.Yres + v.UpperMargin + v.LowerMargin + v.VsyncLen)
	frame := uint64(v.Pixclock) * htotal * vtotal // ps
	if frame == 0 {
		return 0
	}
	return int((1e12 + frame/2) / frame)
}

func (self *Info) Mode() drm.Mode {
	v := &self.Var
	return drm.Mode{
		Name:    fmt.Sprintf("%dx%d", v.Xres, v.Yres),
		Width:   int(v.Xres),
		Height:  int(v.Yres),
		Refresh: self.Refresh(),
		DpiX:    drm.Dpi(int(v.Xres), v.Width),
		DpiY:    drm.Dpi(int(v.Yres), v.Height),
	}
}

func (self *Info) String() string {
	return fmt.Sprintf("fbdev id=%s mode=%s bpp=%d line=%d", self.Name, self.Mode().String(), self.Var.BitsPerPixel, self.Fix.LineLength)
}
