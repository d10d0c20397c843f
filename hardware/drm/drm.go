// Package drm is the kernel mode setting boundary: connector and mode query,
// vblank wait, plane programming and dumb buffer memory.
package drm

import (
	"context"
	"fmt"

	"github.com/temoto/hwcomposer/hardware/bufmap"
	"github.com/temoto/hwcomposer/hardware/plane"
)

type Mode struct {
	Name    string
	Width   int
	Height  int
	Refresh int // Hz
	DpiX    int
	DpiY    int
}

func (m Mode) String() string {
	return fmt.Sprintf("%dx%d@%d dpi=%dx%d", m.Width, m.Height, m.Refresh, m.DpiX, m.DpiY)
}

// VsyncPeriod in nanoseconds, 60Hz when refresh is unknown.
func (m Mode) VsyncPeriod() int64 {
	r := m.Refresh
	if r <= 0 {
		r = 60
	}
	return int64(1e9) / int64(r)
}

type Connector struct {
	Pipe      int
	Name      string
	Connected bool
	Modes     []Mode
	Preferred int // index in Modes
}

func (c Connector) PreferredMode() (Mode, bool) {
	if c.Preferred < 0 || c.Preferred >= len(c.Modes) {
		return Mode{}, false
	}
	return c.Modes[c.Preferred], true
}

// Driver is implemented by real KMS device and Mock.
type Driver interface {
	plane.Programmer

	DeviceID() uint16
	Memory() bufmap.Memory
	Detect(pipe int) (Connector, error)
	SetMode(pipe int, m Mode) error
	// WaitVblank blocks until next vertical blank on pipe, returns its timestamp in ns.
	WaitVblank(ctx context.Context, pipe int) (int64, error)
	// Commit submits plane updates of one frame, latched together at next vblank.
	Commit(pipe int, updates []plane.Update) error
	Blank(pipe int, blank bool) error
	Close() error
}

// Connector type names as kernel prints them.
var connectorTypeNames = map[uint32]string{
	0:  "Unknown",
	1:  "VGA",
	2:  "DVI-I",
	3:  "DVI-D",
	4:  "DVI-A",
	5:  "Composite",
	6:  "SVIDEO",
	7:  "LVDS",
	8:  "Component",
	9:  "DIN",
	10: "DP",
	11: "HDMI-A",
	12: "HDMI-B",
	13: "TV",
	14: "eDP",
	15: "Virtual",
	16: "DSI",
	17: "DPI",
}

func ConnectorName(typ, typeID uint32) string {
	name, ok := connectorTypeNames[typ]
	if !ok {
		name = connectorTypeNames[0]
	}
	return fmt.Sprintf("%s-%d", name, typeID)
}

// Dpi from pixels and physical size in millimeters, 0 when size is unknown.
func Dpi(pixels int, mm uint32) int {
	if mm == 0 {
		return 0
	}
	return int(float64(pixels)*25.4/float64(mm) + 0.5)
}
