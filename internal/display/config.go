package display

import (
	"fmt"

	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/hardware/drm"
)

// Config is one supported display mode.
type Config struct {
	Refresh int
	Width   int
	Height  int
	DpiX    int
	DpiY    int

	mode drm.Mode
}

func configFromMode(m drm.Mode) Config {
	return Config{
		Refresh: m.Refresh,
		Width:   m.Width,
		Height:  m.Height,
		DpiX:    m.DpiX,
		DpiY:    m.DpiY,
		mode:    m,
	}
}

func (c Config) Mode() drm.Mode { return c.mode }

func (c Config) String() string {
	return fmt.Sprintf("%dx%d@%d dpi=%dx%d", c.Width, c.Height, c.Refresh, c.DpiX, c.DpiY)
}

type Attribute uint8

const (
	AttributeVsyncPeriod Attribute = iota + 1
	AttributeWidth
	AttributeHeight
	AttributeDpiX
	AttributeDpiY
)

func (a Attribute) String() string {
	switch a {
	case AttributeVsyncPeriod:
		return "vsync_period"
	case AttributeWidth:
		return "width"
	case AttributeHeight:
		return "height"
	case AttributeDpiX:
		return "dpi_x"
	case AttributeDpiY:
		return "dpi_y"
	}
	return fmt.Sprintf("attribute(%d)", uint8(a))
}

// Value of attribute. Vsync period is in nanoseconds, DPI is scaled by 1000.
func (c Config) Value(a Attribute) (int64, error) {
	switch a {
	case AttributeVsyncPeriod:
		return c.mode.VsyncPeriod(), nil
	case AttributeWidth:
		return int64(c.Width), nil
	case AttributeHeight:
		return int64(c.Height), nil
	case AttributeDpiX:
		return int64(c.DpiX) * 1000, nil
	case AttributeDpiY:
		return int64(c.DpiY) * 1000, nil
	}
	return 0, errors.NotSupportedf("display attribute %s", a)
}

// buildConfigs orders connector modes with preferred first.
// Connected panels reporting no modes get fallback, if set.
func buildConfigs(c drm.Connector, fallback *drm.Mode) []Config {
	out := make([]Config, 0, len(c.Modes)+1)
	if pm, ok := c.PreferredMode(); ok {
		out = append(out, configFromMode(pm))
	}
	for i, m := range c.Modes {
		if i == c.Preferred {
			continue
		}
		out = append(out, configFromMode(m))
	}
	if len(out) == 0 && c.Connected && fallback != nil {
		out = append(out, configFromMode(*fallback))
	}
	return out
}

// Store keeps active config index across restarts.
type Store interface {
	LoadActive(display string) (int, bool)
	SaveActive(display string, index int) error
}
