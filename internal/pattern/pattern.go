package pattern

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/skip2/go-qrcode"
	"github.com/temoto/hwcomposer/hardware/bufmap"
)

type Kind uint8

const (
	KindSolid Kind = iota
	KindChecker
	KindQR
)

type Pattern struct {
	Kind  Kind
	Color color.RGBA
	Cell  int
	Text  string
}

func (p Pattern) String() string {
	switch p.Kind {
	case KindChecker:
		return fmt.Sprintf("checker:%d", p.Cell)
	case KindQR:
		return "qr:" + p.Text
	}
	return fmt.Sprintf("solid:#%02x%02x%02x%02x", p.Color.R, p.Color.G, p.Color.B, p.Color.A)
}

// Parse one of:
// solid:#rrggbb solid:#rrggbbaa checker:<cell> qr:<text>
func Parse(s string) (Pattern, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Pattern{}, errors.NotValidf("pattern=%q", s)
	}
	arg := parts[1]
	switch parts[0] {
	case "solid":
		c, err := parseColor(arg)
		if err != nil {
			return Pattern{}, errors.Annotatef(err, "pattern=%q", s)
		}
		return Pattern{Kind: KindSolid, Color: c}, nil
	case "checker":
		cell, err := strconv.Atoi(arg)
		if err != nil || cell <= 0 {
			return Pattern{}, errors.NotValidf("pattern=%q cell", s)
		}
		return Pattern{Kind: KindChecker, Cell: cell}, nil
	case "qr":
		if arg == "" {
			return Pattern{}, errors.NotValidf("pattern=%q empty text", s)
		}
		return Pattern{Kind: KindQR, Text: arg}, nil
	}
	return Pattern{}, errors.NotSupportedf("pattern=%q", s)
}

func (p Pattern) Draw(c *Canvas) error {
	switch p.Kind {
	case KindSolid:
		c.Fill(p.Color)
	case KindChecker:
		c.Checker(p.Cell, White, Black)
	case KindQR:
		return c.QR(p.Text, true, qrcode.Medium)
	default:
		return errors.NotSupportedf("pattern kind=%d", p.Kind)
	}
	return nil
}

// Paint draws pattern into allocated buffer memory.
func Paint(mem bufmap.Allocator, d bufmap.Descriptor, p Pattern) error {
	c := NewCanvas(image.Point{X: d.Width, Y: d.Height})
	if err := p.Draw(c); err != nil {
		return errors.Annotatef(err, "paint %s", p.String())
	}
	dst, err := mem.CPU(d.Handle)
	if err != nil {
		return errors.Annotatef(err, "paint %s", p.String())
	}
	return errors.Annotatef(c.Encode(dst, d), "paint %s", p.String())
}

func parseColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 && len(s) != 8 {
		return color.RGBA{}, errors.NotValidf("color=%q", s)
	}
	if len(s) == 6 {
		s += "ff"
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, errors.NotValidf("color=%q", s)
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
