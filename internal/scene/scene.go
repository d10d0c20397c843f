// Package scene builds static layer contents from configuration:
// buffers are allocated and painted with test patterns once, then shown every frame.
package scene

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/hardware/bufmap"
	"github.com/temoto/hwcomposer/hardware/plane"
	"github.com/temoto/hwcomposer/helpers"
	"github.com/temoto/hwcomposer/internal/layer"
	"github.com/temoto/hwcomposer/internal/pattern"
	"github.com/temoto/hwcomposer/log2"
)

const (
	DefaultFormat        = "BGRX8888"
	DefaultTargetPattern = "solid:#000000"
)

type Config struct {
	Display string        `hcl:"display,key"`
	Layers  []LayerConfig `hcl:"layer"`
}

type LayerConfig struct {
	Pattern string `hcl:"pattern"`
	Format  string `hcl:"format"`
	// buffer size [w, h], default is frame size
	Size []int `hcl:"size"`
	// [x, y, w, h] in display coordinates, default is full display
	Frame []int `hcl:"frame"`
	// [x, y, w, h] in buffer coordinates, default is full buffer
	Crop      []int  `hcl:"crop"`
	Transform int    `hcl:"transform"` // degrees
	Blending  string `hcl:"blending"`
	Skip      bool   `hcl:"skip"`
	Target    bool   `hcl:"target"`
}

func (lc LayerConfig) String() string {
	return fmt.Sprintf("pattern=%s format=%s size=%v frame=%v crop=%v rot=%d blend=%s skip=%t target=%t",
		lc.Pattern, lc.Format, lc.Size, lc.Frame, lc.Crop, lc.Transform, lc.Blending, lc.Skip, lc.Target)
}

// Scene owns buffers of its layers. Not safe for concurrent use.
type Scene struct {
	log      *log2.Log
	mem      bufmap.Allocator
	width    int
	height   int
	contents layer.Contents
	target   *layer.Layer
	changed  bool
	// removed buffers, freed once display releases them
	garbage []bufmap.Handle
}

func New(log *log2.Log, mem bufmap.Allocator, width, height int) *Scene {
	return &Scene{log: log, mem: mem, width: width, height: height, changed: true}
}

// Build scene from config, framebuffer target is added when config has none.
func Build(log *log2.Log, mem bufmap.Allocator, width, height int, cfg Config) (*Scene, error) {
	self := New(log, mem, width, height)
	for i, lc := range cfg.Layers {
		if err := self.Add(lc); err != nil {
			_ = self.Free()
			return nil, errors.Annotatef(err, "scene display=%s layer=%d", cfg.Display, i)
		}
	}
	if self.target == nil {
		if err := self.Add(LayerConfig{Pattern: DefaultTargetPattern, Target: true}); err != nil {
			_ = self.Free()
			return nil, errors.Annotatef(err, "scene display=%s target", cfg.Display)
		}
	}
	return self, nil
}

// Contents of next frame. GeometryChanged is reported once after any change.
func (self *Scene) Contents() *layer.Contents {
	if len(self.garbage) != 0 {
		self.collect()
	}
	self.contents.GeometryChanged = self.changed
	self.changed = false
	return &self.contents
}

func (self *Scene) Len() int { return len(self.contents.Layers) }

// Add allocates and paints layer buffer. Target layer is kept last.
func (self *Scene) Add(lc LayerConfig) error {
	l, err := self.newLayer(lc)
	if err != nil {
		return err
	}
	if l.Target {
		if self.target != nil {
			_ = self.mem.Free(l.Handle)
			return errors.AlreadyExistsf("scene target")
		}
		self.target = l
		self.contents.Layers = append(self.contents.Layers, l)
	} else {
		n := len(self.contents.Layers)
		if self.target != nil {
			n--
		}
		self.contents.Layers = append(self.contents.Layers, nil)
		copy(self.contents.Layers[n+1:], self.contents.Layers[n:])
		self.contents.Layers[n] = l
	}
	self.changed = true
	return nil
}

// Remove layer by index. Buffer is freed later, it may still be scanned out.
func (self *Scene) Remove(i int) error {
	if i < 0 || i >= len(self.contents.Layers) {
		return errors.NotFoundf("scene layer=%d", i)
	}
	l := self.contents.Layers[i]
	self.contents.Layers = append(self.contents.Layers[:i], self.contents.Layers[i+1:]...)
	if l == self.target {
		self.target = nil
	}
	self.garbage = append(self.garbage, l.Handle)
	self.changed = true
	return nil
}

// Move layer frame, buffer stays the same.
func (self *Scene) Move(i int, frame plane.Rect) error {
	if i < 0 || i >= len(self.contents.Layers) {
		return errors.NotFoundf("scene layer=%d", i)
	}
	self.contents.Layers[i].Frame = frame
	return nil
}

// Free all buffers, scene is empty after. Buffers allocator refused
// (still mapped by planes) stay in garbage, see TakeGarbage.
func (self *Scene) Free() error {
	errs := make([]error, 0, len(self.contents.Layers)+len(self.garbage))
	keep := make([]bufmap.Handle, 0)
	free := func(h bufmap.Handle) {
		if err := self.mem.Free(h); err != nil {
			errs = append(errs, err)
			keep = append(keep, h)
		}
	}
	for _, l := range self.contents.Layers {
		free(l.Handle)
	}
	for _, h := range self.garbage {
		free(h)
	}
	self.contents.Layers = nil
	self.garbage = keep
	self.target = nil
	self.changed = true
	return helpers.FoldErrors(errs)
}

// TakeGarbage hands buffers waiting to be freed over to caller.
func (self *Scene) TakeGarbage() []bufmap.Handle {
	g := self.garbage
	self.garbage = nil
	return g
}

func (self *Scene) collect() {
	keep := self.garbage[:0]
	for _, h := range self.garbage {
		if err := self.mem.Free(h); err != nil {
			self.log.Debugf("scene free handle=%x later err=%v", uint64(h), err)
			keep = append(keep, h)
		}
	}
	self.garbage = keep
}

func (self *Scene) String() string {
	var sb strings.Builder
	for i, l := range self.contents.Layers {
		fmt.Fprintf(&sb, "%d: %s\n", i, l.String())
	}
	return sb.String()
}

func (self *Scene) newLayer(lc LayerConfig) (*layer.Layer, error) {
	l := &layer.Layer{Skip: lc.Skip, Target: lc.Target}
	var err error
	if l.Frame, err = rect(lc.Frame, plane.Rect{W: self.width, H: self.height}); err != nil {
		return nil, errors.Annotate(err, "frame")
	}
	if l.Transform, err = transform(lc.Transform); err != nil {
		return nil, err
	}
	if l.Blending, err = blending(lc.Blending); err != nil {
		return nil, err
	}
	formatName := lc.Format
	if formatName == "" {
		formatName = DefaultFormat
	}
	format, err := bufmap.ParseFormat(formatName)
	if err != nil {
		return nil, err
	}
	w, h := l.Frame.W, l.Frame.H
	if lc.Target {
		w, h = self.width, self.height
	}
	if len(lc.Size) != 0 {
		if len(lc.Size) != 2 || lc.Size[0] <= 0 || lc.Size[1] <= 0 {
			return nil, errors.NotValidf("size=%v", lc.Size)
		}
		w, h = lc.Size[0], lc.Size[1]
	}
	if l.Crop, err = rect(lc.Crop, plane.Rect{W: w, H: h}); err != nil {
		return nil, errors.Annotate(err, "crop")
	}

	var p pattern.Pattern
	if lc.Pattern != "" {
		if p, err = pattern.Parse(lc.Pattern); err != nil {
			return nil, err
		}
	}
	d, err := self.mem.Allocate(w, h, format)
	if err != nil {
		return nil, errors.Annotatef(err, "allocate %dx%d %s", w, h, format)
	}
	l.Handle = d.Handle
	switch {
	case lc.Pattern == "":
	case format.IsYUV():
		self.log.Debugf("scene pattern=%s not painted into %s", lc.Pattern, format)
	default:
		if err = pattern.Paint(self.mem, d, p); err != nil {
			_ = self.mem.Free(d.Handle)
			return nil, err
		}
	}
	return l, nil
}

// rect from [x y w h] or default when empty.
func rect(v []int, def plane.Rect) (plane.Rect, error) {
	switch len(v) {
	case 0:
		return def, nil
	case 4:
		r := plane.Rect{X: v[0], Y: v[1], W: v[2], H: v[3]}
		if r.Empty() || r.X < 0 || r.Y < 0 {
			return plane.Rect{}, errors.NotValidf("rect=%v", v)
		}
		return r, nil
	}
	return plane.Rect{}, errors.NotValidf("rect=%v expected [x, y, w, h]", v)
}

func transform(degrees int) (plane.Transform, error) {
	switch degrees {
	case 0:
		return plane.Transform0, nil
	case 90:
		return plane.Transform90, nil
	case 180:
		return plane.Transform180, nil
	case 270:
		return plane.Transform270, nil
	}
	return plane.Transform0, errors.NotValidf("transform=%d", degrees)
}

func blending(s string) (plane.Blending, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return plane.BlendingNone, nil
	case "premult":
		return plane.BlendingPremult, nil
	case "coverage":
		return plane.BlendingCoverage, nil
	}
	return plane.BlendingNone, errors.NotValidf("blending=%q", s)
}
