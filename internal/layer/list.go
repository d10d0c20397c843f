package layer

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/hardware/bufmap"
	"github.com/temoto/hwcomposer/hardware/plane"
	"github.com/temoto/hwcomposer/helpers"
	"github.com/temoto/hwcomposer/log2"
)

type Stat struct {
	Rebuilds      uint64
	Checks        uint64
	CheckFailures uint64
	PlaneLayers   uint64
	FbLayers      uint64
	MapFailures   uint64
}

func (s *Stat) Add(other Stat) {
	s.Rebuilds += other.Rebuilds
	s.Checks += other.Checks
	s.CheckFailures += other.CheckFailures
	s.PlaneLayers += other.PlaneLayers
	s.FbLayers += other.FbLayers
	s.MapFailures += other.MapFailures
}

// List assigns planes of one pipe to layers. Not safe for concurrent use,
// display device serializes access.
type List struct {
	log  *log2.Log
	mgr  *plane.Manager
	mem  bufmap.Memory
	pipe int
	size plane.Rect

	layers []*HwcLayer
	// plane bound subset of layers, revalidated by check
	bound []*HwcLayer
	// primary shows framebuffer target (showTarget) or the bottom layer
	primary      plane.Plane
	showTarget   bool
	targetHandle bufmap.Handle
	targetIndex  int
	inputLen     int
	zorder       ZOrderConfig
	valid        bool
	stat         Stat
	nPlane       int
	nFb          int
}

func NewList(log *log2.Log, mgr *plane.Manager, mem bufmap.Memory, pipe int) *List {
	return &List{
		log:         log,
		mgr:         mgr,
		mem:         mem,
		pipe:        pipe,
		zorder:      ZOrderConfig{PrimarySlot: -1},
		targetIndex: -1,
	}
}

// SetDisplaySize forces full rebuild on next Update.
func (self *List) SetDisplaySize(width, height int) {
	self.size = plane.Rect{W: width, H: height}
	self.valid = false
}

// Invalidate forces full rebuild on next Update.
func (self *List) Invalidate() { self.valid = false }

func (self *List) Layers() []*HwcLayer     { return self.layers }
func (self *List) ZOrder() ZOrderConfig    { return self.zorder }
func (self *List) Primary() plane.Plane    { return self.primary }
func (self *List) Stat() Stat              { return self.stat }
func (self *List) ShowsTarget() bool       { return self.primary != nil && self.showTarget }
func (self *List) Pipe() int               { return self.pipe }
func (self *List) DisplaySize() plane.Rect { return self.size }

// Update classifies contents layers and binds their buffers to planes.
// Per layer failures fall back to framebuffer composition and are not returned.
func (self *List) Update(c *Contents) error {
	if !c.GeometryChanged && self.valid {
		if self.check(c) {
			self.stat.Checks++
			self.count()
			return nil
		}
		self.stat.CheckFailures++
		self.log.Debugf("layer list pipe=%d check failed, rebuild", self.pipe)
	}
	err := self.rebuild(c)
	self.count()
	return err
}

// Flip latches every bound plane, primary first. Result is the frame commit.
func (self *List) Flip() []plane.Update {
	out := make([]plane.Update, 0, len(self.layers)+1)
	if self.primary != nil {
		if u, ok := self.primary.Flip(); ok {
			out = append(out, u)
		}
	}
	for _, hl := range self.layers {
		if hl.Plane == nil || hl.Class == ClassPrimary {
			continue
		}
		if u, ok := hl.Plane.Flip(); ok {
			out = append(out, u)
		}
	}
	return out
}

// Release hands every plane back to manager as reclaimed.
// Manager disables them in DisableReclaimedPlanes.
func (self *List) Release() error {
	errs := self.reclaimAll()
	self.layers = nil
	self.bound = nil
	self.targetIndex = -1
	self.nPlane, self.nFb = 0, 0
	self.zorder = ZOrderConfig{PrimarySlot: -1}
	self.valid = false
	return helpers.FoldErrors(errs)
}

func (self *List) Dump() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "layer list pipe=%d size=%dx%d %s\n", self.pipe, self.size.W, self.size.H, self.zorder.String())
	if self.primary != nil {
		what := "bottom layer"
		if self.showTarget {
			what = fmt.Sprintf("target handle=%x", uint64(self.targetHandle))
		}
		fmt.Fprintf(&sb, "  %s%d %s\n", self.primary.Type(), self.primary.Index(), what)
	}
	for _, hl := range self.layers {
		fmt.Fprintf(&sb, "  %s\n", hl.String())
	}
	return sb.String()
}

func (self *List) rebuild(c *Contents) error {
	self.stat.Rebuilds++
	errs := self.reclaimAll()
	self.valid = false
	self.showTarget = false
	self.layers = make([]*HwcLayer, 0, len(c.Layers))
	for i, l := range c.Layers {
		if l.Target {
			continue
		}
		self.layers = append(self.layers, &HwcLayer{Index: i, Class: ClassFramebuffer, Layer: l})
	}
	target := c.Target()

	self.plan()
	errs = append(errs, self.fixSandwich()...)

	if self.primary = self.mgr.GetPrimaryPlane(self.pipe); self.primary == nil {
		self.log.Debugf("layer list pipe=%d no primary plane, all framebuffer", self.pipe)
		errs = append(errs, self.allFramebuffer()...)
		self.finish(c)
		return helpers.FoldErrors(errs)
	}

	for _, hl := range self.layers {
		if hl.Class == ClassFramebuffer || hl.Class == ClassPrimary {
			continue
		}
		if !self.bind(hl) {
			hl.Class = ClassFramebuffer
			errs = append(errs, self.fixSandwich()...)
		}
	}
	if len(self.layers) != 0 && self.layers[0].Class == ClassPrimary && self.countFb() == 0 {
		hl := self.layers[0]
		if err := self.configure(self.primary, hl); err != nil {
			self.log.Error(errors.Annotatef(err, "layer list pipe=%d primary layer", self.pipe))
			hl.Class = ClassFramebuffer
		} else {
			hl.Plane = self.primary
		}
	}

	if self.countFb() != 0 || (len(self.layers) == 0 && target != nil) {
		if err := self.bindTarget(target); err != nil {
			self.log.Error(errors.Annotatef(err, "layer list pipe=%d framebuffer target", self.pipe))
			errs = append(errs, self.allFramebuffer()...)
		}
	} else if len(self.layers) == 0 || self.layers[0].Class != ClassPrimary {
		// every layer on its own plane
		errs = append(errs, self.mgr.ReclaimPlane(self.primary))
		self.primary = nil
	}

	self.finish(c)
	self.valid = true
	return helpers.FoldErrors(errs)
}

// plan picks class per layer greedily back to front against free plane counts.
func (self *List) plan() {
	avail := map[plane.Type]int{
		plane.TypeSprite:  self.mgr.FreeCount(plane.TypeSprite, self.pipe),
		plane.TypeOverlay: self.mgr.FreeCount(plane.TypeOverlay, self.pipe),
	}
	for i, hl := range self.layers {
		l := hl.Layer
		hl.Class = ClassFramebuffer
		if l.Skip || !self.inside(l.Frame) {
			continue
		}
		if i == 0 && l.Frame == self.size && self.eligible(plane.TypePrimary, l) {
			hl.Class = ClassPrimary
			continue
		}
		for _, t := range [...]plane.Type{plane.TypeOverlay, plane.TypeSprite} {
			if avail[t] > 0 && self.eligible(t, l) {
				avail[t]--
				if t == plane.TypeOverlay {
					hl.Class = ClassOverlay
				} else {
					hl.Class = ClassSprite
				}
				break
			}
		}
	}
}

// Framebuffer layers reach screen through primary plane. Plane layers above
// the topmost framebuffer layer stack over primary. Overlays below the lowest
// one stack under primary where variant allows it. Others would be drawn
// in wrong order, demote them.
func (self *List) fixSandwich() []error {
	top := -1
	for i, hl := range self.layers {
		if hl.Class == ClassFramebuffer {
			top = i
		}
	}
	under := self.mgr.Variant().OverlayUnderPrimary
	var errs []error
	for i := 0; i < top; i++ {
		hl := self.layers[i]
		switch {
		case hl.Class == ClassFramebuffer:
			under = false
		case under && hl.Class == ClassOverlay:
		default:
			under = false
			errs = append(errs, self.demote(hl))
		}
	}
	return errs
}

func (self *List) demote(hl *HwcLayer) error {
	var err error
	if hl.Plane != nil && hl.Class != ClassPrimary {
		err = self.mgr.ReclaimPlane(hl.Plane)
	}
	hl.Plane = nil
	hl.Class = ClassFramebuffer
	return err
}

func (self *List) allFramebuffer() []error {
	errs := make([]error, 0, len(self.layers)+1)
	for _, hl := range self.layers {
		errs = append(errs, self.demote(hl))
	}
	if self.primary != nil {
		errs = append(errs, self.mgr.ReclaimPlane(self.primary))
		self.primary = nil
	}
	self.showTarget = false
	return errs
}

func (self *List) reclaimAll() []error {
	errs := make([]error, 0, len(self.layers)+1)
	for _, hl := range self.layers {
		if hl.Plane != nil && hl.Class != ClassPrimary {
			errs = append(errs, self.mgr.ReclaimPlane(hl.Plane))
		}
		hl.Plane = nil
	}
	if self.primary != nil {
		errs = append(errs, self.mgr.ReclaimPlane(self.primary))
		self.primary = nil
	}
	self.showTarget = false
	return errs
}

func (self *List) bind(hl *HwcLayer) bool {
	var p plane.Plane
	switch t, _ := hl.Class.planeType(); t {
	case plane.TypeSprite:
		p = self.mgr.GetSpritePlane(self.pipe)
	case plane.TypeOverlay:
		p = self.mgr.GetOverlayPlane(self.pipe)
	}
	if p == nil {
		self.log.Debugf("layer list pipe=%d #%d %s exhausted", self.pipe, hl.Index, hl.Class)
		return false
	}
	if err := self.configure(p, hl); err != nil {
		self.log.Error(errors.Annotatef(err, "layer list pipe=%d #%d", self.pipe, hl.Index))
		if err := self.mgr.ReclaimPlane(p); err != nil {
			self.log.Error(err)
		}
		return false
	}
	hl.Plane = p
	return true
}

func (self *List) configure(p plane.Plane, hl *HwcLayer) error {
	l := hl.Layer
	d, err := self.mem.Describe(l.Handle)
	if err != nil {
		self.stat.MapFailures++
		return err
	}
	crop := srcCrop(l.Crop, d)
	if err = p.SetSourceCrop(crop.X, crop.Y, crop.W, crop.H); err != nil {
		return err
	}
	if err = p.SetPosition(l.Frame.X, l.Frame.Y, l.Frame.W, l.Frame.H); err != nil {
		return err
	}
	if err = p.SetTransform(l.Transform); err != nil {
		return err
	}
	if err = p.SetDataBuffer(l.Handle); err != nil {
		self.stat.MapFailures++
		return err
	}
	hl.remember(d)
	return nil
}

func (self *List) bindTarget(target *Layer) error {
	if target == nil {
		return errors.NotFoundf("framebuffer target")
	}
	d, err := self.mem.Describe(target.Handle)
	if err != nil {
		self.stat.MapFailures++
		return err
	}
	frame := target.Frame
	if frame.Empty() {
		frame = self.size
	}
	crop := srcCrop(target.Crop, d)
	p := self.primary
	if err = p.SetSourceCrop(crop.X, crop.Y, crop.W, crop.H); err != nil {
		return err
	}
	if err = p.SetPosition(frame.X, frame.Y, frame.W, frame.H); err != nil {
		return err
	}
	if err = p.SetTransform(plane.Transform0); err != nil {
		return err
	}
	if err = p.SetDataBuffer(target.Handle); err != nil {
		self.stat.MapFailures++
		return err
	}
	self.showTarget = true
	self.targetHandle = target.Handle
	return nil
}

// check revalidates plane bound layers only. False means full rebuild is needed.
// Framebuffer layers keep composition written by last rebuild.
func (self *List) check(c *Contents) bool {
	if len(c.Layers) != self.inputLen {
		return false
	}
	for _, hl := range self.bound {
		l := c.Layers[hl.Index]
		if l.Target || l.Skip {
			return false
		}
		hl.Layer = l
		if !self.recheck(hl) {
			return false
		}
		l.Composition = CompositionOverlay
	}
	if self.targetIndex < 0 {
		return !self.ShowsTarget()
	}
	target := c.Layers[self.targetIndex]
	if !target.Target {
		return false
	}
	target.Composition = CompositionFramebufferTarget
	if self.ShowsTarget() && target.Handle != self.targetHandle {
		if err := self.primary.SetDataBuffer(target.Handle); err != nil {
			self.stat.MapFailures++
			self.log.Error(errors.Annotatef(err, "layer list pipe=%d framebuffer target", self.pipe))
			return false
		}
		self.targetHandle = target.Handle
	}
	return true
}

func (self *List) recheck(hl *HwcLayer) bool {
	l := hl.Layer
	if l.Crop != hl.crop || l.Frame != hl.frame || l.Transform != hl.transform || l.Blending != hl.blending {
		return false
	}
	if l.Handle == hl.desc.Handle {
		return true
	}
	d, err := self.mem.Describe(l.Handle)
	if err != nil || !d.SameLayout(hl.desc) || !hl.Plane.IsValidBuffer(l.Handle) {
		return false
	}
	if err = hl.Plane.SetDataBuffer(l.Handle); err != nil {
		self.stat.MapFailures++
		self.log.Error(errors.Annotatef(err, "layer list pipe=%d #%d", self.pipe, hl.Index))
		return false
	}
	hl.desc = d
	return true
}

// finish writes decisions back to compositor layers and orders planes
// back to front. Primary takes the slot of the lowest framebuffer layer.
func (self *List) finish(c *Contents) {
	self.targetIndex = -1
	for i, l := range c.Layers {
		if l.Target {
			l.Composition = CompositionFramebufferTarget
			self.targetIndex = i
		}
	}
	self.inputLen = len(c.Layers)

	z := ZOrderConfig{Layers: len(self.layers), PrimarySlot: -1}
	placed := self.primary == nil
	slotPrimary := func(layer int) {
		z.PrimarySlot = len(z.Slots)
		self.primary.SetZOrder(z.PrimarySlot)
		z.Slots = append(z.Slots, Slot{Layer: layer, Type: plane.TypePrimary, Plane: self.primary.Index()})
		placed = true
	}
	self.bound = self.bound[:0]
	self.nPlane, self.nFb = 0, 0
	for _, hl := range self.layers {
		switch hl.Class {
		case ClassFramebuffer:
			hl.Layer.Composition = CompositionFramebuffer
			self.nFb++
			if !placed {
				slotPrimary(-1)
			}
			continue
		case ClassPrimary:
			slotPrimary(hl.Index)
		default:
			hl.Plane.SetZOrder(len(z.Slots))
			z.Slots = append(z.Slots, Slot{Layer: hl.Index, Type: hl.Plane.Type(), Plane: hl.Plane.Index()})
		}
		hl.Layer.Composition = CompositionOverlay
		self.bound = append(self.bound, hl)
		self.nPlane++
	}
	if !placed {
		// framebuffer target alone
		slotPrimary(-1)
	}
	z.Planes = len(z.Slots)
	self.zorder = z
}

func (self *List) countFb() int {
	n := 0
	for _, hl := range self.layers {
		if hl.Class == ClassFramebuffer {
			n++
		}
	}
	return n
}

func (self *List) count() {
	self.stat.PlaneLayers += uint64(self.nPlane)
	self.stat.FbLayers += uint64(self.nFb)
}

func (self *List) inside(r plane.Rect) bool {
	if r.Empty() || r.X < 0 || r.Y < 0 {
		return false
	}
	if self.size.Empty() {
		return true
	}
	return r.X+r.W <= self.size.W && r.Y+r.H <= self.size.H
}

func (self *List) eligible(t plane.Type, l *Layer) bool {
	p := self.mgr.PeekPlane(t, self.pipe)
	if p == nil {
		return false
	}
	d, err := self.mem.Describe(l.Handle)
	if err != nil {
		return false
	}
	return p.IsValidBuffer(l.Handle) &&
		p.IsValidTransform(l.Transform) &&
		p.IsValidBlending(l.Blending) &&
		p.IsValidScaling(srcCrop(l.Crop, d), l.Frame)
}

// Empty crop means whole buffer.
func srcCrop(crop plane.Rect, d bufmap.Descriptor) plane.Rect {
	if crop.Empty() {
		return plane.Rect{W: d.Width, H: d.Height}
	}
	return crop
}
