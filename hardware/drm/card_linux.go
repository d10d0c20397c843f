package drm

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unsafe"

	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/hardware/bufmap"
	"github.com/temoto/hwcomposer/hardware/plane"
	"github.com/temoto/hwcomposer/helpers"
	"github.com/temoto/hwcomposer/log2"
	"golang.org/x/sys/unix"
)

type planeKey struct {
	t     plane.Type
	index int
}

type kmsPlane struct {
	id       uint32
	possible uint32
	used     bool
}

// Card is KMS device driver over legacy (non atomic) ioctls.
type Card struct {
	mu         sync.Mutex
	log        *log2.Log
	f          *os.File
	fd         uintptr
	path       string
	deviceID   uint16
	mem        *DumbMemory
	crtcs      []uint32
	connectors []uint32
	planes     []kmsPlane
	bound      map[planeKey]uint32
	modes      map[int][]drmModeInfo
}

var _ Driver = new(Card)

func Open(path string, log *log2.Log) (*Card, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Annotatef(err, "drm open %s", path)
	}
	self := &Card{
		log:   log,
		f:     f,
		fd:    f.Fd(),
		path:  path,
		bound: make(map[planeKey]uint32),
		modes: make(map[int][]drmModeInfo),
	}
	if err = ioctl(self.fd, ioctlSetMaster, nil); err != nil {
		// another master (e.g. console) is fine for read only detect
		log.Debugf("drm %s set master err=%v", path, err)
	}
	if err = self.resources(); err != nil {
		_ = f.Close()
		return nil, errors.Annotatef(err, "drm %s", path)
	}
	if err = self.planeResources(); err != nil {
		log.Debugf("drm %s no planes err=%v", path, err)
	}
	self.deviceID = readDeviceID(path)
	self.mem = newDumbMemory(self.fd)
	log.Debugf("drm %s device=%04x crtcs=%d connectors=%d planes=%d",
		path, self.deviceID, len(self.crtcs), len(self.connectors), len(self.planes))
	return self, nil
}

func (self *Card) DeviceID() uint16      { return self.deviceID }
func (self *Card) Memory() bufmap.Memory { return self.mem }
func (self *Card) Dumb() *DumbMemory     { return self.mem }

func (self *Card) Close() error {
	errs := []error{self.mem.close()}
	errs = append(errs, self.f.Close())
	return helpers.FoldErrors(errs)
}

func (self *Card) resources() error {
	var res drmModeCardRes
	if err := ioctl(self.fd, ioctlModeGetResources, unsafe.Pointer(&res)); err != nil {
		return errors.Annotate(err, "MODE_GETRESOURCES count")
	}
	if res.CountCrtcs == 0 || res.CountConnectors == 0 {
		return errors.NotFoundf("crtcs=%d connectors=%d", res.CountCrtcs, res.CountConnectors)
	}
	crtcs := make([]uint32, res.CountCrtcs)
	connectors := make([]uint32, res.CountConnectors)
	fill := drmModeCardRes{
		CrtcIDPtr:       uint64(uintptr(unsafe.Pointer(&crtcs[0]))),
		ConnectorIDPtr:  uint64(uintptr(unsafe.Pointer(&connectors[0]))),
		CountCrtcs:      res.CountCrtcs,
		CountConnectors: res.CountConnectors,
	}
	if err := ioctl(self.fd, ioctlModeGetResources, unsafe.Pointer(&fill)); err != nil {
		return errors.Annotate(err, "MODE_GETRESOURCES fill")
	}
	self.crtcs = crtcs[:fill.CountCrtcs]
	self.connectors = connectors[:fill.CountConnectors]
	return nil
}

func (self *Card) planeResources() error {
	var res drmModeGetPlaneRes
	if err := ioctl(self.fd, ioctlModeGetPlaneResource, unsafe.Pointer(&res)); err != nil {
		return errors.Annotate(err, "MODE_GETPLANERESOURCES count")
	}
	if res.CountPlanes == 0 {
		return nil
	}
	ids := make([]uint32, res.CountPlanes)
	res.PlaneIDPtr = uint64(uintptr(unsafe.Pointer(&ids[0])))
	if err := ioctl(self.fd, ioctlModeGetPlaneResource, unsafe.Pointer(&res)); err != nil {
		return errors.Annotate(err, "MODE_GETPLANERESOURCES fill")
	}
	for _, id := range ids[:res.CountPlanes] {
		p := drmModeGetPlane{PlaneID: id}
		if err := ioctl(self.fd, ioctlModeGetPlane, unsafe.Pointer(&p)); err != nil {
			return errors.Annotatef(err, "MODE_GETPLANE id=%d", id)
		}
		self.planes = append(self.planes, kmsPlane{id: id, possible: p.PossibleCrtcs})
	}
	return nil
}

func (self *Card) crtc(pipe int) (uint32, error) {
	if pipe < 0 || pipe >= len(self.crtcs) {
		return 0, errors.NotFoundf("drm pipe=%d crtcs=%d", pipe, len(self.crtcs))
	}
	return self.crtcs[pipe], nil
}

func (self *Card) connector(pipe int) (drmModeGetConnector, []drmModeInfo, error) {
	if pipe < 0 || pipe >= len(self.connectors) {
		return drmModeGetConnector{}, nil, errors.NotFoundf("drm pipe=%d connectors=%d", pipe, len(self.connectors))
	}
	c := drmModeGetConnector{ConnectorID: self.connectors[pipe]}
	if err := ioctl(self.fd, ioctlModeGetConnector, unsafe.Pointer(&c)); err != nil {
		return c, nil, errors.Annotatef(err, "MODE_GETCONNECTOR id=%d", c.ConnectorID)
	}
	if c.CountModes == 0 {
		return c, nil, nil
	}
	modes := make([]drmModeInfo, c.CountModes)
	fill := drmModeGetConnector{
		ConnectorID: c.ConnectorID,
		ModesPtr:    uint64(uintptr(unsafe.Pointer(&modes[0]))),
		CountModes:  c.CountModes,
	}
	if err := ioctl(self.fd, ioctlModeGetConnector, unsafe.Pointer(&fill)); err != nil {
		return c, nil, errors.Annotatef(err, "MODE_GETCONNECTOR id=%d fill", c.ConnectorID)
	}
	if fill.CountModes < uint32(len(modes)) {
		modes = modes[:fill.CountModes]
	}
	return fill, modes, nil
}

func (self *Card) Detect(pipe int) (Connector, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	c, infos, err := self.connector(pipe)
	if err != nil {
		return Connector{Pipe: pipe}, err
	}
	self.modes[pipe] = infos
	result := Connector{
		Pipe:      pipe,
		Name:      ConnectorName(c.ConnectorType, c.ConnectorTypeID),
		Connected: c.Connection == connectionConnected,
		Modes:     make([]Mode, 0, len(infos)),
	}
	for i, info := range infos {
		result.Modes = append(result.Modes, modeFromInfo(info, c.MmWidth, c.MmHeight))
		if info.Type&modeTypePreferred != 0 {
			result.Preferred = i
		}
	}
	return result, nil
}

func modeFromInfo(info drmModeInfo, mmW, mmH uint32) Mode {
	return Mode{
		Name:    cstring(info.Name[:]),
		Width:   int(info.Hdisplay),
		Height:  int(info.Vdisplay),
		Refresh: int(info.Vrefresh),
		DpiX:    Dpi(int(info.Hdisplay), mmW),
		DpiY:    Dpi(int(info.Vdisplay), mmH),
	}
}

// SetMode keeps currently scanned framebuffer.
func (self *Card) SetMode(pipe int, m Mode) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	crtcID, err := self.crtc(pipe)
	if err != nil {
		return err
	}
	var info *drmModeInfo
	for i := range self.modes[pipe] {
		mi := &self.modes[pipe][i]
		if int(mi.Hdisplay) == m.Width && int(mi.Vdisplay) == m.Height && int(mi.Vrefresh) == m.Refresh {
			info = mi
			break
		}
	}
	if info == nil {
		return errors.NotFoundf("drm pipe=%d mode %s", pipe, m.String())
	}
	cur := drmModeCrtc{CrtcID: crtcID}
	if err = ioctl(self.fd, ioctlModeGetCrtc, unsafe.Pointer(&cur)); err != nil {
		return errors.Annotate(err, "MODE_GETCRTC")
	}
	connectorID := self.connectors[pipe]
	set := drmModeCrtc{
		SetConnectorsPtr: uint64(uintptr(unsafe.Pointer(&connectorID))),
		CountConnectors:  1,
		CrtcID:           crtcID,
		FbID:             cur.FbID,
		ModeValid:        1,
		Mode:             *info,
	}
	return errors.Annotatef(ioctl(self.fd, ioctlModeSetCrtc, unsafe.Pointer(&set)), "MODE_SETCRTC pipe=%d", pipe)
}

func (self *Card) WaitVblank(ctx context.Context, pipe int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	vbl := drmWaitVblank{Type: vblankType(pipe), Sequence: 1}
	if err := ioctl(self.fd, ioctlWaitVblank, unsafe.Pointer(&vbl)); err != nil {
		return 0, errors.Annotatef(err, "WAIT_VBLANK pipe=%d", pipe)
	}
	return vbl.Sec*1e9 + vbl.Usec*1e3, nil
}

func (self *Card) Commit(pipe int, updates []plane.Update) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	errs := make([]error, 0)
	for _, u := range updates {
		if u.Pipe != pipe {
			errs = append(errs, errors.Errorf("code error commit pipe=%d update %s", pipe, u.String()))
			continue
		}
		if err := self.apply(u); err != nil {
			errs = append(errs, err)
		}
	}
	return helpers.FoldErrors(errs)
}

func (self *Card) Apply(u plane.Update) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.apply(u)
}

func (self *Card) apply(u plane.Update) error {
	crtcID, err := self.crtc(u.Pipe)
	if err != nil {
		return err
	}
	if u.Type == plane.TypePrimary {
		if !u.Enabled {
			// primary goes off only with the whole pipe, see Blank
			return nil
		}
		flip := drmModePageFlip{CrtcID: crtcID, FbID: u.Object}
		err = ioctl(self.fd, ioctlModePageFlip, unsafe.Pointer(&flip))
		if err == errBusy {
			// previous flip still pending, next frame will catch up
			self.log.Debugf("drm page flip pipe=%d busy", u.Pipe)
			return nil
		}
		return errors.Annotatef(err, "MODE_PAGE_FLIP %s", u.String())
	}

	id, err := self.kmsPlane(u.Type, u.Index, u.Pipe)
	if err != nil {
		return err
	}
	set := drmModeSetPlane{PlaneID: id, CrtcID: crtcID}
	if u.Enabled {
		set.FbID = u.Object
		set.CrtcX, set.CrtcY = int32(u.Dst.X), int32(u.Dst.Y)
		set.CrtcW, set.CrtcH = uint32(u.Dst.W), uint32(u.Dst.H)
		set.SrcX, set.SrcY = uint32(u.Src.X)<<16, uint32(u.Src.Y)<<16
		set.SrcW, set.SrcH = uint32(u.Src.W)<<16, uint32(u.Src.H)<<16
	}
	return errors.Annotatef(ioctl(self.fd, ioctlModeSetPlane, unsafe.Pointer(&set)), "MODE_SETPLANE %s", u.String())
}

// kmsPlane binds hardware plane slot to KMS plane object on first use.
func (self *Card) kmsPlane(t plane.Type, index, pipe int) (uint32, error) {
	key := planeKey{t: t, index: index}
	if id, ok := self.bound[key]; ok {
		return id, nil
	}
	for i := range self.planes {
		p := &self.planes[i]
		if !p.used && p.possible&(1<<uint(pipe)) != 0 {
			p.used = true
			self.bound[key] = p.id
			return p.id, nil
		}
	}
	return 0, errors.NotFoundf("kms plane for %s%d pipe=%d", t, index, pipe)
}

// Blank uses connector DPMS property.
func (self *Card) Blank(pipe int, blank bool) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if pipe < 0 || pipe >= len(self.connectors) {
		return errors.NotFoundf("drm pipe=%d", pipe)
	}
	connectorID := self.connectors[pipe]
	propID, err := self.connectorProperty(connectorID, "DPMS")
	if err != nil {
		return err
	}
	set := drmModeObjSetProperty{Value: dpmsOn, PropID: propID, ObjID: connectorID, ObjType: objectConnector}
	if blank {
		set.Value = dpmsOff
	}
	return errors.Annotatef(ioctl(self.fd, ioctlModeObjSetProperty, unsafe.Pointer(&set)), "DPMS pipe=%d blank=%t", pipe, blank)
}

func (self *Card) connectorProperty(connectorID uint32, name string) (uint32, error) {
	c := drmModeGetConnector{ConnectorID: connectorID}
	if err := ioctl(self.fd, ioctlModeGetConnector, unsafe.Pointer(&c)); err != nil {
		return 0, errors.Annotate(err, "MODE_GETCONNECTOR props")
	}
	if c.CountProps == 0 {
		return 0, errors.NotFoundf("connector=%d property %s", connectorID, name)
	}
	props := make([]uint32, c.CountProps)
	values := make([]uint64, c.CountProps)
	fill := drmModeGetConnector{
		ConnectorID:   connectorID,
		PropsPtr:      uint64(uintptr(unsafe.Pointer(&props[0]))),
		PropValuesPtr: uint64(uintptr(unsafe.Pointer(&values[0]))),
		CountProps:    c.CountProps,
	}
	if err := ioctl(self.fd, ioctlModeGetConnector, unsafe.Pointer(&fill)); err != nil {
		return 0, errors.Annotate(err, "MODE_GETCONNECTOR props fill")
	}
	for _, id := range props[:fill.CountProps] {
		p := drmModeGetProperty{PropID: id}
		if err := ioctl(self.fd, ioctlModeGetProperty, unsafe.Pointer(&p)); err != nil {
			continue
		}
		if cstring(p.Name[:]) == name {
			return id, nil
		}
	}
	return 0, errors.NotFoundf("connector=%d property %s", connectorID, name)
}

// readDeviceID from sysfs, 0 when unknown.
func readDeviceID(devPath string) uint16 {
	card := filepath.Base(devPath)
	b, err := ioutil.ReadFile(filepath.Join("/sys/class/drm", card, "device", "device"))
	if err != nil {
		return 0
	}
	id, err := strconv.ParseUint(strings.TrimSpace(string(b)), 0, 16)
	if err != nil {
		return 0
	}
	return uint16(id)
}
