package drm

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// _IOWR('d', nr, size) = 0xC0000000 | size<<16 | 'd'<<8 | nr
const (
	ioctlSetMaster            = 0x641e
	ioctlWaitVblank           = 0xc018643a
	ioctlModeGetResources     = 0xc04064a0
	ioctlModeGetCrtc          = 0xc06864a1
	ioctlModeSetCrtc          = 0xc06864a2
	ioctlModeGetConnector     = 0xc05064a7
	ioctlModeGetProperty      = 0xc04064aa
	ioctlModeAddFB            = 0xc01c64ae
	ioctlModeRmFB             = 0xc00464af
	ioctlModePageFlip         = 0xc01864b0
	ioctlModeCreateDumb       = 0xc02064b2
	ioctlModeMapDumb          = 0xc01064b3
	ioctlModeDestroyDumb      = 0xc00464b4
	ioctlModeGetPlaneResource = 0xc01064b5
	ioctlModeGetPlane         = 0xc02064b6
	ioctlModeSetPlane         = 0xc03064b7
	ioctlModeObjSetProperty   = 0xc01864ba
)

const (
	vblankRelative      = 0x1
	vblankSecondary     = 0x20000000
	vblankHighCrtcShift = 1
	vblankHighCrtcMask  = 0x3e
	modeTypePreferred   = 1 << 3
	connectionConnected = 1
	objectConnector     = 0xc0c0c0c0
	propNameLen         = 32
	dpmsOn              = 0
	dpmsOff             = 3
)

var errBusy error = unix.EBUSY

type drmWaitVblank struct {
	Type     uint32
	Sequence uint32
	Sec      int64 // request.signal on input
	Usec     int64
}

type drmModeCardRes struct {
	FbIDPtr         uint64
	CrtcIDPtr       uint64
	ConnectorIDPtr  uint64
	EncoderIDPtr    uint64
	CountFbs        uint32
	CountCrtcs      uint32
	CountConnectors uint32
	CountEncoders   uint32
	MinWidth        uint32
	MaxWidth        uint32
	MinHeight       uint32
	MaxHeight       uint32
}

type drmModeGetConnector struct {
	EncodersPtr     uint64
	ModesPtr        uint64
	PropsPtr        uint64
	PropValuesPtr   uint64
	CountModes      uint32
	CountProps      uint32
	CountEncoders   uint32
	EncoderID       uint32
	ConnectorID     uint32
	ConnectorType   uint32
	ConnectorTypeID uint32
	Connection      uint32
	MmWidth         uint32
	MmHeight        uint32
	Subpixel        uint32
	Pad             uint32
}

type drmModeInfo struct {
	Clock      uint32
	Hdisplay   uint16
	HsyncStart uint16
	HsyncEnd   uint16
	Htotal     uint16
	Hskew      uint16
	Vdisplay   uint16
	VsyncStart uint16
	VsyncEnd   uint16
	Vtotal     uint16
	Vscan      uint16
	Vrefresh   uint32
	Flags      uint32
	Type       uint32
	Name       [32]byte
}

type drmModeCrtc struct {
	SetConnectorsPtr uint64
	CountConnectors  uint32
	CrtcID           uint32
	FbID             uint32
	X                uint32
	Y                uint32
	GammaSize        uint32
	ModeValid        uint32
	Mode             drmModeInfo
}

type drmModeGetPlaneRes struct {
	PlaneIDPtr  uint64
	CountPlanes uint32
}

type drmModeGetPlane struct {
	PlaneID          uint32
	CrtcID           uint32
	FbID             uint32
	PossibleCrtcs    uint32
	GammaSize        uint32
	CountFormatTypes uint32
	FormatTypePtr    uint64
}

// src_* are 16.16 fixed point, note src_h comes before src_w
type drmModeSetPlane struct {
	PlaneID uint32
	CrtcID  uint32
	FbID    uint32
	Flags   uint32
	CrtcX   int32
	CrtcY   int32
	CrtcW   uint32
	CrtcH   uint32
	SrcX    uint32
	SrcY    uint32
	SrcH    uint32
	SrcW    uint32
}

type drmModePageFlip struct {
	CrtcID   uint32
	FbID     uint32
	Flags    uint32
	Reserved uint32
	UserData uint64
}

type drmModeGetProperty struct {
	ValuesPtr      uint64
	EnumBlobPtr    uint64
	PropID         uint32
	Flags          uint32
	Name           [propNameLen]byte
	CountValues    uint32
	CountEnumBlobs uint32
}

type drmModeObjSetProperty struct {
	Value   uint64
	PropID  uint32
	ObjID   uint32
	ObjType uint32
}

type drmModeCreateDumb struct {
	Height uint32
	Width  uint32
	Bpp    uint32
	Flags  uint32
	Handle uint32
	Pitch  uint32
	Size   uint64
}

type drmModeMapDumb struct {
	Handle uint32
	Pad    uint32
	Offset uint64
}

type drmModeFbCmd struct {
	FbID   uint32
	Width  uint32
	Height uint32
	Pitch  uint32
	Bpp    uint32
	Depth  uint32
	Handle uint32
}

func ioctl(fd uintptr, req uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
		switch errno {
		case 0:
			return nil
		case unix.EINTR, unix.EAGAIN:
			continue
		}
		return errno
	}
}

// vblankType encodes relative wait on pipe: pipe 1 has legacy flag,
// others go into high crtc bits.
func vblankType(pipe int) uint32 {
	t := uint32(vblankRelative)
	switch {
	case pipe == 1:
		t |= vblankSecondary
	case pipe > 1:
		t |= (uint32(pipe) << vblankHighCrtcShift) & vblankHighCrtcMask
	}
	return t
}

func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
