package drm

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestIoctlStructSizes(t *testing.T) {
	t.Parallel()

	// size is encoded in ioctl number bits 29:16
	size := func(req uintptr) uintptr { return (req >> 16) & 0x3fff }
	assert.Equal(t, size(ioctlWaitVblank), unsafe.Sizeof(drmWaitVblank{}))
	assert.Equal(t, size(ioctlModeGetResources), unsafe.Sizeof(drmModeCardRes{}))
	assert.Equal(t, size(ioctlModeGetConnector), unsafe.Sizeof(drmModeGetConnector{}))
	assert.Equal(t, size(ioctlModeSetCrtc), unsafe.Sizeof(drmModeCrtc{}))
	assert.Equal(t, size(ioctlModeGetPlaneResource), unsafe.Sizeof(drmModeGetPlaneRes{}))
	assert.Equal(t, size(ioctlModeGetPlane), unsafe.Sizeof(drmModeGetPlane{}))
	assert.Equal(t, size(ioctlModeSetPlane), unsafe.Sizeof(drmModeSetPlane{}))
	assert.Equal(t, size(ioctlModePageFlip), unsafe.Sizeof(drmModePageFlip{}))
	assert.Equal(t, size(ioctlModeGetProperty), unsafe.Sizeof(drmModeGetProperty{}))
	assert.Equal(t, size(ioctlModeObjSetProperty), unsafe.Sizeof(drmModeObjSetProperty{}))
	assert.Equal(t, size(ioctlModeCreateDumb), unsafe.Sizeof(drmModeCreateDumb{}))
	assert.Equal(t, size(ioctlModeMapDumb), unsafe.Sizeof(drmModeMapDumb{}))
	assert.Equal(t, size(ioctlModeAddFB), unsafe.Sizeof(drmModeFbCmd{}))
	assert.Equal(t, uintptr(68), unsafe.Sizeof(drmModeInfo{}))
}

func TestVblankType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint32(0x1), vblankType(0))
	assert.Equal(t, uint32(0x20000001), vblankType(1))
	assert.Equal(t, uint32(0x5), vblankType(2))
}

func TestModeFromInfo(t *testing.T) {
	t.Parallel()

	info := drmModeInfo{Hdisplay: 1920, Vdisplay: 1080, Vrefresh: 60}
	copy(info.Name[:], "1920x1080")
	m := modeFromInfo(info, 508, 286)
	assert.Equal(t, Mode{Name: "1920x1080", Width: 1920, Height: 1080, Refresh: 60, DpiX: 96, DpiY: 96}, m)
	assert.Equal(t, "abc", cstring([]byte{'a', 'b', 'c'}))
}
