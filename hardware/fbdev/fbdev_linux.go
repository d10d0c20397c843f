package fbdev

import (
	"os"
	"unsafe"

	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

const (
	ioctlGetVarScreenInfo = 0x4600
	ioctlGetFixScreenInfo = 0x4602
)

// ReadInfo opens device read-only and returns screen info, device is closed after.
func ReadInfo(path string) (*Info, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, os.ModeDevice)
	if err != nil {
		return nil, errors.Annotate(err, "open")
	}
	defer f.Close()
	fd := f.Fd()

	info := &Info{}
	if err = ioctl(fd, ioctlGetFixScreenInfo, unsafe.Pointer(&info.Fix)); err != nil {
		return nil, errors.Annotatef(err, "FBIOGET_FSCREENINFO device=%s", path)
	}
	if err = ioctl(fd, ioctlGetVarScreenInfo, unsafe.Pointer(&info.Var)); err != nil {
		return nil, errors.Annotatef(err, "FBIOGET_VSCREENINFO device=%s", path)
	}
	info.Name = cstring(info.Fix.ID[:])
	return info, nil
}

func ioctl(fd uintptr, cmd uintptr, data unsafe.Pointer) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, cmd, uintptr(data)); errno != 0 {
		return os.NewSyscallError("ioctl", errno)
	}
	return nil
}

func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
