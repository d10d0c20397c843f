package uevent

import (
	"time"

	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

const recvSize = 8 << 10

type netlinkSource struct {
	fd  int
	buf []byte
}

// OpenNetlink subscribes to kernel uevent broadcast group.
// timeout bounds each Read, 0 blocks forever.
func OpenNetlink(timeout time.Duration) (Source, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, errors.Annotate(err, "netlink socket")
	}
	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: 1}
	if err = unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, errors.Annotate(err, "netlink bind")
	}
	if timeout > 0 {
		tv := unix.NsecToTimeval(timeout.Nanoseconds())
		if err = unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
			unix.Close(fd)
			return nil, errors.Annotate(err, "netlink SO_RCVTIMEO")
		}
	}
	return &netlinkSource{fd: fd, buf: make([]byte, recvSize)}, nil
}

func (self *netlinkSource) Read() ([]byte, error) {
	for {
		n, _, err := unix.Recvfrom(self.fd, self.buf, 0)
		switch err {
		case nil:
			out := make([]byte, n)
			copy(out, self.buf[:n])
			return out, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return nil, errors.Timeoutf("netlink recv")
		}
		return nil, errors.Annotate(err, "netlink recv")
	}
}

func (self *netlinkSource) Close() error { return unix.Close(self.fd) }
