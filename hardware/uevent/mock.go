package uevent

// Public API to easy create uevent stubs to test your code.

import (
	"time"

	"github.com/juju/errors"
)

type MockSource struct {
	ch      chan mockRead
	stop    chan struct{}
	Timeout time.Duration
}

func NewMockSource() *MockSource {
	return &MockSource{
		ch:      make(chan mockRead, 16),
		stop:    make(chan struct{}),
		Timeout: 10 * time.Millisecond,
	}
}

type mockRead struct {
	b   []byte
	err error
}

func (self *MockSource) Send(b []byte) { self.ch <- mockRead{b: b} }

// Fail makes next Read return err, in order with Send.
func (self *MockSource) Fail(err error) { self.ch <- mockRead{err: err} }

// SendHotplug emits DRM connector change event for device path.
func (self *MockSource) SendHotplug(devpath string) {
	self.Send([]byte("change@" + devpath + "\x00ACTION=change\x00DEVPATH=" + devpath +
		"\x00SUBSYSTEM=drm\x00HOTPLUG=1\x00MINOR=0\x00"))
}

func (self *MockSource) Read() ([]byte, error) {
	select {
	case r := <-self.ch:
		return r.b, r.err
	case <-self.stop:
		return nil, errors.Errorf("mock closed")
	case <-time.After(self.Timeout):
		return nil, errors.Timeoutf("mock recv")
	}
}

func (self *MockSource) Close() error {
	select {
	case <-self.stop:
	default:
		close(self.stop)
	}
	return nil
}
