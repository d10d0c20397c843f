package uevent

import (
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/hwcomposer/log2"
)

const cardPath = "/devices/pci0000:00/0000:00:02.0/drm/card0"

func TestParse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		input  string
		expect Event
		err    func(error) bool
	}{
		{"drm-hotplug",
			"change@" + cardPath + "\x00ACTION=change\x00DEVPATH=" + cardPath + "\x00SUBSYSTEM=drm\x00HOTPLUG=1\x00",
			Event{Action: "change", DevPath: cardPath, Subsystem: "drm",
				Env: map[string]string{"ACTION": "change", "DEVPATH": cardPath, "SUBSYSTEM": "drm", "HOTPLUG": "1"}},
			nil},
		{"header-only", "add@/devices/virtual/mem/null",
			Event{Action: "add", DevPath: "/devices/virtual/mem/null", Env: map[string]string{}},
			nil},
		{"udev", "libudev\x00\xfe\xed\xca\xfe", Event{}, errors.IsNotSupported},
		{"empty", "", Event{}, errors.IsNotValid},
		{"garbage", "change@/x\x00NOEQUALS\x00", Event{}, errors.IsNotValid},
		{"no-devpath", "ACTION=add\x00", Event{}, errors.IsNotValid},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			e, err := Parse([]byte(c.input))
			if c.err != nil {
				require.Error(t, err)
				assert.True(t, c.err(err), err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.expect, e)
		})
	}
}

func TestFilter(t *testing.T) {
	t.Parallel()

	f := Filter{DevPathPrefix: "/devices/pci0000:00/0000:00:02.0/drm", Hotplug: true}
	hot := Event{DevPath: cardPath, Env: map[string]string{"HOTPLUG": "1"}}
	assert.True(t, f.Match(hot))
	assert.False(t, f.Match(Event{DevPath: cardPath, Env: map[string]string{}}))
	assert.False(t, f.Match(Event{DevPath: "/devices/virtual/input/input3", Env: map[string]string{"HOTPLUG": "1"}}))
	assert.True(t, Filter{}.Match(Event{DevPath: "/any", Env: map[string]string{}}))
}

func TestObserver(t *testing.T) {
	t.Parallel()

	src := NewMockSource()
	got := make(chan Event, 4)
	obs := NewObserver(log2.NewTest(t, log2.LDebug), src,
		Filter{DevPathPrefix: "/devices/pci0000:00/0000:00:02.0/drm", Hotplug: true},
		func(e Event) { got <- e })
	require.NoError(t, obs.Start())

	src.Send([]byte("add@/devices/virtual/input/input3\x00ACTION=add\x00"))
	src.Send([]byte("change@" + cardPath + "\x00ACTION=change\x00DEVPATH=" + cardPath + "\x00"))
	src.Send([]byte("libudev\x00xxxx"))
	src.SendHotplug(cardPath)
	select {
	case e := <-got:
		assert.Equal(t, cardPath, e.DevPath)
		assert.Equal(t, "1", e.Env["HOTPLUG"])
	case <-time.After(time.Second):
		t.Fatal("hotplug not delivered")
	}

	require.NoError(t, obs.Stop())
	assert.Len(t, got, 0)
	assert.Error(t, obs.Start())
}

func TestObserverReadErrorRetry(t *testing.T) {
	t.Parallel()

	src := NewMockSource()
	got := make(chan Event, 4)
	obs := NewObserver(log2.NewTest(t, log2.LDebug), src, Filter{Hotplug: true}, func(e Event) { got <- e })
	require.NoError(t, obs.Start())

	src.Fail(errors.New("netlink recv: no buffer space available"))
	src.Fail(errors.New("netlink recv: interrupted system call"))
	src.SendHotplug(cardPath)
	select {
	case e := <-got:
		assert.Equal(t, cardPath, e.DevPath)
	case <-time.After(5 * time.Second):
		t.Fatal("hotplug not delivered after read errors")
	}

	src.SendHotplug(cardPath)
	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("observer stopped after recovery")
	}
	require.NoError(t, obs.Stop())
}
