// Package uevent watches kernel object events for display hotplug.
package uevent

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/juju/errors"
)

type Event struct {
	Action    string
	DevPath   string
	Subsystem string
	Env       map[string]string
}

func (e Event) String() string {
	keys := make([]string, 0, len(e.Env))
	for k := range e.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "%s@%s", e.Action, e.DevPath)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, e.Env[k])
	}
	return b.String()
}

var udevMagic = []byte("libudev\x00")

// Parse kernel uevent message: "action@devpath\0KEY=VALUE\0...".
// Messages rebroadcast by udev are rejected as NotSupported.
func Parse(b []byte) (Event, error) {
	if bytes.HasPrefix(b, udevMagic) {
		return Event{}, errors.NotSupportedf("udev message")
	}
	fields := bytes.Split(bytes.TrimRight(b, "\x00"), []byte{0})
	if len(fields) == 0 || len(fields[0]) == 0 {
		return Event{}, errors.NotValidf("uevent empty")
	}
	e := Event{Env: make(map[string]string, len(fields))}
	for i, f := range fields {
		kv := string(f)
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			if i == 0 {
				if at := strings.IndexByte(kv, '@'); at > 0 {
					e.Action, e.DevPath = kv[:at], kv[at+1:]
					continue
				}
			}
			return Event{}, errors.NotValidf("uevent field=%q", kv)
		}
		e.Env[kv[:eq]] = kv[eq+1:]
	}
	if v, ok := e.Env["ACTION"]; ok {
		e.Action = v
	}
	if v, ok := e.Env["DEVPATH"]; ok {
		e.DevPath = v
	}
	e.Subsystem = e.Env["SUBSYSTEM"]
	if e.Action == "" || e.DevPath == "" {
		return Event{}, errors.NotValidf("uevent without action or devpath")
	}
	return e, nil
}

// Filter selects display hotplug events.
type Filter struct {
	DevPathPrefix string
	// Hotplug requires HOTPLUG=1, set by DRM on connector change.
	Hotplug bool
}

func (f Filter) Match(e Event) bool {
	if !strings.HasPrefix(e.DevPath, f.DevPathPrefix) {
		return false
	}
	if f.Hotplug && e.Env["HOTPLUG"] != "1" {
		return false
	}
	return true
}
