package input

import (
	"io"
	"os"

	"github.com/juju/errors"
	"github.com/temoto/inputevent-go"
)

const DevInputEventTag = "dev-input-event"

const evKey = 0x01

type DevInputEventSource struct {
	name string
	f    io.ReadCloser
}

var _ Source = new(DevInputEventSource)

func NewDevInputEventSource(device string) (*DevInputEventSource, error) {
	f, err := os.Open(device)
	if err != nil {
		return nil, errors.Annotatef(err, "input device=%s", device)
	}
	return NewReaderSource(DevInputEventTag+":"+device, f), nil
}

// NewReaderSource parses struct input_event stream from r.
func NewReaderSource(name string, r io.ReadCloser) *DevInputEventSource {
	return &DevInputEventSource{name: name, f: r}
}

func (self *DevInputEventSource) String() string { return self.name }
func (self *DevInputEventSource) Close() error   { return self.f.Close() }

// Read returns key press and release, autorepeat and other event types are skipped.
func (self *DevInputEventSource) Read() (Event, error) {
	for {
		ie, err := inputevent.ReadOne(self.f)
		if err != nil {
			return Event{}, err
		}
		if ie.Type != evKey || ie.Value == int32(inputevent.KeyStateHold) {
			continue
		}
		return Event{
			Source: DevInputEventTag,
			Key:    Key(ie.Code),
			Up:     ie.Value == int32(inputevent.KeyStateUp),
			Time:   ie.Time.Nano(),
		}, nil
	}
}
