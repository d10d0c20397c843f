package drm

// Public API to easy create display driver stubs to test your code.

import (
	"context"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/hardware/bufmap"
	"github.com/temoto/hwcomposer/hardware/plane"
)

type Mock struct {
	mu         sync.Mutex
	id         uint16
	mem        *bufmap.MockMemory
	connectors map[int]Connector
	modes      map[int]Mode
	blanked    map[int]bool
	commits    map[int][][]plane.Update
	applied    []plane.Update
	closed     bool

	// Vblank, when set, drives WaitVblank. Otherwise it sleeps VblankPeriod.
	Vblank       chan int64
	VblankPeriod time.Duration
	FailDetect   error
	FailCommit   error
	// OnCommit runs before commit is recorded, with pipe argument.
	OnCommit func(pipe int)
}

var _ Driver = new(Mock)

func NewMock(deviceID uint16) *Mock {
	return &Mock{
		id:           deviceID,
		mem:          bufmap.NewMockMemory(),
		connectors:   make(map[int]Connector),
		modes:        make(map[int]Mode),
		blanked:      make(map[int]bool),
		commits:      make(map[int][][]plane.Update),
		VblankPeriod: 16 * time.Millisecond,
	}
}

func (self *Mock) MockMemory() *bufmap.MockMemory { return self.mem }

func (self *Mock) SetConnector(c Connector) {
	self.mu.Lock()
	self.connectors[c.Pipe] = c
	self.mu.Unlock()
}

func (self *Mock) Commits(pipe int) [][]plane.Update {
	self.mu.Lock()
	defer self.mu.Unlock()
	out := make([][]plane.Update, len(self.commits[pipe]))
	copy(out, self.commits[pipe])
	return out
}

func (self *Mock) LastCommit(pipe int) []plane.Update {
	self.mu.Lock()
	defer self.mu.Unlock()
	cs := self.commits[pipe]
	if len(cs) == 0 {
		return nil
	}
	return cs[len(cs)-1]
}

func (self *Mock) Applied() []plane.Update {
	self.mu.Lock()
	defer self.mu.Unlock()
	out := make([]plane.Update, len(self.applied))
	copy(out, self.applied)
	return out
}

// Disables counts immediate (outside of commit) disables of one plane.
func (self *Mock) Disables(t plane.Type, index int) int {
	self.mu.Lock()
	defer self.mu.Unlock()
	n := 0
	for _, u := range self.applied {
		if u.Type == t && u.Index == index && !u.Enabled {
			n++
		}
	}
	return n
}

func (self *Mock) Blanked(pipe int) bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.blanked[pipe]
}

func (self *Mock) Mode(pipe int) Mode {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.modes[pipe]
}

func (self *Mock) DeviceID() uint16      { return self.id }
func (self *Mock) Memory() bufmap.Memory { return self.mem }

func (self *Mock) Detect(pipe int) (Connector, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.FailDetect != nil {
		return Connector{}, self.FailDetect
	}
	c, ok := self.connectors[pipe]
	if !ok {
		return Connector{Pipe: pipe}, nil
	}
	return c, nil
}

func (self *Mock) SetMode(pipe int, m Mode) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if c, ok := self.connectors[pipe]; !ok || !c.Connected {
		return errors.NotFoundf("mock pipe=%d connector", pipe)
	}
	self.modes[pipe] = m
	return nil
}

func (self *Mock) WaitVblank(ctx context.Context, pipe int) (int64, error) {
	if self.Vblank != nil {
		select {
		case ts := <-self.Vblank:
			return ts, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	t := time.NewTimer(self.VblankPeriod)
	defer t.Stop()
	select {
	case now := <-t.C:
		return now.UnixNano(), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (self *Mock) Commit(pipe int, updates []plane.Update) error {
	if self.OnCommit != nil {
		self.OnCommit(pipe)
	}
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.closed {
		return errors.Errorf("mock closed")
	}
	if self.FailCommit != nil {
		return self.FailCommit
	}
	cp := make([]plane.Update, len(updates))
	copy(cp, updates)
	self.commits[pipe] = append(self.commits[pipe], cp)
	return nil
}

func (self *Mock) Apply(u plane.Update) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.applied = append(self.applied, u)
	return nil
}

func (self *Mock) Blank(pipe int, blank bool) error {
	self.mu.Lock()
	self.blanked[pipe] = blank
	self.mu.Unlock()
	return nil
}

func (self *Mock) Close() error {
	self.mu.Lock()
	self.closed = true
	self.mu.Unlock()
	return nil
}
