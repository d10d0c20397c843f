package persist

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/internal/display"
	"github.com/temoto/hwcomposer/log2"
)

const DisplaysTag = "display"

// Displays remembers active config index per display name.
// Format is one "name=index" line per display.
type Displays struct {
	mu     sync.Mutex
	p      Persist
	active map[string]int
}

var _ display.Store = new(Displays)

// NewDisplays loads previous state. Unreadable state is logged and forgotten.
func NewDisplays(log *log2.Log, root string, enabled bool) (*Displays, error) {
	self := &Displays{active: make(map[string]int)}
	if err := self.p.Init(DisplaysTag, self, root, enabled, log); err != nil {
		return nil, err
	}
	if err := self.p.Load(); err != nil {
		log.Error(errors.Annotate(err, "display config state reset"))
		self.mu.Lock()
		self.active = make(map[string]int)
		self.mu.Unlock()
	}
	return self, nil
}

func (self *Displays) LoadActive(name string) (int, bool) {
	self.mu.Lock()
	defer self.mu.Unlock()
	i, ok := self.active[name]
	return i, ok
}

func (self *Displays) SaveActive(name string, index int) error {
	self.mu.Lock()
	self.active[name] = index
	self.mu.Unlock()
	return self.p.Store()
}

func (self *Displays) MarshalBinary() ([]byte, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	names := make([]string, 0, len(self.active))
	for name := range self.active {
		names = append(names, name)
	}
	sort.Strings(names)
	var buf bytes.Buffer
	for _, name := range names {
		fmt.Fprintf(&buf, "%s=%d\n", name, self.active[name])
	}
	return buf.Bytes(), nil
}

func (self *Displays) UnmarshalBinary(b []byte) error {
	active := make(map[string]int)
	for _, line := range bytes.Split(b, []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		eq := bytes.LastIndexByte(line, '=')
		if eq <= 0 {
			return errors.NotValidf("display state line=%q", line)
		}
		i, err := strconv.Atoi(string(line[eq+1:]))
		if err != nil || i < 0 {
			return errors.NotValidf("display state line=%q", line)
		}
		active[string(line[:eq])] = i
	}
	self.mu.Lock()
	self.active = active
	self.mu.Unlock()
	return nil
}
