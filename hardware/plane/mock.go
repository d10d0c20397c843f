package plane

// Public API to easy create plane programming stubs to test your code.

import (
	"fmt"
	"sync"
)

type MockProgrammer struct {
	mu      sync.Mutex
	Applied []Update
	Fail    error
}

var _ Programmer = new(MockProgrammer)

func (self *MockProgrammer) Apply(u Update) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.Fail != nil {
		return self.Fail
	}
	self.Applied = append(self.Applied, u)
	return nil
}

// Disables counts immediate disable programming of one plane.
func (self *MockProgrammer) Disables(t Type, index int) int {
	self.mu.Lock()
	defer self.mu.Unlock()
	n := 0
	for _, u := range self.Applied {
		if u.Type == t && u.Index == index && !u.Enabled {
			n++
		}
	}
	return n
}

func (self *MockProgrammer) Reset() {
	self.mu.Lock()
	self.Applied = nil
	self.mu.Unlock()
}

func (self *MockProgrammer) String() string {
	self.mu.Lock()
	defer self.mu.Unlock()
	return fmt.Sprintf("mock programmer applied=%d", len(self.Applied))
}
