package bufmap

import (
	"sort"

	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/helpers"
	"github.com/temoto/hwcomposer/log2"
)

const DefaultCacheCapacity = 16

// Cache holds at most one mapper per handle.
// Not thread-safe, owner (plane) is only used under device lock.
type Cache struct {
	log      *log2.Log
	m        map[Handle]*Mapper
	capacity int
}

func NewCache(log *log2.Log, capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{
		log:      log,
		m:        make(map[Handle]*Mapper, capacity),
		capacity: capacity,
	}
}

func (self *Cache) Get(h Handle) (*Mapper, bool) {
	m, ok := self.m[h]
	return m, ok
}

// Add fails when handle is already cached, callers check with Get first.
// Full cache evicts unreferenced mappers to make room.
func (self *Cache) Add(h Handle, m *Mapper) error {
	if _, ok := self.m[h]; ok {
		return errors.AlreadyExistsf("buffer cache handle=%x", uint64(h))
	}
	if len(self.m) >= self.capacity {
		self.Trim()
	}
	self.m[h] = m
	return nil
}

// Remove unmaps and drops one entry. Referenced mapper is kept and error returned.
func (self *Cache) Remove(h Handle) error {
	m, ok := self.m[h]
	if !ok {
		return errors.NotFoundf("buffer cache handle=%x", uint64(h))
	}
	if m.Refs() != 0 {
		return errors.Errorf("buffer cache remove handle=%x refs=%d", uint64(h), m.Refs())
	}
	delete(self.m, h)
	return m.Unmap()
}

// Clear unconditionally unmaps and drops every entry.
// Only for teardown and mode change, never mid-frame.
func (self *Cache) Clear() error {
	errs := make([]error, 0)
	for h, m := range self.m {
		if refs := m.Refs(); refs != 0 {
			self.log.Debugf("buffer cache clear handle=%x force refs=%d", uint64(h), refs)
			for m.Refs() > 0 {
				m.DecRef()
			}
		}
		if err := m.Unmap(); err != nil {
			errs = append(errs, err)
		}
		delete(self.m, h)
	}
	return helpers.FoldErrors(errs)
}

func (self *Cache) Len() int      { return len(self.m) }
func (self *Cache) Capacity() int { return self.capacity }

func (self *Cache) Handles() []Handle {
	hs := make([]Handle, 0, len(self.m))
	for h := range self.m {
		hs = append(hs, h)
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}

// Forget unmaps entry of handle unless it is referenced.
// False means mapping is still in use, try again later.
func (self *Cache) Forget(h Handle) bool {
	m, ok := self.m[h]
	if !ok {
		return true
	}
	if m.Refs() != 0 {
		return false
	}
	delete(self.m, h)
	if err := m.Unmap(); err != nil {
		self.log.Error(errors.Annotate(err, "buffer cache forget"))
	}
	return true
}

// Trim unmaps every unreferenced entry.
func (self *Cache) Trim() {
	for _, h := range self.Handles() {
		m := self.m[h]
		if m.Refs() != 0 {
			continue
		}
		delete(self.m, h)
		if err := m.Unmap(); err != nil {
			self.log.Error(errors.Annotate(err, "buffer cache evict"))
		}
	}
}
