// Package input delivers key events (power button) to subscribers.
package input

import (
	"fmt"
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/log2"
)

type Key uint16

// Linux input-event-codes.h
const (
	KeyPower   Key = 116
	KeySleep   Key = 142
	KeyWakeUp  Key = 143
	KeyScreen  Key = 0x177
	KeyDisplay Key = 0x1e3 // KEY_DISPLAYTOGGLE
)

type Event struct {
	Source string
	Key    Key
	Up     bool
	Time   int64 // ns
}

func (e Event) String() string {
	state := "down"
	if e.Up {
		state = "up"
	}
	return fmt.Sprintf("%s key=%d %s", e.Source, e.Key, state)
}

// IsBlankToggle reports press of any key that should switch display power.
func (e Event) IsBlankToggle() bool {
	if e.Up {
		return false
	}
	switch e.Key {
	case KeyPower, KeySleep, KeyScreen, KeyDisplay:
		return true
	}
	return false
}

func Drain(ch <-chan Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

type Source interface {
	Read() (Event, error)
	Close() error
	String() string
}

type EventFunc func(Event)
type sub struct {
	name string
	ch   chan<- Event
	fun  EventFunc
	stop <-chan struct{}
}

type Dispatch struct {
	Log  *log2.Log
	bus  chan Event
	mu   sync.Mutex
	subs map[string]*sub
	stop <-chan struct{}
}

func NewDispatch(log *log2.Log, stop <-chan struct{}) *Dispatch {
	return &Dispatch{
		Log:  log,
		bus:  make(chan Event),
		subs: make(map[string]*sub, 4),
		stop: stop,
	}
}

func (self *Dispatch) SubscribeChan(name string, substop <-chan struct{}) chan Event {
	target := make(chan Event)
	self.safeSubscribe(&sub{name: name, ch: target, stop: substop})
	return target
}

func (self *Dispatch) SubscribeFunc(name string, fun EventFunc, substop <-chan struct{}) {
	self.safeSubscribe(&sub{name: name, fun: fun, stop: substop})
}

func (self *Dispatch) Unsubscribe(name string) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if sub, ok := self.subs[name]; ok {
		self.subClose(sub)
	} else {
		panic("code error input sub not found name=" + name)
	}
}

// Run reads sources until stop, blocks.
func (self *Dispatch) Run(sources []Source) {
	for _, source := range sources {
		go self.readSource(source)
	}

	for {
		select {
		case event := <-self.bus:
			handled := false
			self.mu.Lock()
			for _, sub := range self.subs {
				self.subFire(sub, event)
				handled = true
			}
			self.mu.Unlock()
			if !handled {
				self.Log.Debugf("input is not handled event=%s", event.String())
			}

		case <-self.stop:
			Drain(self.bus)
			return
		}
	}
}

func (self *Dispatch) Emit(event Event) {
	select {
	case self.bus <- event:
		self.Log.Debugf("input emit=%s", event.String())
	case <-self.stop:
	}
}

func (self *Dispatch) subFire(sub *sub, event Event) {
	select {
	case <-sub.stop:
		self.subClose(sub)
		return
	default:
	}

	if sub.ch == nil && sub.fun == nil {
		panic(fmt.Sprintf("input sub=%s ch=nil fun=nil", sub.name))
	}
	if sub.fun != nil {
		sub.fun(event)
	}
	if sub.ch != nil {
		select {
		case sub.ch <- event:
		case <-sub.stop:
			self.subClose(sub)
		}
	}
}

func (self *Dispatch) subClose(s *sub) {
	if s.ch != nil {
		close(s.ch)
	}
	delete(self.subs, s.name)
}

func (self *Dispatch) safeSubscribe(s *sub) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if existing, ok := self.subs[s.name]; ok {
		select {
		case <-s.stop:
			panic("code error input subscribe already closed name=" + s.name)
		case <-existing.stop:
			self.subClose(existing)
		default:
			panic("code error input duplicate subscribe name=" + s.name)
		}
	}
	self.subs[s.name] = s
}

// Source read error ends that source only.
func (self *Dispatch) readSource(source Source) {
	tag := source.String()
	for {
		event, err := source.Read()
		if err != nil {
			select {
			case <-self.stop:
			default:
				self.Log.Error(errors.Annotatef(err, "input source=%s", tag))
			}
			return
		}
		self.Emit(event)
	}
}
