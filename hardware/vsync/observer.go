// Package vsync delivers vertical sync events of one display to a callback.
package vsync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/atomic_clock"
	"github.com/temoto/hwcomposer/helpers"
	"github.com/temoto/hwcomposer/log2"
)

// Source blocks until next vsync, returns its timestamp in nanoseconds.
type Source interface {
	Wait(ctx context.Context) (int64, error)
	Close() error
	String() string
}

type Func func(ts int64)

const DefaultIdleWait = 1 * time.Second

type Observer struct {
	// atomic align
	count   uint64
	last    atomic_clock.Clock
	backoff helpers.Backoff

	alive   *alive.Alive
	log     *log2.Log
	src     Source
	onVsync Func

	mu      sync.Mutex
	enabled bool
	wake    chan struct{}

	// IdleWait bounds sleep while disabled, loop re-checks state after it.
	IdleWait time.Duration
}

func NewObserver(log *log2.Log, src Source, onVsync Func) *Observer {
	return &Observer{
		alive:    alive.NewAlive(),
		log:      log,
		src:      src,
		onVsync:  onVsync,
		wake:     make(chan struct{}, 1),
		backoff:  helpers.Backoff{Min: 10 * time.Millisecond, Max: time.Second, K: 2},
		IdleWait: DefaultIdleWait,
	}
}

func (self *Observer) Start() error {
	if !self.alive.Add(1) {
		return errors.Errorf("vsync observer %s stopped", self.src.String())
	}
	go self.loop()
	return nil
}

// Control enables or disables delivery. Returns previous state.
func (self *Observer) Control(enable bool) bool {
	self.mu.Lock()
	prev := self.enabled
	self.enabled = enable
	self.mu.Unlock()
	if prev != enable {
		select {
		case self.wake <- struct{}{}:
		default:
		}
	}
	return prev
}

func (self *Observer) Enabled() bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.enabled
}

// Last delivered vsync timestamp, 0 before first.
func (self *Observer) Last() int64   { return self.last.UnixNano() }
func (self *Observer) Count() uint64 { return atomic.LoadUint64(&self.count) }

func (self *Observer) String() string { return self.src.String() }

// Stop signals loop, waits for it and closes source.
func (self *Observer) Stop() error {
	self.alive.Stop()
	self.alive.Wait()
	return self.src.Close()
}

func (self *Observer) loop() {
	defer self.alive.Done()
	stopch := self.alive.StopChan()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stopch:
			cancel()
		case <-ctx.Done():
		}
	}()

	idle := time.NewTimer(self.IdleWait)
	defer idle.Stop()
	for self.alive.IsRunning() {
		if !self.Enabled() {
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(self.IdleWait)
			select {
			case <-self.wake:
			case <-idle.C:
			case <-stopch:
				return
			}
			continue
		}

		if d := self.backoff.DelayBefore(); d != 0 {
			select {
			case <-time.After(d):
			case <-stopch:
				return
			}
		}
		ts, err := self.src.Wait(ctx)
		if ctx.Err() != nil {
			return
		}
		self.backoff.Update(err == nil)
		if err != nil {
			self.log.Error(errors.Annotatef(err, "vsync %s", self.src.String()))
			continue
		}
		// disabled while waiting
		if !self.Enabled() {
			continue
		}
		self.last.Set(ts)
		atomic.AddUint64(&self.count, 1)
		self.onVsync(ts)
	}
}
