package uevent

import (
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/hwcomposer/helpers"
	"github.com/temoto/hwcomposer/log2"
)

// Source blocks for next raw message. Returns Timeout error on receive
// timeout so observer can check for stop.
type Source interface {
	Read() ([]byte, error)
	Close() error
}

type Observer struct {
	backoff helpers.Backoff // atomic align

	alive     *alive.Alive
	log       *log2.Log
	src       Source
	filter    Filter
	onHotplug func(Event)
}

func NewObserver(log *log2.Log, src Source, filter Filter, onHotplug func(Event)) *Observer {
	return &Observer{
		backoff:   helpers.Backoff{Min: 10 * time.Millisecond, Max: time.Second, K: 2},
		alive:     alive.NewAlive(),
		log:       log,
		src:       src,
		filter:    filter,
		onHotplug: onHotplug,
	}
}

func (self *Observer) Start() error {
	if !self.alive.Add(1) {
		return errors.Errorf("uevent observer stopped")
	}
	go self.loop()
	return nil
}

// Stop returns after loop noticed stop, at most one receive timeout later.
func (self *Observer) Stop() error {
	self.alive.Stop()
	self.alive.Wait()
	return self.src.Close()
}

// Read errors other than timeout (ENOBUFS on event storm) are logged
// and retried with backoff, loop ends only on Stop.
func (self *Observer) loop() {
	defer self.alive.Done()
	stopch := self.alive.StopChan()
	for self.backoff.Wait(stopch) {
		b, err := self.src.Read()
		if !self.alive.IsRunning() {
			return
		}
		if err != nil && !errors.IsTimeout(err) {
			self.backoff.Failure()
			self.log.Error(errors.Annotate(err, "uevent read"))
			continue
		}
		self.backoff.Reset()
		if err != nil {
			continue
		}
		e, err := Parse(b)
		if err != nil {
			if !errors.IsNotSupported(err) {
				self.log.Debugf("uevent skip err=%v", err)
			}
			continue
		}
		if !self.filter.Match(e) {
			continue
		}
		self.log.Debugf("uevent hotplug %s", e.String())
		self.onHotplug(e)
	}
}
