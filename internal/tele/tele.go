// Package tele reports composition statistics and errors over MQTT.
// Messages go through persistent queue first, network may be slow or absent.
package tele

import (
	"context"
	"sync"
	"time"

	"github.com/256dpi/gomqtt/packet"
	"github.com/golang/protobuf/proto"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/hwcomposer/helpers"
	"github.com/temoto/hwcomposer/internal/hwc"
	"github.com/temoto/hwcomposer/log2"
	"github.com/temoto/spq"
)

const DefaultReportInterval = 5 * time.Minute

// Source of composition statistics, usually *hwc.Composer.
type Source interface {
	Stat() hwc.Stat
}

type CommandFunc func(ctx context.Context, cmd *Command) error

// Tele contract:
// - Init fails only with invalid config, network issues ignored
// - Report/Error/State block at most for disk write
// - Close blocks until queue worker is finished, undelivered messages stay on disk
// - Report/Response messages delivered at least once
// - State messages may be lost
type Tele struct { //nolint:maligned
	config    Config
	log       *log2.Log
	alive     *alive.Alive
	transport Transporter
	q         *spq.Queue
	backoff   helpers.Backoff
	source    Source
	onCommand CommandFunc

	BuildVersion string

	mu    sync.Mutex
	state State
	sent  uint64
}

func New(source Source, onCommand CommandFunc) *Tele {
	return &Tele{source: source, onCommand: onCommand}
}

func NewWithTransporter(trans Transporter, source Source, onCommand CommandFunc) *Tele {
	return &Tele{transport: trans, source: source, onCommand: onCommand}
}

func (self *Tele) Init(ctx context.Context, log *log2.Log, config Config) error {
	self.config = config
	// own error sink, errors of tele must not loop back into tele
	self.log = log.Clone(log2.LInfo)
	if config.LogDebug {
		self.log.SetLevel(log2.LDebug)
	}
	if !config.Enabled {
		return nil
	}
	if config.ClientID == "" {
		return errors.NotValidf("tele client_id empty")
	}
	if config.PersistPath == "" {
		return errors.NotValidf("tele persist_path empty")
	}

	// test code sets .transport
	if self.transport == nil {
		self.transport = &transportMqtt{}
	}
	if err := self.transport.Init(ctx, self.log, config, func(msg *packet.Message) { self.onMessage(ctx, msg) }); err != nil {
		return errors.Annotate(err, "tele transport")
	}

	var err error
	self.q, err = spq.Open(config.PersistPath)
	if err != nil {
		return errors.Annotate(err, "tele queue")
	}
	self.backoff = helpers.Backoff{Min: 100 * time.Millisecond, Max: helpers.IntSecondDefault(config.NetworkTimeoutSec, DefaultNetworkTimeout), K: 2}
	self.alive = alive.NewAlive()
	self.alive.Add(2)
	go self.qworker()
	go self.reporter(helpers.IntSecondDefault(config.ReportSec, DefaultReportInterval))
	self.State(State_Boot)
	return nil
}

func (self *Tele) Enabled() bool { return self.config.Enabled }

func (self *Tele) ready() bool { return self.config.Enabled && self.q != nil }

func (self *Tele) Close() {
	if !self.config.Enabled || self.alive == nil {
		return
	}
	self.alive.Stop()
	if err := self.q.Close(); err != nil {
		self.log.Errorf("tele queue close err=%v", err)
	}
	self.alive.Wait()
	self.transport.Close()
}

// Sent counts messages acknowledged by transport.
func (self *Tele) Sent() uint64 {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.sent
}

// value kind in persistent queue bytes
const (
	qReport   byte = 1
	qResponse byte = 2
)

func (self *Tele) qworker() {
	defer self.alive.Done()
	for {
		box, err := self.q.Peek()
		switch err {
		case nil:
			b := box.Bytes()
			del, err := self.qhandle(b)
			if err != nil {
				self.log.Errorf("tele qhandle b=%x err=%v", b, err)
			}
			if del {
				err = self.q.Delete(box)
			} else {
				err = self.q.DeletePush(box)
			}
			if err != nil {
				self.log.Errorf("tele queue del=%t b=%x err=%v", del, b, err)
			}
			self.backoff.Update(del)
			if !self.backoff.Wait(self.alive.StopChan()) {
				return
			}

		case spq.ErrClosed:
			if self.alive.IsRunning() {
				self.log.Errorf("CRITICAL tele queue closed unexpectedly")
			}
			return

		default:
			self.log.Errorf("CRITICAL tele queue err=%v", err)
			select {
			case <-time.After(time.Second):
			case <-self.alive.StopChan():
				return
			}
		}
	}
}

// qhandle returns true when item must be removed from queue.
func (self *Tele) qhandle(b []byte) (bool, error) {
	if len(b) == 0 {
		return true, errors.NotValidf("tele queue item empty")
	}
	msg := &packet.Message{QOS: packet.QOSAtLeastOnce, Payload: b[1:]}
	switch b[0] {
	case qReport:
		msg.Topic = TopicReport(self.config.ClientID)
		msg.Retain = true
	case qResponse:
		msg.Topic = TopicResponse(self.config.ClientID, "cr")
	default:
		return true, errors.NotValidf("tele queue kind=%d", b[0])
	}
	if !self.transport.Publish(msg) {
		return false, nil
	}
	self.mu.Lock()
	self.sent++
	self.mu.Unlock()
	return true, nil
}

func (self *Tele) qpushTagProto(tag byte, pb proto.Message) error {
	buf := proto.NewBuffer(make([]byte, 0, 256))
	if err := buf.EncodeVarint(uint64(tag)); err != nil {
		return err
	}
	if err := buf.Marshal(pb); err != nil {
		return err
	}
	return self.q.Push(buf.Bytes())
}

func (self *Tele) reporter(interval time.Duration) {
	defer self.alive.Done()
	tmr := time.NewTicker(interval)
	defer tmr.Stop()
	for {
		select {
		case <-tmr.C:
			if err := self.Report(); err != nil {
				self.log.Error(errors.Annotate(err, "tele periodic report"))
			}
		case <-self.alive.StopChan():
			return
		}
	}
}
