package tele

import (
	"context"
	"time"

	"github.com/256dpi/gomqtt/packet"
	"github.com/golang/protobuf/proto"
	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/internal/hwc"
)

//go:generate protoc --go_out=paths=source_relative:./ report.proto

const logMsgDisabled = "tele disabled"

// Report queues current composition statistics.
func (self *Tele) Report() error {
	if !self.ready() {
		self.log.Debugf(logMsgDisabled)
		return nil
	}
	r := self.newReport()
	if self.source != nil {
		fillReport(r, self.source.Stat())
	}
	err := self.qpushTagProto(qReport, r)
	if err != nil {
		self.log.Errorf("CRITICAL tele report=%s err=%v", r.String(), err)
	}
	return err
}

// Error is suitable for log2.SetErrorFunc.
func (self *Tele) Error(e error) {
	if !self.ready() {
		self.log.Debugf(logMsgDisabled)
		return
	}
	self.log.Debugf("tele.Error: %s", errors.ErrorStack(e))
	r := self.newReport()
	r.Error = &Report_Error{Message: e.Error()}
	if err := self.qpushTagProto(qReport, r); err != nil {
		self.log.Errorf("CRITICAL tele error=%v err=%v", e, err)
	}
}

// State is sent immediately when changed, without queue.
func (self *Tele) State(s State) {
	if !self.ready() {
		return
	}
	self.mu.Lock()
	changed := self.state != s
	self.state = s
	self.mu.Unlock()
	if changed {
		msg := &packet.Message{
			Topic:   TopicState(self.config.ClientID),
			Payload: []byte{byte(s)},
			QOS:     packet.QOSAtMostOnce,
			Retain:  true,
		}
		go self.transport.Publish(msg)
	}
}

func (self *Tele) newReport() *Report {
	self.mu.Lock()
	state := self.state
	self.mu.Unlock()
	return &Report{
		ClientId:     self.config.ClientID,
		Time:         time.Now().UnixNano(),
		BuildVersion: self.BuildVersion,
		State:        state,
	}
}

func fillReport(r *Report, s hwc.Stat) {
	r.Frames = s.Frames
	r.Displays = make([]*DisplayStat, 0, len(s.Displays))
	for _, d := range s.Displays {
		r.Displays = append(r.Displays, &DisplayStat{
			Name:          d.Name,
			Connected:     d.Connected,
			Blanked:       d.Blanked,
			Frames:        d.Frames,
			Skipped:       d.Skipped,
			CommitErrors:  d.CommitErrors,
			Vsyncs:        d.Vsyncs,
			Hotplugs:      d.Hotplugs,
			Rebuilds:      d.Layers.Rebuilds,
			Checks:        d.Layers.Checks,
			CheckFailures: d.Layers.CheckFailures,
			PlaneLayers:   d.Layers.PlaneLayers,
			FbLayers:      d.Layers.FbLayers,
			MapFailures:   d.Layers.MapFailures,
		})
	}
}

func (self *Tele) onMessage(ctx context.Context, msg *packet.Message) {
	if msg.Topic != TopicCommand(self.config.ClientID) {
		self.log.Errorf("tele unexpected topic=%s payload=%x", msg.Topic, msg.Payload)
		return
	}
	cmd := new(Command)
	if err := proto.Unmarshal(msg.Payload, cmd); err != nil {
		self.log.Errorf("tele command parse raw=%x err=%v", msg.Payload, err)
		return
	}
	self.log.Debugf("tele command %s", cmd.String())

	var err error
	if cmd.Deadline != 0 && time.Now().UnixNano() > cmd.Deadline {
		err = errors.Errorf("deadline")
	} else {
		err = self.dispatchCommand(ctx, cmd)
	}
	self.reply(cmd, err)
}

func (self *Tele) dispatchCommand(ctx context.Context, cmd *Command) error {
	switch cmd.Kind {
	case Command_Report:
		return errors.Annotate(self.Report(), "command report")
	case Command_Noop:
		return nil
	}
	if self.onCommand == nil {
		return errors.NotSupportedf("command=%s", cmd.Kind)
	}
	return self.onCommand(ctx, cmd)
}

func (self *Tele) reply(cmd *Command, e error) {
	r := &Response{CommandId: cmd.Id}
	if e != nil {
		r.Error = e.Error()
	}
	if err := self.qpushTagProto(qResponse, r); err != nil {
		self.log.Errorf("CRITICAL tele command=%s response=%s err=%v", cmd.String(), r.String(), err)
	}
}
