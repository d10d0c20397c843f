package tele

import (
	"context"
	"net/url"
	"time"

	"github.com/256dpi/gomqtt/packet"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/helpers"
	"github.com/temoto/hwcomposer/log2"
)

const (
	DefaultNetworkTimeout = 30 * time.Second
	defaultKeepalive      = 60 * time.Second
)

type transportMqtt struct {
	log       *log2.Log
	m         mqtt.Client
	onMessage MessageFunc
	timeout   time.Duration

	topicConnect string
	topicCommand string
}

func (self *transportMqtt) Init(ctx context.Context, log *log2.Log, config Config, onMessage MessageFunc) error {
	self.log = log
	mqttLog := log.Clone(log2.LInfo)
	if config.MqttLogDebug {
		mqttLog.SetLevel(log2.LDebug)
		mqtt.DEBUG = mqttLog
	}
	mqtt.ERROR = mqttLog
	mqtt.CRITICAL = mqttLog
	mqtt.WARN = mqttLog

	if _, err := url.ParseRequestURI(config.MqttBroker); err != nil {
		return errors.Annotatef(err, "tele broker=%s", config.MqttBroker)
	}

	self.onMessage = onMessage
	self.timeout = helpers.IntSecondDefault(config.NetworkTimeoutSec, DefaultNetworkTimeout)
	if self.timeout < time.Second {
		self.timeout = time.Second
	}
	self.topicConnect = config.ClientID + "/c"
	self.topicCommand = TopicCommand(config.ClientID)
	keepalive := helpers.IntSecondDefault(config.KeepaliveSec, defaultKeepalive)

	opt := mqtt.NewClientOptions().
		AddBroker(config.MqttBroker).
		SetBinaryWill(self.topicConnect, []byte{0x00}, 1, true).
		SetClientID(config.ClientID).
		SetUsername(config.ClientID).
		SetPassword(config.MqttPassword).
		SetDefaultPublishHandler(self.messageHandler).
		SetKeepAlive(keepalive).
		SetPingTimeout(self.timeout).
		SetOrderMatters(false).
		SetCleanSession(false).
		SetResumeSubs(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(self.timeout / 2).
		SetOnConnectHandler(self.onConnectHandler).
		SetConnectionLostHandler(self.connectLostHandler)
	self.m = mqtt.NewClient(opt)
	// connect retries in background
	if token := self.m.Connect(); token.Error() != nil {
		self.log.Errorf("tele mqtt connect err=%v", token.Error())
	}
	return nil
}

func (self *transportMqtt) Publish(msg *packet.Message) bool {
	if !self.m.IsConnected() {
		return false
	}
	token := self.m.Publish(msg.Topic, byte(msg.QOS), msg.Retain, msg.Payload)
	if !token.WaitTimeout(self.timeout) {
		self.log.Debugf("tele mqtt publish topic=%s timeout", msg.Topic)
		return false
	}
	if err := token.Error(); err != nil {
		self.log.Error(errors.Annotatef(err, "tele mqtt publish topic=%s", msg.Topic))
		return false
	}
	return true
}

func (self *transportMqtt) Close() {
	if self.m == nil {
		return
	}
	if token := self.m.Unsubscribe(self.topicCommand); token.WaitTimeout(self.timeout) && token.Error() != nil {
		self.log.Errorf("tele mqtt unsubscribe err=%v", token.Error())
	}
	self.m.Publish(self.topicConnect, 1, true, []byte{0x00}).WaitTimeout(self.timeout)
	self.m.Disconnect(uint(self.timeout / time.Millisecond))
}

func (self *transportMqtt) messageHandler(c mqtt.Client, msg mqtt.Message) {
	self.onMessage(&packet.Message{
		Topic:   msg.Topic(),
		Payload: msg.Payload(),
		QOS:     packet.QOS(msg.Qos()),
		Retain:  msg.Retained(),
	})
}

func (self *transportMqtt) connectLostHandler(c mqtt.Client, err error) {
	self.log.Infof("tele mqtt connection lost err=%v", err)
}

func (self *transportMqtt) onConnectHandler(c mqtt.Client) {
	self.log.Infof("tele mqtt connected")
	if token := c.Subscribe(self.topicCommand, 1, nil); token.Wait() && token.Error() != nil {
		self.log.Errorf("tele mqtt subscribe topic=%s err=%v", self.topicCommand, token.Error())
		return
	}
	c.Publish(self.topicConnect, 1, true, []byte{0x01})
}
