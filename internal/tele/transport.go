package tele

import (
	"context"

	"github.com/256dpi/gomqtt/packet"
	"github.com/temoto/hwcomposer/log2"
)

// Transporter contract:
// - Init fails only with invalid config, network errors are ignored
// - Publish delivers within network timeout or returns false, caller retries
// - application may start without network available
type Transporter interface {
	Init(ctx context.Context, log *log2.Log, config Config, onMessage MessageFunc) error
	Publish(msg *packet.Message) bool
	Close()
}

type MessageFunc func(*packet.Message)
