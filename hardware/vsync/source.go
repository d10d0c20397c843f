package vsync

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/errors"
	gpio "github.com/temoto/gpio-cdev-go"
	"github.com/temoto/hwcomposer/hardware/drm"
	"github.com/temoto/hwcomposer/helpers"
)

type drmSource struct {
	drv  drm.Driver
	pipe int
}

// NewDrmSource waits on kernel vblank counter of pipe.
func NewDrmSource(drv drm.Driver, pipe int) Source { return &drmSource{drv: drv, pipe: pipe} }

func (self *drmSource) Wait(ctx context.Context) (int64, error) {
	return self.drv.WaitVblank(ctx, self.pipe)
}
func (self *drmSource) Close() error   { return nil }
func (self *drmSource) String() string { return fmt.Sprintf("drm-vblank pipe=%d", self.pipe) }

// TE (tearing effect) line of command mode panels pulses once per frame.
type gpioSource struct {
	name   string
	chip   gpio.Chiper
	ev     gpio.Eventer
	poll   time.Duration
	rising bool
}

const gpioPoll = 100 * time.Millisecond

func OpenGpioSource(chipPath string, line uint32) (Source, error) {
	chip, err := gpio.Open(chipPath, "hwc-te")
	if err != nil {
		return nil, errors.Annotatef(err, "TE open chip=%s", chipPath)
	}
	ev, err := chip.GetLineEvent(line, 0, gpio.GPIOEVENT_REQUEST_RISING_EDGE, "hwc-te")
	if err != nil {
		_ = chip.Close()
		return nil, errors.Annotatef(err, "TE chip=%s line=%d", chipPath, line)
	}
	return NewEventSource(fmt.Sprintf("te chip=%s line=%d", chipPath, line), chip, ev), nil
}

// NewEventSource over already requested GPIO line event. chip may be nil.
func NewEventSource(name string, chip gpio.Chiper, ev gpio.Eventer) Source {
	return &gpioSource{name: name, chip: chip, ev: ev, poll: gpioPoll}
}

func (self *gpioSource) Wait(ctx context.Context) (int64, error) {
	for {
		edge, err := self.ev.Wait(self.poll)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		if err != nil {
			if gpio.IsTimeout(err) || errors.IsTimeout(err) {
				continue
			}
			return 0, err
		}
		if edge.ID != gpio.GPIOEVENT_EVENT_RISING_EDGE {
			continue
		}
		return int64(edge.Timestamp), nil
	}
}

func (self *gpioSource) Close() error {
	errs := []error{self.ev.Close()}
	if self.chip != nil {
		errs = append(errs, self.chip.Close())
	}
	return helpers.FoldErrors(errs)
}
func (self *gpioSource) String() string { return self.name }

// Software vsync, used when display has no hardware source.
type timerSource struct {
	period time.Duration
	next   time.Time
}

func NewTimerSource(period time.Duration) Source {
	if period <= 0 {
		period = time.Second / 60
	}
	return &timerSource{period: period}
}

func (self *timerSource) Wait(ctx context.Context) (int64, error) {
	now := time.Now()
	if self.next.IsZero() || self.next.Before(now) {
		// missed periods are dropped
		self.next = now.Add(self.period)
	}
	t := time.NewTimer(self.next.Sub(now))
	defer t.Stop()
	select {
	case <-t.C:
		ts := self.next
		self.next = self.next.Add(self.period)
		return ts.UnixNano(), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
func (self *timerSource) Close() error   { return nil }
func (self *timerSource) String() string { return fmt.Sprintf("timer period=%s", self.period) }
