// Composition daemon: shows configured scenes on every display,
// frames are paced by vsync of primary display.
package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/cmd/hwcd/subcmd"
	"github.com/temoto/hwcomposer/hardware/input"
	"github.com/temoto/hwcomposer/internal/scene"
	"github.com/temoto/hwcomposer/internal/state"
)

var Mod = subcmd.Mod{Name: "run", Usage: "composition daemon (default)", Main: Main}

func Main(ctx context.Context, config *state.Config) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)
	g.Log.Debugf("config=%+v", g.Config)

	c, err := g.Composer()
	if err != nil {
		return err
	}
	mem, err := g.Allocator()
	if err != nil {
		return err
	}
	show := scene.NewShow(g.Log, c, mem, g.Config.Scenes)
	if err = show.Build(); err != nil {
		return errors.Annotate(err, "scene")
	}
	if err = g.RegisterProcs(show.Procs()); err != nil {
		return err
	}
	for _, dev := range c.Devices() {
		if err = dev.VsyncControl(true); err != nil {
			g.Log.Error(errors.Annotatef(err, "display=%s vsync", dev.Name()))
		}
	}
	if _, err = g.Hotplug(); err != nil {
		return err
	}
	in, err := g.Input()
	if err != nil {
		return err
	}
	in.SubscribeFunc("blank", func(e input.Event) {
		if !e.IsBlankToggle() {
			return
		}
		blank, err := c.ToggleBlank()
		g.Log.Infof("input %s blank=%t", e.String(), blank)
		if err != nil {
			g.Error(err)
		}
		if !blank {
			show.Kick()
		}
		g.ReportState()
	}, g.Alive.StopChan())

	if !g.Alive.Add(1) {
		return errors.Errorf("stopped before frame loop")
	}
	go func() {
		defer g.Alive.Done()
		show.Run(g.Alive.StopChan())
	}()
	// first frame without waiting for vsync
	show.Kick()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigch:
			g.Log.Infof("signal=%v stopping", sig)
			g.Stop()
		case <-g.Alive.StopChan():
		}
	}()

	subcmd.SdNotify(daemon.SdNotifyReady)
	g.ReportState()
	if err = g.Tele.Report(); err != nil {
		g.Log.Error(err)
	}
	g.Log.Infof("hwcd running displays=%d", len(c.Devices()))

	<-g.Alive.StopChan()
	subcmd.SdNotify(daemon.SdNotifyStopping)
	signal.Stop(sigch)
	for _, dev := range c.Devices() {
		_ = dev.VsyncControl(false)
	}
	if !g.StopWait(state.DefaultStopTimeout) {
		g.Log.Errorf("stop timeout=%v", state.DefaultStopTimeout)
	}
	if err = show.Free(); err != nil {
		g.Log.Error(errors.Annotate(err, "scene free"))
	}
	return g.Close()
}
