package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/hwcomposer/internal/hwc"
	"github.com/temoto/hwcomposer/internal/tele"
	"github.com/temoto/hwcomposer/log2"
)

const (
	DefaultPersistRoot = "./tmp-hwcomposer-db"
	DefaultStopTimeout = 5 * time.Second
)

type Global struct {
	Alive        *alive.Alive
	BuildVersion string
	Config       *Config
	Hardware     hardware // hardware.go
	Log          *log2.Log
	Tele         *tele.Tele

	_copy_guard sync.Mutex //nolint:unused
}

const ContextKey = "run/state-global"

func GetGlobal(ctx context.Context) *Global {
	v := ctx.Value(ContextKey)
	if v == nil {
		panic(fmt.Sprintf("context['%s'] is nil", ContextKey))
	}
	if g, ok := v.(*Global); ok {
		return g
	}
	panic(fmt.Sprintf("context['%s'] expected type *Global actual=%#v", ContextKey, v))
}

// If `Init` fails, consider `Global` is in broken state.
func (g *Global) Init(ctx context.Context, cfg *Config) error {
	g.Config = cfg
	if level, err := log2.ParseLevel(cfg.Log.Level); err == nil && cfg.Log.Level != "" {
		g.Log.SetLevel(level)
	}
	g.Log.Infof("build version=%s", g.BuildVersion)

	if g.Config.Persist.Root == "" {
		g.Config.Persist.Root = DefaultPersistRoot
		g.Log.Errorf("config: persist.root=empty changed=%s", g.Config.Persist.Root)
	}
	g.Log.Debugf("config: persist.root=%s", g.Config.Persist.Root)

	// tele is remote error reporting, init before anything else
	if g.Config.Tele.PersistPath == "" {
		g.Config.Tele.PersistPath = filepath.Join(g.Config.Persist.Root, "tele")
	}
	g.Tele.BuildVersion = g.BuildVersion
	if err := g.Tele.Init(ctx, g.Log, g.Config.Tele); err != nil {
		return errors.Annotate(err, "tele init")
	}
	g.Log.SetErrorFunc(g.Tele.Error)

	if _, err := g.Composer(); err != nil {
		return errors.Annotate(err, "composer")
	}
	return nil
}

func (g *Global) MustInit(ctx context.Context, cfg *Config) {
	if err := g.Init(ctx, cfg); err != nil {
		g.Fatal(err)
	}
}

// Stat implements tele.Source, empty until composer is ready.
func (g *Global) Stat() hwc.Stat {
	x := &g.Hardware.composer
	if !x.done() || x.c == nil {
		return hwc.Stat{}
	}
	return x.c.Stat()
}

func (g *Global) Error(err error, args ...interface{}) {
	if err != nil {
		if len(args) != 0 {
			msg := args[0].(string)
			args = args[1:]
			err = errors.Annotatef(err, msg, args...)
		}
		g.Log.Error(err)
	}
}

func (g *Global) Fatal(err error, args ...interface{}) {
	if err != nil {
		g.Error(err, args...)
		g.StopWait(DefaultStopTimeout)
		g.Log.Fatal(errors.ErrorStack(err))
		os.Exit(1)
	}
}

func (g *Global) Stop() {
	g.Alive.Stop()
}

func (g *Global) StopWait(timeout time.Duration) bool {
	g.Alive.Stop()
	select {
	case <-g.Alive.WaitChan():
		return true
	case <-time.After(timeout):
		return false
	}
}

// Close releases hardware and flushes telemetry. Call after StopWait.
func (g *Global) Close() error {
	err := g.Hardware.close()
	g.Tele.Close()
	return err
}

// TeleCommand executes remote command on composer.
func (g *Global) TeleCommand(ctx context.Context, cmd *tele.Command) error {
	c, err := g.Composer()
	if err != nil {
		return err
	}
	switch cmd.Kind {
	case tele.Command_Blank, tele.Command_Unblank:
		if err = c.Blank(int(cmd.Display), cmd.Kind == tele.Command_Blank); err != nil {
			return err
		}
		g.teleState(c)
		return nil
	}
	return errors.NotSupportedf("command=%s", cmd.Kind)
}

func (g *Global) teleState(c *hwc.Composer) {
	s := tele.State_Work
	devices := c.Devices()
	blanked := len(devices) != 0
	for _, dev := range devices {
		if !dev.Connected() {
			s = tele.State_Disconnected
		}
		blanked = blanked && dev.Blanked()
	}
	if blanked {
		s = tele.State_Blanked
	}
	g.Tele.State(s)
}

// NewGlobal with telemetry client bound to this Global; commands act on its composer.
func NewGlobal(log *log2.Log, buildVersion string) *Global {
	g := &Global{
		Alive:        alive.NewAlive(),
		BuildVersion: buildVersion,
		Log:          log,
	}
	g.Tele = tele.New(g, g.TeleCommand)
	return g
}
