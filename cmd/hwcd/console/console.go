// Interactive composer console, useful with mock driver or on a spare display.
package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/hwcomposer/cmd/hwcd/subcmd"
	"github.com/temoto/hwcomposer/hardware/plane"
	"github.com/temoto/hwcomposer/hardware/uevent"
	"github.com/temoto/hwcomposer/helpers/cli"
	"github.com/temoto/hwcomposer/internal/display"
	"github.com/temoto/hwcomposer/internal/hwc"
	"github.com/temoto/hwcomposer/internal/scene"
	"github.com/temoto/hwcomposer/internal/state"
)

const modName = "cli"

const usage = `syntax: one command per line
(scene)
- scene D                    print layers of display D
- add D [key=value...]       add layer, keys: pattern format size frame crop rot blend skip target
- rm D I                     remove layer I
- move D I x,y,w,h           change layer frame
- frame [N]                  compose N frames (default 1)
(display)
- configs D                  list display configs
- mode D N                   set active config
- blank D on|off
- toggle                     toggle blank of all displays
- vsync D on|off
- hotplug                    rescan connectors
(info)
- stat | dump | report
`

var Mod = subcmd.Mod{Name: modName, Usage: "interactive composer console", Main: Main}

type console struct {
	g    *state.Global
	c    *hwc.Composer
	show *scene.Show
}

func Main(ctx context.Context, config *state.Config) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)

	c, err := g.Composer()
	if err != nil {
		return err
	}
	mem, err := g.Allocator()
	if err != nil {
		return err
	}
	self := &console{g: g, c: c, show: scene.NewShow(g.Log, c, mem, g.Config.Scenes)}
	if err = self.show.Build(); err != nil {
		g.Log.Error(err)
	}
	if err = g.RegisterProcs(display.Procs{
		Vsync: func(index int, ts int64) {
			g.Log.Debugf("vsync display=%d ts=%d", index, ts)
		},
		Hotplug: func(index int, connected bool) {
			self.show.Invalidate(index)
		},
	}); err != nil {
		return err
	}
	g.Log.Debugf("console init complete")

	cli.MainLoop(modName, self.exec, newCompleter())

	g.StopWait(state.DefaultStopTimeout)
	if err = self.show.Free(); err != nil {
		g.Log.Error(err)
	}
	return g.Close()
}

func newCompleter() func(d prompt.Document) []prompt.Suggest {
	words := []string{"add", "blank", "configs", "dump", "frame", "help", "hotplug",
		"mode", "move", "report", "rm", "scene", "stat", "toggle", "vsync"}
	suggests := make([]prompt.Suggest, 0, len(words))
	for _, w := range words {
		suggests = append(suggests, prompt.Suggest{Text: w})
	}
	return func(d prompt.Document) []prompt.Suggest {
		if strings.Contains(d.TextBeforeCursor(), " ") {
			return nil
		}
		return prompt.FilterHasPrefix(suggests, d.GetWordBeforeCursor(), true)
	}
}

func (self *console) exec(line string) {
	words := strings.Fields(line)
	if len(words) == 0 {
		return
	}
	tbegin := time.Now()
	err := self.run(words[0], words[1:])
	if err != nil {
		self.g.Log.Errorf("%s", errors.ErrorStack(err))
		return
	}
	self.g.Log.Debugf("duration=%v", time.Since(tbegin))
}

func (self *console) run(cmd string, args []string) error {
	switch cmd {
	case "help", "/help":
		fmt.Print(usage)
		return nil
	case "stat":
		fmt.Printf("%+v\n", self.c.Stat())
		return nil
	case "dump":
		fmt.Print(self.c.Dump())
		return nil
	case "report":
		return self.g.Tele.Report()
	case "toggle":
		blank, err := self.c.ToggleBlank()
		self.g.Log.Infof("blank=%t", blank)
		self.g.ReportState()
		return err
	case "hotplug":
		self.c.OnHotplug(uevent.Event{Action: "change", Env: map[string]string{"HOTPLUG": "1"}})
		return nil
	case "frame":
		n := 1
		if len(args) > 0 {
			var err error
			if n, err = strconv.Atoi(args[0]); err != nil {
				return errors.Annotatef(err, "frame count=%s", args[0])
			}
		}
		for i := 0; i < n; i++ {
			if err := self.show.Frame(); err != nil {
				return err
			}
		}
		return nil
	}

	if len(args) == 0 {
		return errors.Errorf("command=%s expected display argument, try help", cmd)
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return errors.Annotatef(err, "display=%s", args[0])
	}
	args = args[1:]
	switch cmd {
	case "scene":
		return self.show.Edit(index, func(s *scene.Scene) error {
			fmt.Print(s.String())
			return nil
		})
	case "add":
		lc, err := parseLayer(args)
		if err != nil {
			return err
		}
		return self.show.Edit(index, func(s *scene.Scene) error { return s.Add(lc) })
	case "rm":
		i, err := argInt(args, 0, "layer")
		if err != nil {
			return err
		}
		return self.show.Edit(index, func(s *scene.Scene) error { return s.Remove(i) })
	case "move":
		i, err := argInt(args, 0, "layer")
		if err != nil {
			return err
		}
		if len(args) < 2 {
			return errors.Errorf("move expected frame x,y,w,h")
		}
		v, err := parseInts(args[1])
		if err != nil || len(v) != 4 {
			return errors.NotValidf("frame=%s", args[1])
		}
		return self.show.Edit(index, func(s *scene.Scene) error {
			return s.Move(i, plane.Rect{X: v[0], Y: v[1], W: v[2], H: v[3]})
		})
	case "configs":
		configs, err := self.c.GetDisplayConfigs(index)
		if err != nil {
			return err
		}
		for i, dc := range configs {
			fmt.Printf("%d: %s\n", i, dc.String())
		}
		return nil
	case "mode":
		config, err := argInt(args, 0, "config")
		if err != nil {
			return err
		}
		if err = self.c.SetActiveConfig(index, config); err != nil {
			return err
		}
		self.show.Invalidate(index)
		return nil
	case "blank":
		on, err := argOnOff(args)
		if err != nil {
			return err
		}
		if err = self.c.Blank(index, on); err != nil {
			return err
		}
		self.g.ReportState()
		return nil
	case "vsync":
		on, err := argOnOff(args)
		if err != nil {
			return err
		}
		return self.c.VsyncControl(index, on)
	}
	return errors.Errorf("unknown command=%s, try help", cmd)
}

func argInt(args []string, i int, name string) (int, error) {
	if i >= len(args) {
		return 0, errors.Errorf("expected %s argument", name)
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, errors.Annotatef(err, "%s=%s", name, args[i])
	}
	return n, nil
}

func argOnOff(args []string) (bool, error) {
	if len(args) == 0 {
		return false, errors.Errorf("expected on|off")
	}
	switch args[0] {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	}
	return false, errors.NotValidf("on|off=%s", args[0])
}

func parseInts(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	v := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		v[i] = n
	}
	return v, nil
}

func parseLayer(args []string) (scene.LayerConfig, error) {
	lc := scene.LayerConfig{}
	for _, arg := range args {
		kv := strings.SplitN(arg, "=", 2)
		key, value := kv[0], ""
		if len(kv) == 2 {
			value = kv[1]
		}
		var err error
		switch key {
		case "pattern":
			lc.Pattern = value
		case "format":
			lc.Format = value
		case "size":
			lc.Size, err = parseInts(value)
		case "frame":
			lc.Frame, err = parseInts(value)
		case "crop":
			lc.Crop, err = parseInts(value)
		case "rot":
			lc.Transform, err = strconv.Atoi(value)
		case "blend":
			lc.Blending = value
		case "skip":
			lc.Skip = true
		case "target":
			lc.Target = true
		default:
			return lc, errors.NotValidf("layer key=%s", key)
		}
		if err != nil {
			return lc, errors.Annotatef(err, "layer %s", arg)
		}
	}
	return lc, nil
}
