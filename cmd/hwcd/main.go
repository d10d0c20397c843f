package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
	"github.com/temoto/hwcomposer/cmd/hwcd/console"
	"github.com/temoto/hwcomposer/cmd/hwcd/run"
	"github.com/temoto/hwcomposer/cmd/hwcd/subcmd"
	"github.com/temoto/hwcomposer/cmd/hwcd/tele"
	"github.com/temoto/hwcomposer/internal/state"
	state_new "github.com/temoto/hwcomposer/internal/state/new"
	"github.com/temoto/hwcomposer/log2"
)

var log = log2.NewStderr(log2.LDebug)
var modules = []subcmd.Mod{
	run.Mod,
	console.Mod,
	tele.Mod,
}

// set by linker -X main.BuildVersion
var BuildVersion string = "unknown"

func main() {
	flags := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagConfig := flags.String("config", "hwcd.hcl", "")
	flagVersion := flags.Bool("version", false, "print build version and exit")
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: %s [option] command\n\nCommands:\n%s\nOptions:\n", os.Args[0], subcmd.Usage(modules))
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		log.Fatal(err)
	}
	if *flagVersion {
		fmt.Println(BuildVersion)
		return
	}

	command := flags.Arg(0)
	if command == "" {
		command = run.Mod.Name
	}
	mod, err := subcmd.Parse(command, modules)
	if err != nil {
		flags.Usage()
		log.Fatal(err)
	}

	if subcmd.SdNotify("start") || !isatty.IsTerminal(os.Stderr.Fd()) {
		// systemd journal or pipe, remove timestamp
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}

	log.Debugf("hwcd version=%s starting %s", BuildVersion, mod.Name)
	config := state.MustReadConfig(log, state.NewOsFullReader(), *flagConfig)

	ctx, g := state_new.NewContext(log, BuildVersion)
	if err := mod.Main(ctx, config); err != nil {
		g.Fatal(errors.Annotate(err, mod.Name))
	}
	g.Log.Debugf("%s finished", mod.Name)
}
