// touchfwd reads two MPR121 touch controllers over I2C and forwards
// touched bitmaps and filtered values to telemetry collector over TCP.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/graspkit/touchfwd/internal/forwarder"
	"github.com/graspkit/touchfwd/internal/state"
	"github.com/graspkit/touchfwd/log2"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
)

const defaultConfigPath = "touchfwd.hcl"

var BuildVersion string = "unknown" // set by ldflags -X

type options struct {
	config   string
	debug    bool
	help     bool
	host     string
	port     int
	timerMs  int
	explicit map[string]bool
}

func parseArgs(args []string, output io.Writer) (*options, error) {
	o := &options{explicit: make(map[string]bool)}
	fs := flag.NewFlagSet("touchfwd", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&o.host, "h", "", "collector host, short for -host")
	fs.StringVar(&o.host, "host", "", "collector host (default 192.168.88.40)")
	fs.IntVar(&o.port, "p", 0, "collector port, short for -port")
	fs.IntVar(&o.port, "port", 0, "collector port 1..65535 (default 4620)")
	fs.IntVar(&o.timerMs, "t", 0, "sampling interval ms, short for -timer")
	fs.IntVar(&o.timerMs, "timer", 0, "sampling interval ms 1..10000 (default 20)")
	fs.StringVar(&o.config, "config", defaultConfigPath, "config file, .hcl or .yaml")
	fs.BoolVar(&o.debug, "debug", false, "debug logging")
	fs.BoolVar(&o.help, "help", false, "show usage")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 0 {
		return nil, errors.NotValidf("unexpected arguments %v", fs.Args())
	}
	if o.help {
		fs.Usage()
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "h":
			o.explicit["host"] = true
		case "p":
			o.explicit["port"] = true
		case "t":
			o.explicit["timer"] = true
		default:
			o.explicit[f.Name] = true
		}
	})
	return o, nil
}

// apply overrides config values with explicitly set flags.
func (o *options) apply(c *state.Config) {
	if o.explicit["host"] {
		c.Collector.Host = o.host
	}
	if o.explicit["port"] {
		c.Collector.Port = o.port
	}
	if o.explicit["timer"] {
		c.Sampler.IntervalMs = o.timerMs
	}
	if o.debug {
		c.LogDebug = true
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opt, err := parseArgs(args, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if opt.help {
		return 0
	}

	log := log2.NewStderr(log2.LInfo)
	if sdnotify("STATUS=starting") || !isatty.IsTerminal(os.Stderr.Fd()) {
		// we're under systemd, assume systemd journal logging, remove timestamp
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}

	cfg, err := state.ReadConfig(log, state.NewOsFullReader(),
		state.ConfigSource{Name: opt.config, Optional: !opt.explicit["config"]})
	if err != nil {
		log.Error(err)
		return 1
	}
	opt.apply(cfg)

	ctx, g := state.NewContext(log)
	g.BuildVersion = BuildVersion
	if err = g.Init(ctx, cfg); err != nil {
		g.Error(err, "init config=%s", opt.config)
		return 1
	}

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigch)
	go func() {
		select {
		case sig := <-sigch:
			log.Infof("signal=%s, stopping", sig)
			sdnotify(daemon.SdNotifyStopping)
			g.Stop()
		case <-g.Alive.StopChan():
		}
	}()

	err = forwarder.Run(ctx, func() { sdnotify(daemon.SdNotifyReady) })
	if err != nil {
		log.Debug(errors.ErrorStack(err))
		g.Error(err, "run")
		g.Stop()
		return 1
	}
	log.Infof("shutdown complete")
	return 0
}

func sdnotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sdnotify: %v\n", err)
	}
	return ok
}
