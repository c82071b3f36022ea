// mpr121-cli is interactive register console for single MPR121 controller.
package main

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
	"github.com/graspkit/touchfwd/helpers/cli"
	"github.com/graspkit/touchfwd/internal/mpr121"
	"github.com/graspkit/touchfwd/log2"
	"github.com/juju/errors"
)

const usage = `syntax: commands separated by whitespace
(main)
- init     stop, program thresholds, run (see -touch -release -electrodes)
- touched  read touch status bitmap
- valsN    read filtered data of N electrodes in one burst (default 12)
- rXX[:N]  read N (default 1) registers from hex address XX
- wXX=YY   write hex value YY to register XX
- sN       pause N milliseconds

(meta)
- loop=N   repeat N times all commands on this line
`

var log = log2.NewStderr(log2.LDebug)

type console struct {
	dev    *mpr121.Device
	config mpr121.Config
	log    *log2.Log
	sleep  func(time.Duration)
}

type command struct {
	name string
	f    func() error
}

func main() {
	cmdline := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	bus := cmdline.String("bus", "/dev/i2c-1", "I2C bus device")
	addr := cmdline.Uint("addr", mpr121.AddressGND, "controller address")
	transport := cmdline.String("transport", mpr121.TransportDev, "dev|periph|mock")
	touch := cmdline.Uint("touch", mpr121.DefaultTouchThreshold, "touch threshold for init")
	release := cmdline.Uint("release", mpr121.DefaultReleaseThreshold, "release threshold for init")
	electrodes := cmdline.Uint("electrodes", mpr121.DefaultElectrodes, "enabled electrodes for init")
	_ = cmdline.Parse(os.Args[1:])

	log.SetFlags(log2.LInteractiveFlags)

	dev, err := mpr121.Open(*transport, *bus, uint16(*addr), log)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	defer dev.Close()

	c := &console{
		dev: dev,
		config: mpr121.Config{
			TouchThreshold:   uint8(*touch),
			ReleaseThreshold: uint8(*release),
			Electrodes:       uint8(*electrodes),
		},
		log:   log,
		sleep: time.Sleep,
	}
	cli.MainLoop("mpr121-cli", c.execute, cli.Suggester([]prompt.Suggest{
		{Text: "init", Description: "configure thresholds and run"},
		{Text: "touched", Description: "read touch status"},
		{Text: "valsN", Description: "read filtered data"},
		{Text: "rXX", Description: "read register"},
		{Text: "wXX=YY", Description: "write register"},
		{Text: "sN", Description: "pause for N ms"},
		{Text: "loop=N", Description: "repeat line N times"},
		{Text: "help", Description: "show usage"},
	}))
}

func (c *console) execute(line string) {
	cmds, loopn, err := c.parseLine(line)
	if err != nil {
		c.log.Error(err)
		return
	}
	for i := uint(0); i < loopn; i++ {
		for _, cmd := range cmds {
			if err = cmd.f(); err != nil {
				c.log.Errorf("%s: %v", cmd.name, err)
				return
			}
		}
	}
}

func (c *console) parseLine(line string) ([]command, uint, error) {
	words := strings.Fields(line)
	loopn := uint(0)
	cmds := make([]command, 0, len(words))
	for _, word := range words {
		switch {
		case word == "help":
			return []command{{"help", func() error { c.log.Info(usage); return nil }}}, 1, nil
		case strings.HasPrefix(word, "loop="):
			if loopn != 0 {
				return nil, 0, errors.Errorf("multiple loop commands, expected at most one")
			}
			i, err := strconv.ParseUint(word[5:], 10, 32)
			if err != nil {
				return nil, 0, errors.Annotatef(err, "word=%s", word)
			}
			loopn = uint(i)
		default:
			cmd, err := c.parseCommand(word)
			if err != nil {
				return nil, 0, err
			}
			cmds = append(cmds, cmd)
		}
	}
	if loopn == 0 {
		loopn = 1
	}
	return cmds, loopn, nil
}

func (c *console) parseCommand(word string) (command, error) {
	switch {
	case word == "init":
		return command{word, func() error { return c.dev.Configure(c.config) }}, nil

	case word == "touched":
		return command{word, func() error {
			v, err := c.dev.Touched()
			if err == nil {
				c.log.Infof("touched=%04x %012b", v, v)
			}
			return err
		}}, nil

	case strings.HasPrefix(word, "vals"):
		n := uint64(mpr121.MaxElectrodes)
		if len(word) > 4 {
			var err error
			if n, err = strconv.ParseUint(word[4:], 10, 8); err != nil || n < 1 || n > mpr121.MaxElectrodes {
				return command{}, errors.NotValidf("word=%s electrodes must be 1..%d", word, mpr121.MaxElectrodes)
			}
		}
		vs := make([]uint16, n)
		return command{word, func() error {
			err := c.dev.FilteredAll(vs)
			if err == nil {
				c.log.Infof("vals=%v", vs)
			}
			return err
		}}, nil

	case word[0] == 'r':
		reg, n, err := parseRead(word[1:])
		if err != nil {
			return command{}, errors.Annotatef(err, "word=%s", word)
		}
		buf := make([]byte, n)
		return command{word, func() error {
			err := c.dev.ReadRegisters(reg, buf)
			if err == nil {
				c.log.Infof("r%02x = %x", reg, buf)
			}
			return err
		}}, nil

	case word[0] == 'w':
		parts := strings.SplitN(word[1:], "=", 2)
		if len(parts) != 2 {
			return command{}, errors.NotValidf("word=%s expected wXX=YY", word)
		}
		reg, err1 := strconv.ParseUint(parts[0], 16, 8)
		value, err2 := strconv.ParseUint(parts[1], 16, 8)
		if err1 != nil || err2 != nil {
			return command{}, errors.NotValidf("word=%s expected hex bytes", word)
		}
		return command{word, func() error { return c.dev.WriteRegister(uint8(reg), uint8(value)) }}, nil

	case word[0] == 's':
		i, err := strconv.ParseUint(word[1:], 10, 32)
		if err != nil {
			return command{}, errors.Annotatef(err, "word=%s", word)
		}
		return command{word, func() error { c.sleep(time.Duration(i) * time.Millisecond); return nil }}, nil
	}
	return command{}, errors.Errorf("invalid command: '%s'", word)
}

func parseRead(s string) (uint8, int, error) {
	n := uint64(1)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		var err error
		if n, err = strconv.ParseUint(s[i+1:], 10, 8); err != nil || n == 0 {
			return 0, 0, errors.NotValidf("length=%s", s[i+1:])
		}
		s = s[:i]
	}
	reg, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, 0, errors.NotValidf("register=%s", s)
	}
	if reg+n > 0x100 {
		return 0, 0, errors.NotValidf("register=%02x length=%d past end", reg, n)
	}
	return uint8(reg), int(n), nil
}
