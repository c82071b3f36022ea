package state

import (
	"encoding/binary"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/graspkit/touchfwd/helpers"
	"github.com/graspkit/touchfwd/internal/fault"
	"github.com/graspkit/touchfwd/internal/mpr121"
	"github.com/graspkit/touchfwd/internal/sampler"
	"github.com/graspkit/touchfwd/internal/tele"
	telenet "github.com/graspkit/touchfwd/internal/tele/net"
	"github.com/graspkit/touchfwd/log2"
	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultCollectorHost = "192.168.88.40"
	DefaultCollectorPort = 4620
	DefaultIntervalMs    = 20
	DefaultI2CBus        = "/dev/i2c-1"
	DefaultPrefix        = "grasp"
)

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include" yaml:"include"`

	Collector struct {
		Host             string `hcl:"host" yaml:"host"`
		Port             int    `hcl:"port" yaml:"port"`
		ConnectTimeoutMs int    `hcl:"connect_timeout_ms" yaml:"connect_timeout_ms"`
		ReconnectDelayMs int    `hcl:"reconnect_delay_ms" yaml:"reconnect_delay_ms"`
		ByteOrder        string `hcl:"byte_order" yaml:"byte_order"`
	} `hcl:"collector" yaml:"collector"`

	Sampler struct {
		IntervalMs int    `hcl:"interval_ms" yaml:"interval_ms"`
		Clock      string `hcl:"clock" yaml:"clock"`
		Prefix     string `hcl:"prefix" yaml:"prefix"`
	} `hcl:"sampler" yaml:"sampler"`

	I2C struct {
		Bus       string `hcl:"bus" yaml:"bus"`
		Transport string `hcl:"transport" yaml:"transport"`
	} `hcl:"i2c" yaml:"i2c"`

	Touch struct {
		TouchThreshold   int `hcl:"touch_threshold" yaml:"touch_threshold"`
		ReleaseThreshold int `hcl:"release_threshold" yaml:"release_threshold"`
		Electrodes       int `hcl:"electrodes" yaml:"electrodes"`
	} `hcl:"touch" yaml:"touch"`

	Sensors []SensorConfig `hcl:"sensor" yaml:"sensors"`

	LogDebug bool `hcl:"log_debug" yaml:"log_debug"`

	_copy_guard sync.Mutex //nolint:unused
}

type ConfigSource struct {
	Name     string `hcl:"name,key" yaml:"name"`
	Optional bool   `hcl:"optional" yaml:"optional"`
}

type SensorConfig struct {
	Name    string `hcl:"name,key" yaml:"name"`
	Address int    `hcl:"address" yaml:"address"`
}

func DefaultSensors() []SensorConfig {
	return []SensorConfig{
		{Name: "sensor0", Address: mpr121.AddressGND},
		{Name: "sensor1", Address: mpr121.AddressVDD},
	}
}

func (c *Config) Interval() time.Duration {
	return helpers.IntMillisecondDefault(c.Sampler.IntervalMs, DefaultIntervalMs*time.Millisecond)
}
func (c *Config) ConnectTimeout() time.Duration {
	return helpers.IntMillisecondDefault(c.Collector.ConnectTimeoutMs, telenet.DefaultConnectTimeout)
}
func (c *Config) ReconnectDelay() time.Duration {
	return helpers.IntMillisecondDefault(c.Collector.ReconnectDelayMs, telenet.DefaultReconnectDelay)
}

func (c *Config) ByteOrder() binary.ByteOrder {
	order, err := tele.ParseByteOrder(c.Collector.ByteOrder)
	if err != nil {
		return binary.LittleEndian
	}
	return order
}

func (c *Config) Mpr121() mpr121.Config {
	return mpr121.Config{
		TouchThreshold:   uint8(c.Touch.TouchThreshold),
		ReleaseThreshold: uint8(c.Touch.ReleaseThreshold),
		Electrodes:       uint8(c.Touch.Electrodes),
	}
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	def := func(p *int, v int) {
		if *p == 0 {
			*p = v
		}
	}
	defs := func(p *string, v string) {
		if *p == "" {
			*p = v
		}
	}
	defs(&c.Collector.Host, DefaultCollectorHost)
	def(&c.Collector.Port, DefaultCollectorPort)
	def(&c.Collector.ConnectTimeoutMs, int(telenet.DefaultConnectTimeout/time.Millisecond))
	def(&c.Collector.ReconnectDelayMs, int(telenet.DefaultReconnectDelay/time.Millisecond))
	defs(&c.Collector.ByteOrder, "little")
	def(&c.Sampler.IntervalMs, DefaultIntervalMs)
	defs(&c.Sampler.Clock, sampler.ClockTimerFD)
	defs(&c.Sampler.Prefix, DefaultPrefix)
	defs(&c.I2C.Bus, DefaultI2CBus)
	defs(&c.I2C.Transport, mpr121.TransportDev)
	def(&c.Touch.TouchThreshold, mpr121.DefaultTouchThreshold)
	def(&c.Touch.ReleaseThreshold, mpr121.DefaultReleaseThreshold)
	def(&c.Touch.Electrodes, mpr121.DefaultElectrodes)
	if len(c.Sensors) == 0 {
		c.Sensors = DefaultSensors()
	}
}

func (c *Config) Validate() error {
	errs := make([]error, 0, 8)
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, errors.NotValidf(format, args...))
		}
	}
	check(c.Collector.Host != "", "collector.host empty")
	check(c.Collector.Port >= 1 && c.Collector.Port <= 65535, "collector.port=%d must be 1..65535", c.Collector.Port)
	check(c.Collector.ConnectTimeoutMs > 0, "collector.connect_timeout_ms=%d", c.Collector.ConnectTimeoutMs)
	check(c.Collector.ReconnectDelayMs > 0, "collector.reconnect_delay_ms=%d", c.Collector.ReconnectDelayMs)
	if _, err := tele.ParseByteOrder(c.Collector.ByteOrder); err != nil {
		errs = append(errs, err)
	}
	check(c.Sampler.IntervalMs >= 1 && c.Sampler.IntervalMs <= 10000, "sampler.interval_ms=%d must be 1..10000", c.Sampler.IntervalMs)
	check(c.Sampler.Clock == sampler.ClockTimerFD || c.Sampler.Clock == sampler.ClockTicker, "sampler.clock=%s", c.Sampler.Clock)
	check(c.Sampler.Prefix != "", "sampler.prefix empty")
	switch c.I2C.Transport {
	case mpr121.TransportDev, mpr121.TransportPeriph, mpr121.TransportMock:
	default:
		check(false, "i2c.transport=%s", c.I2C.Transport)
	}
	check(c.Touch.TouchThreshold >= 0 && c.Touch.TouchThreshold <= 0xff, "touch.touch_threshold=%d", c.Touch.TouchThreshold)
	check(c.Touch.ReleaseThreshold >= 0 && c.Touch.ReleaseThreshold <= 0xff, "touch.release_threshold=%d", c.Touch.ReleaseThreshold)
	check(c.Touch.Electrodes >= 1 && c.Touch.Electrodes <= mpr121.MaxElectrodes, "touch.electrodes=%d must be 1..%d", c.Touch.Electrodes, mpr121.MaxElectrodes)

	check(len(c.Sensors) != 0, "no sensors")
	seenAddr := make(map[int]string, len(c.Sensors))
	seenName := make(map[string]struct{}, len(c.Sensors))
	for _, s := range c.Sensors {
		check(s.Name != "" && !strings.Contains(s.Name, "/"), "sensor name=%q", s.Name)
		check(s.Address >= 0x03 && s.Address <= 0x77, "sensor=%s address=%#02x must be 0x03..0x77", s.Name, s.Address)
		if other, ok := seenAddr[s.Address]; ok {
			check(false, "sensor=%s address=%#02x already used by sensor=%s", s.Name, s.Address, other)
		}
		if _, ok := seenName[s.Name]; ok {
			check(false, "sensor name=%s duplicate", s.Name)
		}
		seenAddr[s.Address] = s.Name
		seenName[s.Name] = struct{}{}
	}

	if len(errs) != 0 {
		return fault.New(fault.Config, helpers.FoldErrors(errs))
	}
	return nil
}

func isYAML(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	if isYAML(source.Name) {
		err = yaml.Unmarshal(bs, c)
	} else {
		err = hcl.Unmarshal(bs, c)
	}
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s content='%s'", source.Name, string(bs))
		*errs = append(*errs, err)
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

// ReadConfig reads sources in order, later values overwrite earlier.
// Defaults are applied to missing values; result is not validated.
func ReadConfig(log *log2.Log, fs FullReader, sources ...ConfigSource) (*Config, error) {
	if len(sources) == 0 {
		return nil, errors.New("code error ReadConfig() without sources")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(sources[0].Name)
		osfs.SetBase(dir)
		sources[0].Name = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, source := range sources {
		c.read(log, fs, source, &errs)
	}
	c.ApplyDefaults()
	if err := helpers.FoldErrors(errs); err != nil {
		return c, fault.New(fault.Config, err)
	}
	return c, nil
}
