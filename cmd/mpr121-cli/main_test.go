package main

import (
	"strings"
	"testing"
	"time"

	"github.com/graspkit/touchfwd/internal/mpr121"
	"github.com/graspkit/touchfwd/log2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsole(t testing.TB) (*console, *mpr121.MockTransport, *strings.Builder) {
	d, m := mpr121.NewMockDevice(mpr121.AddressGND)
	var out strings.Builder
	c := &console{
		dev:    d,
		config: mpr121.DefaultConfig(),
		log:    log2.NewWriter(&out, log2.LDebug),
		sleep:  m.Sleep,
	}
	c.log.SetFlags(0)
	return c, m, &out
}

func TestExecute(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		setup  func(*mpr121.MockTransport)
		line   string
		output string
		ops    string
	}{
		{"touched", func(m *mpr121.MockTransport) { m.SetTouched(0x0805) }, "touched",
			"touched=0805 100000000101\n", "r00:1 r01:1"},
		{"vals", func(m *mpr121.MockTransport) { m.SetFiltered(100, 200, 300) }, "vals3",
			"vals=[100 200 300]\n", "r04:6"},
		{"read", func(m *mpr121.MockTransport) { m.Regs[0x5e] = 0x06 }, "r5e",
			"r5e = 06\n", "r5e:1"},
		{"read-n", func(m *mpr121.MockTransport) { m.SetFiltered(0x0102) }, "r04:2",
			"r04 = 0201\n", "r04:2"},
		{"write-sleep-loop", nil, "w5e=00 s5 loop=2",
			"", "w5e=00 s5ms w5e=00 s5ms"},
		{"init", nil, "init",
			"", "w5e=00 s10ms w41=0c w42=06 w43=0c w44=06 w45=0c w46=06 w47=0c w48=06 w49=0c w4a=06 w4b=0c w4c=06 w5e=06 s100ms r5e:1"},
		{"invalid", nil, "bogus", "error: invalid command: 'bogus'\n", ""},
		{"vals-range", nil, "vals13", "error: word=vals13 electrodes must be 1..12 not valid\n", ""},
		{"read-past-end", nil, "rff:2", "error: word=rff:2: register=ff length=2 past end not valid\n", ""},
		{"loop-twice", nil, "loop=1 loop=2", "error: multiple loop commands, expected at most one\n", ""},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			con, m, out := newTestConsole(t)
			if c.setup != nil {
				c.setup(m)
			}
			con.execute(c.line)
			assert.Equal(t, c.output, out.String())
			assert.Equal(t, c.ops, strings.Join(opStrings(m.TakeOps()), " "))
		})
	}
}

func TestExecuteHelp(t *testing.T) {
	t.Parallel()

	con, m, out := newTestConsole(t)
	con.execute("touched help")
	assert.Equal(t, usage, out.String())
	assert.Empty(t, m.TakeOps())
}

func TestParseRead(t *testing.T) {
	t.Parallel()

	reg, n, err := parseRead("1e:24")
	require.NoError(t, err)
	assert.Equal(t, uint8(0x1e), reg)
	assert.Equal(t, 24, n)
	_, _, err = parseRead("zz")
	assert.Error(t, err)
	_, _, err = parseRead("00:0")
	assert.Error(t, err)
}

func TestSleepCommand(t *testing.T) {
	t.Parallel()

	con, _, _ := newTestConsole(t)
	var slept time.Duration
	con.sleep = func(d time.Duration) { slept += d }
	con.execute("s7 loop=3")
	assert.Equal(t, 21*time.Millisecond, slept)
}

func opStrings(ops []mpr121.Op) []string {
	ss := make([]string, len(ops))
	for i, o := range ops {
		ss[i] = o.String()
	}
	return ss
}
