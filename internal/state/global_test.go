package state

import (
	"strings"
	"testing"
	"time"

	"github.com/graspkit/touchfwd/log2"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestGlobalError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		args   []interface{}
		expect string
	}{
		{"nil", nil, nil, ""},
		{"plain", errors.New("boom"), nil, "error: boom\n"},
		{"annotated", errors.New("boom"), []interface{}{"init config=%s", "touchfwd.hcl"},
			"error: init config=touchfwd.hcl: boom\n"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			var out strings.Builder
			log := log2.NewWriter(&out, log2.LError)
			log.SetFlags(0)
			_, g := NewContext(log)
			g.Error(c.err, c.args...)
			assert.Equal(t, c.expect, out.String())
		})
	}
}

func TestGlobalStopWait(t *testing.T) {
	t.Parallel()

	_, g := NewContext(log2.NewTest(t, log2.LDebug))
	assert.True(t, g.StopWait(time.Second))
	assert.False(t, g.Alive.IsRunning())

	_, g = NewContext(log2.NewTest(t, log2.LDebug))
	g.Alive.Add(1)
	assert.False(t, g.StopWait(10*time.Millisecond))
	g.Alive.Done()
	assert.True(t, g.StopWait(time.Second))
}
