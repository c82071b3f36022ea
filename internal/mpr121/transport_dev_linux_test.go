package mpr121

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/graspkit/touchfwd/internal/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDev(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	notBus := filepath.Join(dir, "i2c-1")
	require.NoError(t, ioutil.WriteFile(notBus, nil, 0600))

	cases := []struct {
		name   string
		path   string
		expect fault.Kind
	}{
		{"missing", filepath.Join(dir, "i2c-9"), fault.BusOpen},
		// regular file rejects I2C_SLAVE ioctl with ENOTTY
		{"not-a-bus", notBus, fault.SlaveBind},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			tr, err := OpenDev(c.path, AddressGND)
			require.Error(t, err)
			assert.Nil(t, tr)
			assert.Equal(t, c.expect, fault.KindOf(err), "err=%v", err)
			assert.Contains(t, err.Error(), c.path)
		})
	}
}

func TestOpenDevTransport(t *testing.T) {
	t.Parallel()

	d, err := Open(TransportDev, filepath.Join(t.TempDir(), "i2c-1"), AddressVDD, nil)
	require.Error(t, err)
	assert.Nil(t, d)
	assert.True(t, fault.Is(err, fault.BusOpen))
	assert.Contains(t, err.Error(), "addr=0x5b")
}
