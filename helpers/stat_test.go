package helpers

import (
	"bytes"
	"expvar"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatReader(t *testing.T) {
	t.Parallel()

	var counter expvar.Int
	s := NewStatReader(strings.NewReader(strings.Repeat(".", 20)), &counter, 0)
	assert.Equal(t, int64(0), counter.Value())
	buf := make([]byte, 17)
	_, _ = s.Read(buf[:0])
	assert.Equal(t, int64(0), counter.Value())
	_, _ = s.Read(buf[:5])
	assert.Equal(t, int64(5), counter.Value())
	_, _ = s.Read(buf)
	assert.Equal(t, int64(20), counter.Value())
	_, _ = s.Read(buf)
	assert.Equal(t, int64(20), counter.Value())
}

func TestStatWriterOverhead(t *testing.T) {
	t.Parallel()

	var counter expvar.Int
	s := NewStatWriter(bytes.NewBuffer(nil), &counter, 40)
	_, _ = s.Write(nil)
	assert.Equal(t, int64(0), counter.Value())
	_, _ = s.Write(make([]byte, 128))
	assert.Equal(t, int64(168), counter.Value())
}
