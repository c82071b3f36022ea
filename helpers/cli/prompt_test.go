package cli

import (
	"strings"
	"testing"

	"github.com/c-bata/go-prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLines(t *testing.T) {
	t.Parallel()

	var lines []string
	err := ReadLines(strings.NewReader("init\n\n  touched  \nvals6 loop=3"), func(line string) {
		lines = append(lines, line)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"init", "touched", "vals6 loop=3"}, lines)
}

func TestSuggester(t *testing.T) {
	t.Parallel()

	complete := Suggester([]prompt.Suggest{
		{Text: "init", Description: "configure"},
		{Text: "touched", Description: "read touch status"},
	})
	buf := prompt.NewBuffer()
	buf.InsertText("tou", false, true)
	ss := complete(*buf.Document())
	require.Len(t, ss, 1)
	assert.Equal(t, "touched", ss[0].Text)
}
