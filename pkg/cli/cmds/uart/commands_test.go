package uart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseText(t *testing.T) {
	text, err := ParseText(`"hi\n"`)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", text)

	text, err = ParseText("plain words")
	require.NoError(t, err)
	assert.Equal(t, "plain words", text)

	_, err = ParseText(`"bad\q"`)
	assert.Error(t, err)
}

func TestParseUnits(t *testing.T) {
	units, err := ParseUnits([]string{"65", "0x1ff", "0b101"})
	require.NoError(t, err)
	assert.Equal(t, []uint16{65, 0x1ff, 5}, units)

	_, err = ParseUnits(nil)
	assert.Error(t, err)
	_, err = ParseUnits([]string{"0x10000"})
	assert.Error(t, err)
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "No units", FormatUnits(nil))
	assert.Equal(t, "41 0a 1ff  |A..|", FormatUnits([]uint16{'A', '\n', 0x1ff}))
}

func TestParseCount(t *testing.T) {
	n, err := parseCount(nil, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	n, err = parseCount([]string{"12"}, 7)
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	_, err = parseCount([]string{"-1"}, 7)
	assert.Error(t, err)
}
