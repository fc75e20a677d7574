package sh

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/robotalks/swuart/pkg/link"
	"github.com/robotalks/swuart/pkg/swuart"
)

func TestFormatFrame(t *testing.T) {
	assert.Equal(t, `@12 "ab"`, FormatFrame(&link.Frame{Units: []uint16{'a', 'b'}, Tick: 12}))
	assert.Equal(t, `@3 "x" errors=framing|parity`,
		FormatFrame(&link.Frame{Units: []uint16{'x'}, Tick: 3, Errors: swuart.FramingError | swuart.ParityError}))
}
