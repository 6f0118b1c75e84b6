package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake_AppliesOptions(t *testing.T) {
	t.Parallel()

	c := Make(WithMode("cpu"), WithPath("/tmp/p"), WithQuiet(true))

	assert.Equal(t, Config{Mode: "cpu", Path: "/tmp/p", Quiet: true}, c)
}

func TestStart_EmptyModeIsNoop(t *testing.T) {
	t.Parallel()

	s := Make().Start()

	assert.IsType(t, ignore{}, s)
	assert.NotPanics(t, s.Stop)
}

func TestStart_UnknownModeIsNoop(t *testing.T) {
	t.Parallel()

	s := Make(WithMode("bogus")).Start()

	assert.IsType(t, ignore{}, s)
}
