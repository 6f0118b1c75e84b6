package cli

import (
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihontarenko/jmouse-sub007/cli/cmd"
)

func TestLoadConfig_Flatten(t *testing.T) {
	t.Parallel()

	r, err := loadConfig(strings.NewReader(`
log:
  level: debug
  pretty: false
time_layout: Kitchen
preload: [a.jm, b.jm]
max-depth: 10
`))
	require.NoError(t, err)

	assert.Equal(t, config{
		"log-level":   "debug",
		"log-pretty":  false,
		"time-layout": "Kitchen",
		"preload":     "a.jm,b.jm",
		"max-depth":   "10",
	}, r)
}

func TestLoadConfig_Resolve(t *testing.T) {
	t.Parallel()

	r, err := loadConfig(strings.NewReader("log-format: json\n"))
	require.NoError(t, err)
	require.NoError(t, r.Validate(nil))

	tests := []struct {
		flag string
		want any
	}{
		{"log-format", "json"},
		{"log-level", nil},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			t.Parallel()

			got, err := r.Resolve(nil, nil, &kong.Flag{Value: &kong.Value{Name: tt.flag}})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadConfig_Malformed(t *testing.T) {
	t.Parallel()

	_, err := loadConfig(strings.NewReader("log: [unclosed\n"))
	require.ErrorIs(t, err, cmd.ErrConfig)
}

func TestFlagValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"bool", true, true},
		{"string", "x", "x"},
		{"number", uint64(3), "3"},
		{"float", 1.5, "1.5"},
		{"list", []any{"a", uint64(2), true}, "a,2,true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, flagValue(tt.in))
		})
	}
}
