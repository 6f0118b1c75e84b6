package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ihontarenko/jmouse-sub007/log"
)

// The scan tests reconfigure the default logger and do not run in
// parallel.
func TestLogConfig_Scan(t *testing.T) {
	t.Cleanup(func() {
		log.Config(
			log.WithLevel(log.ParseLevel("info")),
			log.WithFormat(log.ParseFormat("text")),
			log.WithCaller(false),
			log.WithPretty(true),
		)
	})

	base := logConfig{Level: "info", Format: "text", Pretty: true}

	tests := []struct {
		name string
		args []string
		want func(*logConfig)
	}{
		{"none", []string{"render", "page"}, func(*logConfig) {}},
		{"assigned", []string{"--log-level=debug", "eval", "1"}, func(c *logConfig) { c.Level = "debug" }},
		{"separate", []string{"eval", "--log-level", "warn", "1"}, func(c *logConfig) { c.Level = "warn" }},
		{"format", []string{"--log-format", "json"}, func(c *logConfig) { c.Format = "json" }},
		{"toggle", []string{"--log-caller"}, func(c *logConfig) { c.Caller = true }},
		{"negated", []string{"--no-log-pretty"}, func(c *logConfig) { c.Pretty = false }},
		{"explicit", []string{"--log-pretty=false", "--log-caller=true"}, func(c *logConfig) {
			c.Pretty = false
			c.Caller = true
		}},
		{"invalid bool", []string{"--log-caller=maybe"}, func(*logConfig) {}},
		{"unknown", []string{"--log-colour", "--no-log-level"}, func(*logConfig) {}},
		{"terminator", []string{"--", "--log-level=debug"}, func(*logConfig) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, want := base, base
			tt.want(&want)

			got.scan(tt.args)
			assert.Equal(t, want, got)
		})
	}
}

func TestLogConfig_Vars(t *testing.T) {
	t.Parallel()

	var c logConfig

	vars := c.vars()
	assert.Contains(t, vars["logLevelEnum"], "trace")
	assert.Contains(t, vars["logLevelEnum"], "debug")
	assert.Contains(t, vars["logFormatEnum"], "json")
	assert.Equal(t, "log", c.group().Key)
}
