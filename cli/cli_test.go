package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihontarenko/jmouse-sub007/cli/cmd"
	"github.com/ihontarenko/jmouse-sub007/log"
)

// TestExec runs the whole command line against temporary configuration and
// cache directories. The directories are resolved once per process, so all
// cases share them and run in order.
func TestExec(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	t.Cleanup(func() {
		log.Config(
			log.WithLevel(log.ParseLevel("info")),
			log.WithFormat(log.ParseFormat("text")),
		)
	})

	templates := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(templates, "page.jm"),
		[]byte("Hi {{ name | upper }}"), 0o600))

	exec := func(t *testing.T, stdin string, args ...string) (string, error) {
		t.Helper()

		var out, errOut bytes.Buffer

		streams := cmd.Streams{In: strings.NewReader(stdin), Out: &out, Err: &errOut}
		err := Exec(context.Background(), streams, func(code int) {
			t.Fatalf("unexpected exit %d: %s", code, errOut.String())
		}, args...)

		return out.String(), err
	}

	t.Run("eval", func(t *testing.T) {
		out, err := exec(t, "", "eval", "-o", "json", "[1, 2 + 3]")
		require.NoError(t, err)
		assert.Equal(t, "[\n  1,\n  5\n]\n", out)
	})

	t.Run("render", func(t *testing.T) {
		out, err := exec(t, "", "render", "-C", templates, "-D", "name=bo", "page")
		require.NoError(t, err)
		assert.Equal(t, "Hi BO", out)
	})

	t.Run("fmt expression", func(t *testing.T) {
		out, err := exec(t, "1+2*x", "fmt", "native", "-e")
		require.NoError(t, err)
		assert.Equal(t, "1 + 2 * x\n", out)
	})

	t.Run("init", func(t *testing.T) {
		_, err := exec(t, "", "init")
		require.NoError(t, err)
		assert.FileExists(t, configPath(baseConfig))

		_, err = exec(t, "", "init")
		require.ErrorIs(t, err, cmd.ErrFileExists)
	})

	t.Run("configuration file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(configPath(baseConfig),
			[]byte("log:\n  format: json\n  level: warn\n"), 0o600))

		out, err := exec(t, "", "init", "--print")
		require.NoError(t, err)
		assert.Contains(t, out, "log-format: json\n")
		assert.Contains(t, out, "log-level: warn\n")
		assert.NotContains(t, out, "help")
	})
}
