package cli

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBasePrefix(t *testing.T) {
	t.Parallel()

	prefix := basePrefix()
	assert.NotEmpty(t, prefix)
	assert.False(t, strings.HasPrefix(prefix, "."))
	assert.NotContains(t, prefix, string(filepath.Separator))
}

func TestUserDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	ok := func() (string, error) { return "/base", nil }
	fail := func() (string, error) { return "", errors.New("unset") }

	assert.Equal(t, filepath.Join("/base", basePrefix()), userDir(ok, ".config"))
	assert.Equal(t, filepath.Join(home, ".config", basePrefix()), userDir(fail, ".config"))
}
