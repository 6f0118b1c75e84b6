package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"

	"github.com/ihontarenko/jmouse-sub007/cli/cmd"
)

// loadConfig is a [kong.ConfigurationLoader] for YAML configuration files.
//
// Keys are flag names. Nested mappings join their keys with a hyphen and
// underscores are read as hyphens, so all of these set --log-level:
//
//	log-level: debug
//	log_level: debug
//	log:
//	  level: debug
//
// Command-line flags override configuration values. An empty file is an
// empty configuration; a malformed one is an error.
func loadConfig(r io.Reader) (kong.Resolver, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, cmd.ErrConfig.Wrap(err)
	}

	c := make(config)
	c.flatten("", doc)

	return c, nil
}

// config implements [kong.Resolver] over flattened flag values.
type config map[string]any

func (c config) flatten(prefix string, doc map[string]any) {
	for key, value := range doc {
		name := strings.ReplaceAll(key, "_", "-")
		if prefix != "" {
			name = prefix + "-" + name
		}

		if nested, ok := value.(map[string]any); ok {
			c.flatten(name, nested)

			continue
		}

		c[name] = flagValue(value)
	}
}

// flagValue converts a decoded YAML value to the form kong parses: scalars
// become strings and sequences comma-separated lists.
func flagValue(v any) any {
	switch v := v.(type) {
	case nil, bool, string:
		return v
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = fmt.Sprint(flagValue(e))
		}

		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}

func (c config) Validate(*kong.Application) error { return nil }

func (c config) Resolve(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
	return c[flag.Name], nil
}
