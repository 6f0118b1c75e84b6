package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"

	"github.com/ihontarenko/jmouse-sub007/log"
	"github.com/ihontarenko/jmouse-sub007/profile"
)

// defaultConfigIndent is the indent width of the generated file.
const defaultConfigIndent = 2

// Init writes the configuration file from the current flag values.
type Init struct {
	Force bool `help:"Overwrite an existing configuration file" short:"f"`
	Print bool `help:"Print the configuration instead of writing it"`
}

// Run executes the init command.
func (i *Init) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	ktx := kongContextFrom(ctx)
	if ktx == nil {
		return ErrWriteConfig.With(slog.String("issue", "no command context"))
	}

	data, err := yaml.MarshalWithOptions(configValues(ktx), yaml.Indent(defaultConfigIndent))
	if err != nil {
		return ErrWriteConfig.Wrap(err)
	}

	if i.Print {
		return writeLine(streamsFrom(ctx).Out, data)
	}

	path := ktx.Model.Vars()[ConfigIdentifier]

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !i.Force {
		flags |= os.O_EXCL
	}

	file, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return ErrWriteConfig.
				With(slog.String("file", path)).
				Wrap(ErrFileExists)
		}

		return ErrWriteConfig.With(slog.String("file", path)).Wrap(err)
	}

	defer file.Close()

	if _, err := file.Write(data); err != nil {
		return ErrWriteConfig.With(slog.String("file", path)).Wrap(err)
	}

	log.DebugContext(ctx, "initialized configuration file", slog.String("path", path))

	return nil
}

// configValues collects the application flags in declaration order. Help,
// version and profiling flags, and flags without a value, are left out.
func configValues(ktx *kong.Context) yaml.MapSlice {
	skip := []string{"help", "version", profile.Tag}

	var out yaml.MapSlice

	for _, flag := range ktx.Model.Flags {
		if flag.Hidden || hasAnyPrefix(flag.Name, skip) {
			continue
		}

		if v, ok := configValue(ktx.FlagValue(flag)); ok {
			out = append(out, yaml.MapItem{Key: flag.Name, Value: v})
		}
	}

	return out
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}

	return false
}

// configValue returns the YAML form of a flag value, or false for empty
// values.
func configValue(v any) (any, bool) {
	if v == nil {
		return nil, false
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return v, true
	case reflect.String:
		return rv.String(), rv.Len() > 0
	case reflect.Slice, reflect.Map:
		return v, rv.Len() > 0
	default:
		return fmt.Sprint(v), true
	}
}
