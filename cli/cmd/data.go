package cmd

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/ihontarenko/jmouse-sub007/log"
)

// Vars are the variable flags shared by the commands that evaluate.
type Vars struct {
	Data []string          `help:"YAML or JSON file of variables; later files override earlier ones" placeholder:"FILE" short:"d" type:"existingfile"`
	Set  map[string]string `help:"Set a variable; the value is parsed as YAML and dotted names nest" placeholder:"NAME=VALUE" short:"D"`
}

// load merges the data files in order, then applies the --set values.
// A file named more than once, through any path, is read once.
func (v Vars) load(ctx context.Context) (map[string]any, error) {
	out := make(map[string]any)

	for _, path := range uniqueFiles(v.Data) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, ErrData.Wrap(err).With(slog.String("file", path))
		}

		var doc map[string]any
		if err := yaml.UnmarshalContext(ctx, data, &doc); err != nil {
			return nil, ErrData.Wrap(err).With(slog.String("file", path))
		}

		maps.Copy(out, doc)

		log.TraceContext(ctx, "variables loaded",
			slog.String("file", path),
			slog.Int("count", len(doc)))
	}

	for _, name := range slices.Sorted(maps.Keys(v.Set)) {
		if err := assign(out, name, scalar(v.Set[name])); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// scalar decodes a --set value as YAML, keeping the raw text when it is
// not a valid document.
func scalar(text string) any {
	var v any
	if err := yaml.Unmarshal([]byte(text), &v); err != nil || v == nil {
		return text
	}

	return v
}

// assign stores value under the dotted name, creating intermediate maps.
func assign(vars map[string]any, name string, value any) error {
	keys := strings.Split(name, ".")

	for _, key := range keys[:len(keys)-1] {
		next, ok := vars[key].(map[string]any)
		if !ok {
			if _, exists := vars[key]; exists {
				return ErrData.With(slog.String("name", name), slog.String("conflict", key))
			}

			next = make(map[string]any)
			vars[key] = next
		}

		vars = next
	}

	vars[keys[len(keys)-1]] = value

	return nil
}

// uniqueFiles drops paths naming a file already listed, compared with
// [os.SameFile] so symlinks and relative paths are caught. Paths that
// cannot be inspected are kept for the read to report.
func uniqueFiles(paths []string) []string {
	var (
		out  []string
		seen []os.FileInfo
	)

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			out = append(out, path)

			continue
		}

		if slices.ContainsFunc(seen, func(fi os.FileInfo) bool { return os.SameFile(fi, info) }) {
			continue
		}

		seen = append(seen, info)
		out = append(out, path)
	}

	return out
}
