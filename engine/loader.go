package engine

import (
	"context"
	"errors"
	"io/fs"
	"maps"
	"path"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/ihontarenko/jmouse-sub007/lang"
)

// Loader fetches the parsed tree of a named template. A missing template
// yields an error matching [ErrTemplateNotFound]. The returned tree may be
// shared and must not be modified.
type Loader interface {
	Load(ctx context.Context, name string) (*lang.Template, error)
}

// Lister is implemented by loaders that can enumerate their templates.
type Lister interface {
	List(pattern string) ([]string, error)
}

// MapLoader serves templates from memory.
type MapLoader struct {
	templates map[string]string
	parser    *lang.Parser
}

// NewMapLoader returns a loader over a copy of templates.
func NewMapLoader(templates map[string]string, opts ...lang.Option) *MapLoader {
	return &MapLoader{templates: maps.Clone(templates), parser: lang.NewParser(opts...)}
}

func (l *MapLoader) Load(ctx context.Context, name string) (*lang.Template, error) {
	text, ok := l.templates[name]
	if !ok {
		return nil, templateNotFound(name, nil)
	}

	return l.parser.Parse(ctx, name, text)
}

// List returns the sorted names matching the doublestar pattern.
func (l *MapLoader) List(pattern string) ([]string, error) {
	var out []string

	for name := range l.templates {
		ok, err := doublestar.Match(pattern, name)
		if err != nil {
			return nil, err
		}

		if ok {
			out = append(out, name)
		}
	}

	slices.Sort(out)

	return out, nil
}

// FSLoader serves templates from a directory of an afero filesystem.
// Names are slash-separated paths relative to the root; a name without an
// extension gets the default one.
type FSLoader struct {
	fs     afero.Fs
	ext    string
	parser *lang.Parser
}

// NewFSLoader returns a loader over the directory root of fsys.
func NewFSLoader(fsys afero.Fs, root, ext string, opts ...lang.Option) *FSLoader {
	if root != "" && root != "." {
		fsys = afero.NewBasePathFs(fsys, root)
	}

	return &FSLoader{fs: fsys, ext: ext, parser: lang.NewParser(opts...)}
}

func (l *FSLoader) file(name string) string {
	if l.ext != "" && path.Ext(name) == "" {
		return name + l.ext
	}

	return name
}

func (l *FSLoader) Load(ctx context.Context, name string) (*lang.Template, error) {
	f, err := l.fs.Open(l.file(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, templateNotFound(name, err)
		}

		return nil, err
	}

	defer f.Close()

	return l.parser.ParseReader(ctx, name, f)
}

// List returns the files matching the doublestar pattern.
func (l *FSLoader) List(pattern string) ([]string, error) {
	return doublestar.Glob(afero.NewIOFS(l.fs), pattern, doublestar.WithFilesOnly())
}

// LoadAll loads every template matching pattern. Failures are collected;
// the templates that loaded are returned with the combined error.
func (l *FSLoader) LoadAll(ctx context.Context, pattern string) (map[string]*lang.Template, error) {
	names, err := l.List(pattern)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*lang.Template, len(names))

	for _, name := range names {
		t, lerr := l.Load(ctx, name)
		if lerr != nil {
			err = multierr.Append(err, lerr)

			continue
		}

		out[name] = t
	}

	return out, err
}

// ChainLoader tries each loader in order. A loader that reports
// [ErrTemplateNotFound] passes the name on to the next one; any other
// error stops the search.
type ChainLoader []Loader

func (c ChainLoader) Load(ctx context.Context, name string) (*lang.Template, error) {
	for _, l := range c {
		t, err := l.Load(ctx, name)
		if errors.Is(err, ErrTemplateNotFound) {
			continue
		}

		return t, err
	}

	return nil, templateNotFound(name, nil)
}

// List merges the matches of every loader that implements [Lister].
func (c ChainLoader) List(pattern string) ([]string, error) {
	var out []string

	for _, l := range c {
		lister, ok := l.(Lister)
		if !ok {
			continue
		}

		names, err := lister.List(pattern)
		if err != nil {
			return nil, err
		}

		out = append(out, names...)
	}

	slices.Sort(out)

	return slices.Compact(out), nil
}
