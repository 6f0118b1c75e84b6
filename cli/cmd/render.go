package cmd

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/ihontarenko/jmouse-sub007/engine"
	"github.com/ihontarenko/jmouse-sub007/log"
)

// Render renders a template from a directory of templates.
type Render struct {
	Vars `embed:""`

	Dir        string   `default:"."              help:"Template root directory"                                   short:"C" type:"existingdir"`
	Ext        string   `default:"${templateExt}" help:"Extension added to template names without one"`
	Preload    []string `help:"Compile the templates matching these globs before rendering"                       placeholder:"GLOB"`
	Autoescape bool     `help:"HTML-escape printed values"`
	Strict     bool     `help:"Fail on undefined variables"`
	MaxDepth   int      `default:"100"            help:"Maximum nesting of includes and macro calls"`
	Output     string   `default:"text"           enum:"text,json,yaml"                                            help:"Write text, or the element tree as JSON or YAML" short:"o"`

	Name string `arg:"" help:"Template name relative to --dir, or '-' for stdin" name:"template"`
}

// Run executes the render command.
func (r *Render) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	vars, err := r.load(ctx)
	if err != nil {
		return err
	}

	loader, name, err := r.loader(ctx)
	if err != nil {
		return err
	}

	e := engine.New(loader,
		engine.WithLogger(log.Default()),
		engine.WithAutoescape(r.Autoescape),
		engine.WithStrict(r.Strict),
		engine.WithMaxDepth(r.MaxDepth),
		engine.WithParserOptions(parserOptions()...),
	)

	if len(r.Preload) > 0 {
		if err := e.Preload(ctx, r.Preload...); err != nil {
			return ErrRender.Wrap(err).With(slog.Any("preload", r.Preload))
		}
	}

	out := streamsFrom(ctx).Out

	if r.Output == "text" {
		if err := e.WriteTo(ctx, name, vars, out); err != nil {
			return ErrRender.Wrap(err).With(slog.String("template", name))
		}

		return nil
	}

	b := engine.NewTreeBuilder()
	if err := e.Materialize(ctx, name, vars, b); err != nil {
		return ErrRender.Wrap(err).With(slog.String("template", name))
	}

	var data []byte

	switch r.Output {
	case "json":
		data, err = b.JSON(2)
	default:
		data, err = b.YAML(2)
	}

	if err != nil {
		return ErrEncode.Wrap(err).With(slog.String("format", r.Output))
	}

	return writeLine(out, data)
}

// loader returns the template loader and the name to render. A template
// read from standard input is served ahead of the directory so it can
// extend and include the templates there.
func (r *Render) loader(ctx context.Context) (engine.Loader, string, error) {
	fs := engine.NewFSLoader(afero.NewOsFs(), r.Dir, r.Ext, parserOptions()...)

	if r.Name != stdinSource {
		return fs, r.Name, nil
	}

	name, text, err := readSource(ctx, stdinSource)
	if err != nil {
		return nil, "", err
	}

	stdin := engine.NewMapLoader(map[string]string{name: text}, parserOptions()...)

	return engine.ChainLoader{stdin, fs}, name, nil
}

// writeLine writes data followed by a newline unless it already ends
// with one.
func writeLine(w io.Writer, data []byte) error {
	if len(data) == 0 || data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}

	_, err := w.Write(data)

	return err
}
