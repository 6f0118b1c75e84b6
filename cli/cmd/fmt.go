package cmd

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/ihontarenko/jmouse-sub007/lang"
)

// Fmt parses its input and prints it in the chosen format.
type Fmt struct {
	Native Native `cmd:"" default:"withargs" help:"Format as canonical template syntax (default)."`
	JSON   JSON   `cmd:""                    help:"Format the syntax tree as JSON."`
	YAML   YAML   `cmd:""                    help:"Format the syntax tree as YAML."`
	AST    AST    `cmd:""                    help:"Print an outline of the syntax tree."`
}

// Input is the source argument shared by the fmt subcommands.
type Input struct {
	Expr bool `help:"Parse the input as a bare expression" short:"e"`

	Source string `arg:"" default:"-" help:"Source file or '-' for stdin." name:"source"`
}

func (in Input) parse(ctx context.Context, format string) (lang.Node, error) {
	name, text, err := readSource(ctx, in.Source)
	if err != nil {
		return nil, err
	}

	p := lang.NewParser(parserOptions()...)

	var n lang.Node
	if in.Expr {
		n, err = p.ParseExpr(ctx, lang.NewSource(name, strings.TrimSpace(text)))
	} else {
		n, err = p.Parse(ctx, name, text)
	}

	if err != nil {
		return nil, ErrParse.Wrap(err).With(slog.String("format", format))
	}

	return n, nil
}

// Native prints the input in canonical syntax.
type Native struct {
	Input `embed:""`

	Write bool `help:"Write the result back to the source file instead of stdout" short:"w"`
}

// Run executes the native formatter.
func (f *Native) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	n, err := f.parse(ctx, "native")
	if err != nil {
		return err
	}

	text := lang.FormatString(n)
	if f.Expr {
		text += "\n"
	}

	if f.Write && f.Source != stdinSource {
		info, err := os.Stat(f.Source)
		if err != nil {
			return err
		}

		return os.WriteFile(f.Source, []byte(text), info.Mode().Perm())
	}

	_, err = streamsFrom(ctx).Out.Write([]byte(text))

	return err
}

// JSON prints the syntax tree as JSON.
type JSON struct {
	Input `embed:""`

	Indent int `default:"2" help:"Indent width; 0 writes a single line" short:"i"`
}

// Run executes the JSON formatter.
func (f *JSON) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	n, err := f.parse(ctx, "json")
	if err != nil {
		return err
	}

	return lang.FormatJSON(ctx, streamsFrom(ctx).Out, n, f.Indent)
}

// YAML prints the syntax tree as YAML.
type YAML struct {
	Input `embed:""`

	Indent int `default:"2" help:"Indent width; 0 writes flow style" short:"i"`
}

// Run executes the YAML formatter.
func (f *YAML) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	n, err := f.parse(ctx, "yaml")
	if err != nil {
		return err
	}

	return lang.FormatYAML(ctx, streamsFrom(ctx).Out, n, f.Indent)
}

// AST prints an indented outline of the syntax tree.
type AST struct {
	Input `embed:""`
}

// Run executes the outline printer.
func (f *AST) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	n, err := f.parse(ctx, "ast")
	if err != nil {
		return err
	}

	return lang.Dump(streamsFrom(ctx).Out, n)
}
