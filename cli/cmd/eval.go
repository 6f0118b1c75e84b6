package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/ihontarenko/jmouse-sub007/engine"
	"github.com/ihontarenko/jmouse-sub007/log"
)

// Eval evaluates an expression against the given variables.
type Eval struct {
	Vars `embed:""`

	Strict bool   `help:"Fail on undefined variables"`
	Output string `default:"text" enum:"text,json,yaml" help:"Print the result as text, JSON or YAML" short:"o"`

	Expr []string `arg:"" help:"Expression to evaluate; words are joined with spaces and '-' reads stdin" name:"expr"`
}

// Run executes the eval command.
func (e *Eval) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	vars, err := e.load(ctx)
	if err != nil {
		return err
	}

	source := strings.Join(e.Expr, " ")
	if source == stdinSource {
		if _, source, err = readSource(ctx, stdinSource); err != nil {
			return err
		}
	}

	en := engine.New(engine.NewMapLoader(nil),
		engine.WithLogger(log.Default()),
		engine.WithStrict(e.Strict),
		engine.WithParserOptions(parserOptions()...),
	)

	result, err := en.Eval(ctx, strings.TrimSpace(source), vars)
	if err != nil {
		return ErrEval.Wrap(err).With(slog.String("expr", source))
	}

	data, err := formatResult(ctx, result, e.Output)
	if err != nil {
		return ErrEncode.Wrap(err).With(slog.String("format", e.Output))
	}

	return writeLine(streamsFrom(ctx).Out, data)
}

// formatResult encodes an evaluation result. Text uses the same rendering
// as template output; undefined values encode as null.
func formatResult(ctx context.Context, v any, format string) ([]byte, error) {
	if engine.IsUndefined(v) {
		v = nil
	}

	switch format {
	case "json":
		return json.MarshalIndent(v, "", "  ")
	case "yaml":
		return yaml.MarshalContext(ctx, v)
	default:
		return []byte(engine.ToString(v)), nil
	}
}
