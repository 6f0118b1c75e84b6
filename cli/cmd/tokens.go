package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/goccy/go-yaml"

	"github.com/ihontarenko/jmouse-sub007/lang"
)

// Tokens prints the token stream the lexer produces for its input.
type Tokens struct {
	Input `embed:""`

	Output string `default:"text" enum:"text,json,yaml" help:"Print a table, or a JSON or YAML list" short:"o"`
}

// token is the printed form of a [lang.Token].
type token struct {
	Ordinal int    `json:"ordinal" yaml:"ordinal"`
	Type    string `json:"type"    yaml:"type"`
	ID      int    `json:"id"      yaml:"id"`
	Value   string `json:"value"   yaml:"value"`
	Offset  int    `json:"offset"  yaml:"offset"`
	Line    int    `json:"line"    yaml:"line"`
	Column  int    `json:"column"  yaml:"column"`
}

var tokenHeaderStyle = lipgloss.NewStyle().Bold(true).PaddingRight(1)

var tokenCellStyle = lipgloss.NewStyle().PaddingRight(1)

// Run executes the tokens command.
func (t *Tokens) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	name, text, err := readSource(ctx, t.Source)
	if err != nil {
		return err
	}

	p := lang.NewParser(parserOptions()...)
	src := lang.NewSource(name, text)

	var toks []lang.Token
	if t.Expr {
		toks = p.TokenizeExpr(ctx, src)
	} else {
		toks = p.Tokenize(ctx, src)
	}

	list := make([]token, 0, len(toks))

	for _, tok := range toks {
		if tok.Is(lang.TokenStart, lang.TokenEnd) {
			continue
		}

		pos := src.Position(tok.Offset)
		list = append(list, token{
			Ordinal: tok.Ordinal,
			Type:    tok.Type.String(),
			ID:      tok.Type.ID(),
			Value:   tok.Value,
			Offset:  tok.Offset,
			Line:    pos.Line,
			Column:  pos.Column,
		})
	}

	var data []byte

	switch t.Output {
	case "json":
		data, err = json.MarshalIndent(list, "", "  ")
	case "yaml":
		data, err = yaml.MarshalContext(ctx, list)
	default:
		data = []byte(tokenTable(list))
	}

	if err != nil {
		return ErrEncode.Wrap(err).With(slog.String("format", t.Output))
	}

	return writeLine(streamsFrom(ctx).Out, data)
}

func tokenTable(list []token) string {
	rows := make([][]string, len(list))

	for i, tok := range list {
		rows[i] = []string{
			strconv.Itoa(tok.Line) + ":" + strconv.Itoa(tok.Column),
			strconv.Itoa(tok.ID),
			tok.Type,
			strconv.Quote(tok.Value),
		}
	}

	return table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("POS", "ID", "TYPE", "VALUE").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tokenHeaderStyle
			}

			return tokenCellStyle
		}).
		String()
}
