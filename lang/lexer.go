package lang

import (
	"context"
	"log/slog"

	"github.com/ihontarenko/jmouse-sub007/log"
)

// lexer turns a [Source] into a token stream. It is immutable and safe for
// concurrent use on distinct sources.
type lexer struct {
	delims      Delims
	recognizers recognizers
	logger      log.Logger
}

// newLexer returns a lexer using the default recognizers for delims plus
// extra, ordered by priority.
func newLexer(delims Delims, logger log.Logger, extra ...rankedRecognizer) lexer {
	chain := defaultRecognizers(delims)
	for _, r := range extra {
		chain = chain.with(r.priority, r.Recognizer)
	}

	return lexer{delims: delims, recognizers: chain, logger: logger}
}

// tokenize splits and classifies src. The returned stream always starts
// with [TokenStart] and ends with [TokenEnd]. Whitespace and comments are
// recorded in the source log but left out of the stream.
func (l lexer) tokenize(ctx context.Context, src *Source, exprOnly bool) []Token {
	raw := split(src.Text(), l.delims, exprOnly)

	src.reset()

	tokens := make([]Token, 0, len(raw)+2)
	tokens = append(tokens, Token{Type: TokenStart, Line: 1})

	unknown := 0

	for _, r := range raw {
		t := l.recognizers.recognize(r)
		src.Log(r.Offset, r.Length, t)

		if t.In(GroupTrivia) {
			continue
		}

		if t == TokenUnknown {
			unknown++
		}

		tokens = append(tokens, Token{
			Value:   r.Value,
			Type:    t,
			Ordinal: len(tokens),
			Offset:  r.Offset,
			Length:  r.Length,
			Line:    src.Line(r.Offset),
		})
	}

	tokens = append(tokens, Token{
		Type:    TokenEnd,
		Ordinal: len(tokens),
		Offset:  src.Len(),
		Line:    src.Line(src.Len()),
	})

	l.logger.TraceContext(ctx, "tokenized",
		slog.String("source", src.Name()),
		slog.Int("spans", len(raw)),
		slog.Int("tokens", len(tokens)),
		slog.Int("unknown", unknown),
		slog.Bool("expression", exprOnly))

	return tokens
}
