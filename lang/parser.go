package lang

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"strconv"
	"sync"

	"github.com/klauspost/readahead"

	"github.com/ihontarenko/jmouse-sub007/log"
)

// DefaultMaxDepth bounds how deeply sub-parsers may recurse.
const DefaultMaxDepth = 1000

// ParserID names an entry of the sub-parser registry.
type ParserID string

// Built-in sub-parsers.
const (
	ParserTemplate   ParserID = "template"
	ParserExpression ParserID = "expression"
	ParserOperator   ParserID = "operator"
	ParserPrimary    ParserID = "primary"
	ParserLiteral    ParserID = "literal"
	ParserArray      ParserID = "array"
	ParserMap        ParserID = "map"
	ParserLambda     ParserID = "lambda"
	ParserCall       ParserID = "call"
	ParserFunction   ParserID = "function"
	ParserFilter     ParserID = "filter"
	ParserTest       ParserID = "test"
)

// SubParser parses one construct starting at the cursor.
type SubParser interface {
	Parse(pc *ParseContext, c *Cursor) (Node, error)
}

// SubParserFunc adapts a function to [SubParser].
type SubParserFunc func(pc *ParseContext, c *Cursor) (Node, error)

// Parse calls f.
func (f SubParserFunc) Parse(pc *ParseContext, c *Cursor) (Node, error) { return f(pc, c) }

// Options is the scratch slot sub-parsers use to pass hints to the next
// sub-parser they invoke. It is cleared by the consumer.
type Options struct {
	// Next selects which call node [ParserCall] builds: [ParserFunction],
	// [ParserFilter] or [ParserTest].
	Next ParserID
	// Operand is the piped or tested value of a filter or test call.
	Operand Node
	// Negated marks an "is not" test.
	Negated bool
}

// Parser holds an immutable sub-parser registry, statement registry and
// operator table. A Parser is safe for concurrent use; each parse runs with
// its own [ParseContext].
type Parser struct {
	subparsers  map[ParserID]SubParser
	statements  map[TokenType]SubParser
	operators   Operators
	delims      Delims
	recognizers []rankedRecognizer
	maxDepth    int
	logger      log.Logger

	lexer lexer
	cache *sync.Map
}

// Option configures a [Parser].
type Option func(*Parser)

// WithLogger sets the structured logger for trace-level debugging.
// If not provided, the logger is zero-valued and all logging is a no-op.
func WithLogger(logger log.Logger) Option {
	return func(p *Parser) { p.logger = logger }
}

// WithMaxDepth sets the maximum sub-parser recursion depth.
func WithMaxDepth(depth int) Option {
	return func(p *Parser) { p.maxDepth = depth }
}

// WithDelims replaces the markup delimiters.
func WithDelims(d Delims) Option {
	return func(p *Parser) { p.delims = d }
}

// WithOperators replaces the operator table.
func WithOperators(ops Operators) Option {
	return func(p *Parser) { p.operators = ops }
}

// WithSubParser registers or replaces a sub-parser.
func WithSubParser(id ParserID, sp SubParser) Option {
	return func(p *Parser) { p.subparsers[id] = sp }
}

// WithStatement registers or replaces the parser of the statement
// introduced by keyword t.
func WithStatement(t TokenType, sp SubParser) Option {
	return func(p *Parser) { p.statements[t] = sp }
}

// WithRecognizer adds a token recognition strategy. Strategies run in
// descending priority; the built-in catalog match has [PriorityCatalog].
func WithRecognizer(priority int, r Recognizer) Option {
	return func(p *Parser) {
		p.recognizers = append(p.recognizers, rankedRecognizer{priority, r})
	}
}

// NewParser returns a parser with the built-in grammar.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		subparsers: map[ParserID]SubParser{
			ParserTemplate:   SubParserFunc(parseTemplate),
			ParserExpression: SubParserFunc(parseExpression),
			ParserOperator:   SubParserFunc(parseOperator),
			ParserPrimary:    SubParserFunc(parsePrimary),
			ParserLiteral:    SubParserFunc(parseLiteral),
			ParserArray:      SubParserFunc(parseArray),
			ParserMap:        SubParserFunc(parseMap),
			ParserLambda:     SubParserFunc(parseLambda),
			ParserCall:       SubParserFunc(parseCall),
			ParserFilter:     SubParserFunc(parseFilter),
			ParserTest:       SubParserFunc(parseTest),
		},
		statements: map[TokenType]SubParser{
			TokenIf:      SubParserFunc(parseIf),
			TokenFor:     SubParserFunc(parseFor),
			TokenSet:     SubParserFunc(parseSet),
			TokenBlock:   SubParserFunc(parseBlock),
			TokenExtends: SubParserFunc(parseExtends),
			TokenInclude: SubParserFunc(parseInclude),
			TokenEmbed:   SubParserFunc(parseEmbed),
			TokenMacro:   SubParserFunc(parseMacro),
			TokenImport:  SubParserFunc(parseImport),
			TokenFrom:    SubParserFunc(parseFrom),
			TokenScope:   SubParserFunc(parseScope),
			TokenCache:   SubParserFunc(parseCache),
			TokenDo:      SubParserFunc(parseDo),
		},
		operators: DefaultOperators(),
		delims:    DefaultDelims(),
		maxDepth:  DefaultMaxDepth,
	}

	return p.build(opts...)
}

// With returns a new parser derived from p with opts applied. The receiver
// is not modified. The derived parser starts with an empty parse cache.
func (p *Parser) With(opts ...Option) *Parser {
	q := &Parser{
		subparsers:  maps.Clone(p.subparsers),
		statements:  maps.Clone(p.statements),
		operators:   p.operators,
		delims:      p.delims,
		recognizers: append([]rankedRecognizer(nil), p.recognizers...),
		maxDepth:    p.maxDepth,
		logger:      p.logger,
	}

	return q.build(opts...)
}

func (p *Parser) build(opts ...Option) *Parser {
	for _, opt := range opts {
		opt(p)
	}

	p.lexer = newLexer(p.delims, p.logger, p.recognizers...)
	p.cache = new(sync.Map)

	return p
}

// Operators returns the operator table.
func (p *Parser) Operators() Operators { return p.operators }

// Tokenize returns the template-mode token stream of src.
func (p *Parser) Tokenize(ctx context.Context, src *Source) []Token {
	return p.lexer.tokenize(ctx, src, false)
}

// TokenizeExpr returns the token stream of src read as a bare expression.
func (p *Parser) TokenizeExpr(ctx context.Context, src *Source) []Token {
	return p.lexer.tokenize(ctx, src, true)
}

// ParseTemplate parses src without consulting the cache.
func (p *Parser) ParseTemplate(ctx context.Context, src *Source) (*Template, error) {
	c := NewCursor(p.Tokenize(ctx, src), src)
	pc := p.newContext(ctx)

	n, err := pc.Parse(ParserTemplate, c)
	if err != nil {
		return nil, err
	}

	tmpl, ok := n.(*Template)
	if !ok {
		return nil, ErrParse.With(slog.String("issue", "template parser returned "+n.Kind().String()))
	}

	p.logger.TraceContext(ctx, "parse complete",
		slog.String("source", src.Name()),
		slog.Int("statements", len(tmpl.Children())))

	return tmpl, nil
}

// ParseExpr parses src as a single expression. Trailing tokens are an
// error.
func (p *Parser) ParseExpr(ctx context.Context, src *Source) (Node, error) {
	c := NewCursor(p.TokenizeExpr(ctx, src), src)
	pc := p.newContext(ctx)

	n, err := pc.Parse(ParserExpression, c)
	if err != nil {
		return nil, err
	}

	if !c.Done() {
		return nil, c.Unexpected(TokenEnd)
	}

	return n, nil
}

// Parse parses text as a template named name. Results are cached by
// content; the returned tree is shared and must not be modified. Use
// [Clone] to obtain a private copy.
func (p *Parser) Parse(ctx context.Context, name, text string) (*Template, error) {
	return p.parseCached(ctx, name, text)
}

// ParseReader reads r to completion and parses it like [Parser.Parse].
func (p *Parser) ParseReader(ctx context.Context, name string, r io.Reader) (*Template, error) {
	ra := readahead.NewReader(r)
	defer ra.Close()

	data, err := io.ReadAll(ra)
	if err != nil {
		return nil, ErrReadInput.Wrap(err).With(slog.String("source", name))
	}

	p.logger.TraceContext(ctx, "read input",
		slog.String("source", name),
		slog.Int("source_bytes", len(data)),
		slog.Bool("read_ahead", true))

	return p.parseCached(ctx, name, string(data))
}

func (p *Parser) newContext(ctx context.Context) *ParseContext {
	return &ParseContext{ctx: ctx, parser: p}
}

var defaultParser = sync.OnceValue(func() *Parser { return NewParser() })

func parserFor(opts []Option) *Parser {
	if len(opts) == 0 {
		return defaultParser()
	}

	return NewParser(opts...)
}

// ParseString parses a template with a shared default parser, or a new
// parser when options are given.
func ParseString(ctx context.Context, name, text string, opts ...Option) (*Template, error) {
	return parserFor(opts).Parse(ctx, name, text)
}

// ParseReader parses a template read from r.
func ParseReader(ctx context.Context, name string, r io.Reader, opts ...Option) (*Template, error) {
	return parserFor(opts).ParseReader(ctx, name, r)
}

// ParseExpr parses a bare expression.
func ParseExpr(ctx context.Context, text string, opts ...Option) (Node, error) {
	return parserFor(opts).ParseExpr(ctx, NewSource("", text))
}

// Tokenize returns the template-mode token stream of text.
func Tokenize(ctx context.Context, name, text string, opts ...Option) ([]Token, *Source) {
	src := NewSource(name, text)

	return parserFor(opts).Tokenize(ctx, src), src
}

// ParseContext carries the state of one parse: the registries of its
// parser, the option scratch slot and the recursion depth.
type ParseContext struct {
	ctx     context.Context
	parser  *Parser
	depth   int
	Options Options
}

// Context returns the context of the parse.
func (pc *ParseContext) Context() context.Context { return pc.ctx }

// Operators returns the operator table in effect.
func (pc *ParseContext) Operators() Operators { return pc.parser.operators }

// Parse invokes the sub-parser registered under id.
func (pc *ParseContext) Parse(id ParserID, c *Cursor) (Node, error) {
	sp, ok := pc.parser.subparsers[id]
	if !ok {
		return nil, &ParseError{
			Token:   c.Peek(),
			Message: "no sub-parser registered for " + strconv.Quote(string(id)),
			Source:  c.Source(),
		}
	}

	pc.depth++
	defer func() { pc.depth-- }()

	if pc.depth > pc.parser.maxDepth {
		return nil, &ParseError{
			Token:   c.Peek(),
			Message: "nesting exceeds " + strconv.Itoa(pc.parser.maxDepth),
			Source:  c.Source(),
			Err:     ErrMaxDepthExceeded,
		}
	}

	if err := pc.ctx.Err(); err != nil {
		return nil, err
	}

	return sp.Parse(pc, c)
}

// Statement parses the statement whose keyword is at the cursor. The
// opening tag has been consumed.
func (pc *ParseContext) Statement(c *Cursor) (Node, error) {
	kw := c.Peek()

	sp, ok := pc.parser.statements[kw.Type]
	if !ok {
		// A stray end tag or other reserved word is a syntax error rather
		// than an unknown statement.
		if kw.Type == TokenUnknown || kw.Type.In(GroupKeyword) {
			return nil, c.Unexpected()
		}

		return nil, &ParseError{
			Token:   kw,
			Message: "unknown statement " + kw.String(),
			Source:  c.Source(),
			Err:     ErrUnknownStatement,
		}
	}

	pc.depth++
	defer func() { pc.depth-- }()

	return sp.Parse(pc, c)
}

// takeOptions returns the scratch slot and clears it.
func (pc *ParseContext) takeOptions() Options {
	opts := pc.Options
	pc.Options = Options{}

	return opts
}
