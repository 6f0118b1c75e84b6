package lang

import (
	"slices"
	"strconv"
	"strings"
)

// Group is a bit set classifying token types.
type Group uint16

const (
	GroupComparison Group = 1 << iota
	GroupAssignment
	GroupArithmetic
	GroupLogical
	GroupLiteral
	GroupKeyword
	GroupPunctuation
	GroupMarkup
	GroupTrivia
)

// TokenType identifies an entry of the token catalog.
type TokenType uint8

const (
	TokenUnknown TokenType = iota
	TokenStart
	TokenEnd

	// markup
	TokenText
	TokenOpenPrint
	TokenClosePrint
	TokenOpenStmt
	TokenCloseStmt

	// trivia, logged in the source but never handed to the parser
	TokenWhitespace
	TokenComment

	// literals and names
	TokenIdent
	TokenString
	TokenInt
	TokenFloat
	TokenTrue
	TokenFalse
	TokenNull

	// punctuation
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenLBrace
	TokenRBrace
	TokenComma
	TokenDot
	TokenColon
	TokenPipe
	TokenQuestion
	TokenArrow
	TokenRange
	TokenNullCoalesce

	// arithmetic
	TokenPlus
	TokenMinus
	TokenStar
	TokenSlash
	TokenFloorDiv
	TokenPercent
	TokenPower
	TokenTilde
	TokenIncrement
	TokenDecrement

	// comparison
	TokenEq
	TokenNe
	TokenLt
	TokenLe
	TokenGt
	TokenGe

	// assignment
	TokenAssign

	// logical
	TokenAnd
	TokenOr
	TokenNot

	// keywords
	TokenIs
	TokenIn
	TokenIf
	TokenElif
	TokenElse
	TokenEndIf
	TokenFor
	TokenEndFor
	TokenSet
	TokenEndSet
	TokenBlock
	TokenEndBlock
	TokenExtends
	TokenInclude
	TokenEmbed
	TokenEndEmbed
	TokenMacro
	TokenEndMacro
	TokenImport
	TokenFrom
	TokenAs
	TokenWith
	TokenOnly
	TokenIgnore
	TokenMissing
	TokenScope
	TokenEndScope
	TokenCache
	TokenEndCache
	TokenDo

	tokenTypeCount
)

// TokenInfo describes one catalog entry.
type TokenInfo struct {
	Type      TokenType
	Name      string
	Spellings []string
	Groups    Group
}

var catalog = [tokenTypeCount]TokenInfo{
	TokenUnknown: {Name: "unknown"},
	TokenStart:   {Name: "start of input"},
	TokenEnd:     {Name: "end of input"},

	TokenText:       {Name: "text", Groups: GroupMarkup},
	TokenOpenPrint:  {Name: "print open", Spellings: []string{"{{", "{{-"}, Groups: GroupMarkup},
	TokenClosePrint: {Name: "print close", Spellings: []string{"}}", "-}}"}, Groups: GroupMarkup},
	TokenOpenStmt:   {Name: "statement open", Spellings: []string{"{%", "{%-"}, Groups: GroupMarkup},
	TokenCloseStmt:  {Name: "statement close", Spellings: []string{"%}", "-%}"}, Groups: GroupMarkup},

	TokenWhitespace: {Name: "whitespace", Groups: GroupTrivia},
	TokenComment:    {Name: "comment", Groups: GroupTrivia},

	TokenIdent:  {Name: "identifier"},
	TokenString: {Name: "string", Groups: GroupLiteral},
	TokenInt:    {Name: "integer", Groups: GroupLiteral},
	TokenFloat:  {Name: "float", Groups: GroupLiteral},
	TokenTrue:   {Name: "true", Spellings: []string{"true", "True"}, Groups: GroupLiteral | GroupKeyword},
	TokenFalse:  {Name: "false", Spellings: []string{"false", "False"}, Groups: GroupLiteral | GroupKeyword},
	TokenNull:   {Name: "null", Spellings: []string{"null", "none", "None", "nil"}, Groups: GroupLiteral | GroupKeyword},

	TokenLParen:       {Name: "(", Spellings: []string{"("}, Groups: GroupPunctuation},
	TokenRParen:       {Name: ")", Spellings: []string{")"}, Groups: GroupPunctuation},
	TokenLBracket:     {Name: "[", Spellings: []string{"["}, Groups: GroupPunctuation},
	TokenRBracket:     {Name: "]", Spellings: []string{"]"}, Groups: GroupPunctuation},
	TokenLBrace:       {Name: "{", Spellings: []string{"{"}, Groups: GroupPunctuation},
	TokenRBrace:       {Name: "}", Spellings: []string{"}"}, Groups: GroupPunctuation},
	TokenComma:        {Name: ",", Spellings: []string{","}, Groups: GroupPunctuation},
	TokenDot:          {Name: ".", Spellings: []string{"."}, Groups: GroupPunctuation},
	TokenColon:        {Name: ":", Spellings: []string{":"}, Groups: GroupPunctuation},
	TokenPipe:         {Name: "|", Spellings: []string{"|"}, Groups: GroupPunctuation},
	TokenQuestion:     {Name: "?", Spellings: []string{"?"}, Groups: GroupPunctuation},
	TokenArrow:        {Name: "=>", Spellings: []string{"=>"}, Groups: GroupPunctuation},
	TokenRange:        {Name: "..", Spellings: []string{".."}, Groups: GroupPunctuation},
	TokenNullCoalesce: {Name: "??", Spellings: []string{"??"}, Groups: GroupPunctuation},

	TokenPlus:      {Name: "+", Spellings: []string{"+"}, Groups: GroupArithmetic},
	TokenMinus:     {Name: "-", Spellings: []string{"-"}, Groups: GroupArithmetic},
	TokenStar:      {Name: "*", Spellings: []string{"*"}, Groups: GroupArithmetic},
	TokenSlash:     {Name: "/", Spellings: []string{"/"}, Groups: GroupArithmetic},
	TokenFloorDiv:  {Name: "//", Spellings: []string{"//"}, Groups: GroupArithmetic},
	TokenPercent:   {Name: "%", Spellings: []string{"%"}, Groups: GroupArithmetic},
	TokenPower:     {Name: "**", Spellings: []string{"**"}, Groups: GroupArithmetic},
	TokenTilde:     {Name: "~", Spellings: []string{"~"}, Groups: GroupArithmetic},
	TokenIncrement: {Name: "++", Spellings: []string{"++"}, Groups: GroupArithmetic},
	TokenDecrement: {Name: "--", Spellings: []string{"--"}, Groups: GroupArithmetic},

	TokenEq: {Name: "==", Spellings: []string{"=="}, Groups: GroupComparison},
	TokenNe: {Name: "!=", Spellings: []string{"!="}, Groups: GroupComparison},
	TokenLt: {Name: "<", Spellings: []string{"<"}, Groups: GroupComparison},
	TokenLe: {Name: "<=", Spellings: []string{"<="}, Groups: GroupComparison},
	TokenGt: {Name: ">", Spellings: []string{">"}, Groups: GroupComparison},
	TokenGe: {Name: ">=", Spellings: []string{">="}, Groups: GroupComparison},

	TokenAssign: {Name: "=", Spellings: []string{"="}, Groups: GroupAssignment},

	TokenAnd: {Name: "and", Spellings: []string{"and", "&&"}, Groups: GroupLogical | GroupKeyword},
	TokenOr:  {Name: "or", Spellings: []string{"or", "||"}, Groups: GroupLogical | GroupKeyword},
	TokenNot: {Name: "not", Spellings: []string{"not", "!"}, Groups: GroupLogical | GroupKeyword},

	TokenIs:       {Name: "is", Spellings: []string{"is"}, Groups: GroupComparison | GroupKeyword},
	TokenIn:       {Name: "in", Spellings: []string{"in"}, Groups: GroupComparison | GroupKeyword},
	TokenIf:       {Name: "if", Spellings: []string{"if"}, Groups: GroupKeyword},
	TokenElif:     {Name: "elif", Spellings: []string{"elif", "elseif"}, Groups: GroupKeyword},
	TokenElse:     {Name: "else", Spellings: []string{"else"}, Groups: GroupKeyword},
	TokenEndIf:    {Name: "endif", Spellings: []string{"endif"}, Groups: GroupKeyword},
	TokenFor:      {Name: "for", Spellings: []string{"for"}, Groups: GroupKeyword},
	TokenEndFor:   {Name: "endfor", Spellings: []string{"endfor"}, Groups: GroupKeyword},
	TokenSet:      {Name: "set", Spellings: []string{"set"}, Groups: GroupKeyword},
	TokenEndSet:   {Name: "endset", Spellings: []string{"endset"}, Groups: GroupKeyword},
	TokenBlock:    {Name: "block", Spellings: []string{"block"}, Groups: GroupKeyword},
	TokenEndBlock: {Name: "endblock", Spellings: []string{"endblock"}, Groups: GroupKeyword},
	TokenExtends:  {Name: "extends", Spellings: []string{"extends"}, Groups: GroupKeyword},
	TokenInclude:  {Name: "include", Spellings: []string{"include"}, Groups: GroupKeyword},
	TokenEmbed:    {Name: "embed", Spellings: []string{"embed"}, Groups: GroupKeyword},
	TokenEndEmbed: {Name: "endembed", Spellings: []string{"endembed"}, Groups: GroupKeyword},
	TokenMacro:    {Name: "macro", Spellings: []string{"macro"}, Groups: GroupKeyword},
	TokenEndMacro: {Name: "endmacro", Spellings: []string{"endmacro"}, Groups: GroupKeyword},
	TokenImport:   {Name: "import", Spellings: []string{"import"}, Groups: GroupKeyword},
	TokenFrom:     {Name: "from", Spellings: []string{"from"}, Groups: GroupKeyword},
	TokenAs:       {Name: "as", Spellings: []string{"as"}, Groups: GroupKeyword},
	TokenWith:     {Name: "with", Spellings: []string{"with"}, Groups: GroupKeyword},
	TokenOnly:     {Name: "only", Spellings: []string{"only"}, Groups: GroupKeyword},
	TokenIgnore:   {Name: "ignore", Spellings: []string{"ignore"}, Groups: GroupKeyword},
	TokenMissing:  {Name: "missing", Spellings: []string{"missing"}, Groups: GroupKeyword},
	TokenScope:    {Name: "scope", Spellings: []string{"scope"}, Groups: GroupKeyword},
	TokenEndScope: {Name: "endscope", Spellings: []string{"endscope"}, Groups: GroupKeyword},
	TokenCache:    {Name: "cache", Spellings: []string{"cache"}, Groups: GroupKeyword},
	TokenEndCache: {Name: "endcache", Spellings: []string{"endcache"}, Groups: GroupKeyword},
	TokenDo:       {Name: "do", Spellings: []string{"do"}, Groups: GroupKeyword},
}

func init() {
	for i := range catalog {
		catalog[i].Type = TokenType(i)
	}
}

// Info returns the catalog entry of t.
func (t TokenType) Info() TokenInfo {
	if t >= tokenTypeCount {
		return catalog[TokenUnknown]
	}

	return catalog[t]
}

// ID returns the numeric id of t.
func (t TokenType) ID() int { return int(t) }

// String returns the display name of t.
func (t TokenType) String() string {
	if t >= tokenTypeCount {
		return "token(" + strconv.Itoa(int(t)) + ")"
	}

	return catalog[t].Name
}

// In reports whether t belongs to every group in g.
func (t TokenType) In(g Group) bool { return t.Info().Groups&g == g }

// Any reports whether t is one of types.
func (t TokenType) Any(types ...TokenType) bool {
	return slices.Contains(types, t)
}

// Name reports whether t may serve as a name in expression position:
// identifiers, and keywords that have no meaning inside expressions.
func (t TokenType) Name() bool {
	switch t {
	case TokenIdent:
		return true
	case TokenTrue, TokenFalse, TokenNull,
		TokenAnd, TokenOr, TokenNot, TokenIs, TokenIn:
		return false
	default:
		return t.In(GroupKeyword)
	}
}

// Catalog returns a copy of all catalog entries ordered by id.
func Catalog() []TokenInfo {
	out := make([]TokenInfo, len(catalog))
	copy(out, catalog[:])

	return out
}

// RawKind is the coarse classification assigned by the splitter.
type RawKind uint8

const (
	RawUnknown RawKind = iota
	RawString
	RawNumber
	RawIdentifier
	RawOperator
	RawOpenTag
	RawCloseTag
	RawText
	RawWhitespace
	RawComment
)

var rawKindName = [...]string{
	RawUnknown:    "UNKNOWN",
	RawString:     "STRING",
	RawNumber:     "NUMBER",
	RawIdentifier: "IDENTIFIER",
	RawOperator:   "OPERATOR",
	RawOpenTag:    "OPEN_TAG",
	RawCloseTag:   "CLOSE_TAG",
	RawText:       "RAW_TEXT",
	RawWhitespace: "WHITESPACE",
	RawComment:    "COMMENT",
}

func (k RawKind) String() string {
	if int(k) < len(rawKindName) {
		return rawKindName[k]
	}

	return "UNKNOWN"
}

// RawToken is a source span produced by the splitter before recognition.
type RawToken struct {
	Value  string
	Offset int
	Length int
	Kind   RawKind
}

// Token is a classified lexical unit. Value is the exact source text of the
// span, so string tokens keep their quotes.
type Token struct {
	Value   string
	Type    TokenType
	Ordinal int
	Offset  int
	Length  int
	Line    int
}

// Is reports whether the token's type is one of types.
func (t Token) Is(types ...TokenType) bool { return t.Type.Any(types...) }

// End returns the offset just past the token.
func (t Token) End() int { return t.Offset + t.Length }

// TrimLeft reports whether an opening tag requests trimming of the
// whitespace that precedes it ("{%-").
func (t Token) TrimLeft() bool {
	return t.Is(TokenOpenPrint, TokenOpenStmt) && strings.HasSuffix(t.Value, "-")
}

// TrimRight reports whether a closing tag requests trimming of the
// whitespace that follows it ("-%}").
func (t Token) TrimRight() bool {
	return t.Is(TokenClosePrint, TokenCloseStmt) && strings.HasPrefix(t.Value, "-")
}

func (t Token) String() string {
	switch t.Type {
	case TokenStart, TokenEnd:
		return t.Type.String()
	case TokenText:
		return "text"
	default:
		return strconv.Quote(t.Value)
	}
}
