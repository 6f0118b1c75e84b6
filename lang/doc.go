// Package lang implements the lexer, parser and syntax tree of the template
// language.
//
// # Syntax
//
// Templates mix literal text with three kinds of markup:
//
//	{{ expression }}        print
//	{% statement ... %}     control flow and composition
//	{# comment #}           ignored
//
// A hyphen on the inner side of a delimiter ("{%-", "-}}") requests that
// the adjacent whitespace be trimmed.
//
// Expressions support arithmetic (+ - * / // % **), string concatenation
// (~), comparisons, and/or/not, membership (in, not in), integer ranges
// (1..5), member access and indexing, list and map literals, function and
// namespaced calls (path.join(a, b)), filters (name | upper), tests
// (n is odd), lambdas (x => x * 2), null coalescing (a ?? b) and the
// conditional operator (c ? a : b). A number directly followed by a
// parenthesis multiplies: 2(3 + 4) is 14.
//
// Statements are if/elif/else, for/else, set, block, extends, include,
// embed, macro, import, from ... import, scope, cache and do.
//
// # Pipeline
//
// Text is split into raw spans, each classified by a chain of recognizers
// into [Token] values. Every span, including whitespace and comments, is
// logged in the [Source] so offsets can be mapped back to lines and
// columns. A [Parser] walks the token stream with a [Cursor] and a
// registry of sub-parsers keyed by [ParserID]:
//
//	tmpl, err := lang.ParseString(ctx, "page", "Hello {{ name | upper }}!")
//
//	expr, err := lang.ParseExpr(ctx, "2(3 + 4)")
//
// [Parser.Parse] caches results by content hash. Cached trees are shared;
// use [Clone] before modifying one.
package lang
