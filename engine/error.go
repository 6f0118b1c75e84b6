package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/ihontarenko/jmouse-sub007/lang"
)

// Predefined errors (sentinel values).
var (
	ErrCircularReference = lang.NewError("circular template reference")
	ErrUnresolvedSymbol  = lang.NewError("unresolved symbol")
	ErrTemplateNotFound  = lang.NewError("template not found")
	ErrEvaluation        = lang.NewError("evaluation failed")
	ErrRecursionLimit    = lang.NewError("recursion limit exceeded")
	ErrArgumentCount     = lang.NewError("wrong number of arguments")
	ErrExprCompile       = lang.NewError("expression compilation failed")
	ErrExprEvaluate      = lang.NewError("expression evaluation failed")
)

// chainSeparator joins template names in recursion and cycle reports.
const chainSeparator = " → "

// templateNotFound reports a missing template. The result matches both
// [ErrTemplateNotFound] and [ErrUnresolvedSymbol], and cause if given.
func templateNotFound(name string, cause error) error {
	detail := errors.New(strconv.Quote(name))
	if cause != nil {
		detail = fmt.Errorf("%q: %w", name, cause)
	}

	return ErrTemplateNotFound.
		Wrap(ErrUnresolvedSymbol.Wrap(detail)).
		With(slog.String("template", name))
}

func joinChain(chain []string, name string) string {
	return strings.Join(append(slices.Clone(chain), name), chainSeparator)
}

func circular(chain []string, name string) error {
	path := joinChain(chain, name)

	return ErrCircularReference.Wrap(errors.New(path)).With(
		slog.String("template", name),
		slog.String("chain", path),
	)
}

func recursionLimit(chain []string, name string, limit int) error {
	path := joinChain(chain, name)

	return ErrRecursionLimit.Wrap(errors.New(path)).With(
		slog.String("chain", path),
		slog.Int("max_depth", limit),
	)
}

// unresolved returns an [ErrUnresolvedSymbol] for the kind of symbol name,
// suggesting the closest of candidates.
func unresolved(kind, name string, candidates []string) error {
	msg := kind + " " + strconv.Quote(name)

	s := suggest(name, candidates)
	if len(s) > 0 {
		msg += " (did you mean " + strings.Join(s, ", ") + "?)"
	}

	return ErrUnresolvedSymbol.Wrap(errors.New(msg)).With(
		slog.String(kind, name),
		slog.Any("suggestions", s),
	)
}

// suggest returns up to three fuzzy matches for name.
func suggest(name string, candidates []string) []string {
	const limit = 3

	matches := fuzzy.Find(name, candidates)

	out := make([]string, 0, limit)
	for _, m := range matches {
		if len(out) == limit {
			break
		}

		out = append(out, m.Str)
	}

	return out
}

// evalError attributes err to node. Errors that already carry an
// evaluation failure, a cycle or the recursion limit pass through.
func evalError(node lang.Node, err error) error {
	if errors.Is(err, ErrEvaluation) || errors.Is(err, ErrCircularReference) ||
		errors.Is(err, ErrRecursionLimit) {
		return err
	}

	if node == nil {
		return ErrEvaluation.Wrap(err)
	}

	return ErrEvaluation.Wrap(err).With(
		slog.String("node", node.Kind().String()),
		slog.Int("line", node.Line()),
	)
}

// recoverCall stores a panic raised by the call named name in err. It
// must be deferred directly.
func recoverCall(name string, err *error) {
	if r := recover(); r != nil {
		*err = failf("%s: panic: %v", name, r)
	}
}

// failf returns an evaluation error with a formatted cause.
func failf(format string, args ...any) error {
	return ErrEvaluation.Wrap(fmt.Errorf(format, args...))
}
