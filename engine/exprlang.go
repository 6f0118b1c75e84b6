package engine

import (
	"log/slog"
	"maps"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/zeebo/xxh3"
)

// program is a compiled expr-lang source shared by every render.
type program struct {
	once sync.Once
	prog *vm.Program
	err  error
}

var programs sync.Map // map[uint64]*program

// compileExpr compiles source once per process. Programs are compiled
// without a typed environment so they can run against any variables.
func compileExpr(source string) (*vm.Program, error) {
	v, _ := programs.LoadOrStore(xxh3.HashString(source), &program{})
	p := v.(*program)

	p.once.Do(func() {
		p.prog, p.err = expr.Compile(source, expr.AllowUndefinedVariables())
		if p.err != nil {
			p.err = ErrExprCompile.Wrap(p.err).With(slog.String("source", source))
		}
	})

	return p.prog, p.err
}

// fnExpr evaluates an expr-lang expression over the variables in scope,
// overlaid with the optional map argument.
func fnExpr(ec *Context, args Args) (any, error) {
	source := ToString(args.At(0))

	prog, err := compileExpr(source)
	if err != nil {
		return nil, err
	}

	env := ec.Vars()
	for k, v := range env {
		if IsUndefined(v) {
			delete(env, k)
		}
	}

	if args.Len() > 1 {
		extra, ok := args.At(1).(map[string]any)
		if !ok {
			return nil, failf("expr environment must be a mapping, got %s", describe(args.At(1)))
		}

		maps.Copy(env, extra)
	}

	out, err := expr.Run(prog, env)
	if err != nil {
		return nil, ErrExprEvaluate.Wrap(err).With(slog.String("source", source))
	}

	return normalize(out), nil
}
