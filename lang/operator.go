package lang

import "maps"

// Assoc is operator associativity.
type Assoc uint8

const (
	AssocLeft Assoc = iota
	AssocRight
)

// Operator describes one entry of the operator table.
type Operator struct {
	Type       TokenType
	Symbol     string
	Precedence int
	Assoc      Assoc
}

// Binding powers of the default table. Higher binds tighter.
const (
	PrecOr         = 10
	PrecAnd        = 20
	PrecNot        = 25
	PrecComparison = 30
	PrecConcat     = 40
	PrecRange      = 45
	PrecAdditive   = 50
	PrecMultiply   = 60
	PrecPrefix     = 65
	PrecPower      = 70
)

// Operators is an immutable operator table. Derive modified tables with
// [Operators.WithBinary] and [Operators.WithUnary].
type Operators struct {
	binary map[TokenType]Operator
	unary  map[TokenType]Operator
}

// DefaultOperators returns the standard table.
func DefaultOperators() Operators {
	binary := []Operator{
		{TokenOr, "or", PrecOr, AssocLeft},
		{TokenAnd, "and", PrecAnd, AssocLeft},
		{TokenEq, "==", PrecComparison, AssocLeft},
		{TokenNe, "!=", PrecComparison, AssocLeft},
		{TokenLt, "<", PrecComparison, AssocLeft},
		{TokenLe, "<=", PrecComparison, AssocLeft},
		{TokenGt, ">", PrecComparison, AssocLeft},
		{TokenGe, ">=", PrecComparison, AssocLeft},
		{TokenIn, "in", PrecComparison, AssocLeft},
		{TokenIs, "is", PrecComparison, AssocLeft},
		{TokenTilde, "~", PrecConcat, AssocLeft},
		{TokenRange, "..", PrecRange, AssocLeft},
		{TokenPlus, "+", PrecAdditive, AssocLeft},
		{TokenMinus, "-", PrecAdditive, AssocLeft},
		{TokenStar, "*", PrecMultiply, AssocLeft},
		{TokenSlash, "/", PrecMultiply, AssocLeft},
		{TokenFloorDiv, "//", PrecMultiply, AssocLeft},
		{TokenPercent, "%", PrecMultiply, AssocLeft},
		{TokenPower, "**", PrecPower, AssocRight},
	}

	unary := []Operator{
		{TokenNot, "not", PrecNot, AssocRight},
		{TokenMinus, "-", PrecPrefix, AssocRight},
		{TokenPlus, "+", PrecPrefix, AssocRight},
		{TokenIncrement, "++", PrecPrefix, AssocRight},
		{TokenDecrement, "--", PrecPrefix, AssocRight},
	}

	ops := Operators{
		binary: make(map[TokenType]Operator, len(binary)),
		unary:  make(map[TokenType]Operator, len(unary)),
	}

	for _, op := range binary {
		ops.binary[op.Type] = op
	}

	for _, op := range unary {
		ops.unary[op.Type] = op
	}

	return ops
}

// Binary returns the infix operator for t.
func (o Operators) Binary(t TokenType) (Operator, bool) {
	op, ok := o.binary[t]

	return op, ok
}

// Unary returns the prefix operator for t.
func (o Operators) Unary(t TokenType) (Operator, bool) {
	op, ok := o.unary[t]

	return op, ok
}

// WithBinary returns a copy of o with op added or replaced.
func (o Operators) WithBinary(op Operator) Operators {
	o.binary = maps.Clone(o.binary)
	o.binary[op.Type] = op

	return o
}

// WithUnary returns a copy of o with op added or replaced.
func (o Operators) WithUnary(op Operator) Operators {
	o.unary = maps.Clone(o.unary)
	o.unary[op.Type] = op

	return o
}

// WithoutBinary returns a copy of o without the infix operator for t.
func (o Operators) WithoutBinary(t TokenType) Operators {
	o.binary = maps.Clone(o.binary)
	delete(o.binary, t)

	return o
}
