// Package exprtree holds the immutable parse tree for the arithmetic
// expression grammar of spec §4.4. Node layout follows the teacher's
// one-struct-per-node-kind style (internal/parser/ast.go), but the tree is
// read by a single consumer (internal/evaluator) so there is no visitor
// interface — a type switch is all a tree-walker needs.
package exprtree

// Expr is any node of the tree. Const and Var are leaves; Func is the
// only interior node kind, covering both operators (+, -, *, /, %, ^) and
// named calls — arithmetic operators are just two-ary builtin functions
// under the hood, matching how the grammar itself treats them.
type Expr interface {
	isExpr()
}

// Const is a literal number.
type Const struct {
	Value float64
}

func (*Const) isExpr() {}

// Var is a bound variable reference, resolved against the evaluator's
// variable binding at eval time (spec §4.4 identifier lookup order: user
// variables first).
type Var struct {
	Name string
}

func (*Var) isExpr() {}

// Ident is what the parser emits for any bare identifier or call syntax:
// a bare name, an explicit zero-arity call `name()`, a one-arity call
// without parens `name x`, or a 2..7-arity call `name(a, b, ...)`.
// Resolution into a Var, a builtin Func, or a Custom Func happens later,
// in internal/evaluator's Compile step, per spec §4.4's identifier lookup
// order (user variables first, then builtins, then user-defined
// functions) — the parser has no notion of which names are bound.
type Ident struct {
	Name         string
	Args         []Expr // nil for a bare identifier, non-nil (possibly empty) for any call form
	ExplicitCall bool    // true for the `name()` zero-arity call syntax
	Offset       int     // 1-based byte offset, for compile-time error reporting
}

func (*Ident) isExpr() {}

// Kind enumerates every builtin the grammar recognizes (spec §4.4's
// alphabetical list) plus the operators and Custom for user-defined
// functions registered with the evaluator by integer id.
type Kind int

const (
	KindAdd Kind = iota
	KindSub
	KindMul
	KindDiv
	KindMod
	KindPow
	KindNeg // unary minus from the power production's leading sign run
	KindPos // unary plus, a no-op kept for symmetry with KindNeg

	KindAbs
	KindAcos
	KindAsin
	KindAtan
	KindAtan2
	KindCeil
	KindCos
	KindCosh
	KindE
	KindExp
	KindFac
	KindFloor
	KindLog
	KindLog10
	KindMax
	KindMin
	KindNcr
	KindNegate
	KindPi
	KindPow2 // the "pow"/"power" builtin, distinct from the ^ operator node
	KindSin
	KindSinh
	KindSqrt
	KindTan
	KindTanh

	KindCustom
)

// MaxArity bounds Func.Children; spec §4.4 allows 2..7-arity parenthesized
// calls plus the 0- and 1-arity forms, so 7 children covers every case.
const MaxArity = 7

// Func is a function-call or operator node. Children[:N] are the
// evaluated operands in left-to-right order. CustomID is only meaningful
// when Kind == KindCustom.
type Func struct {
	Kind     Kind
	Children [MaxArity]Expr
	N        int
	CustomID int
}

func (*Func) isExpr() {}

// NewFunc builds a Func node from a kind and a slice of children,
// panicking if the caller passes more than MaxArity — a parser bug, not a
// user-facing error, since the grammar itself caps arity at 7.
func NewFunc(kind Kind, children ...Expr) *Func {
	if len(children) > MaxArity {
		panic("exprtree: too many children for Func node")
	}
	f := &Func{Kind: kind, N: len(children)}
	copy(f.Children[:], children)
	return f
}

// builtinArity is the fixed arity of every named builtin (spec §4.4's
// alphabetical list), read through LookupBuiltin by the evaluator's
// Compile step to validate call arity; the parser does not check arity.
var builtinArity = map[string]int{
	"abs": 1, "acos": 1, "asin": 1, "atan": 1, "atan2": 2,
	"ceil": 1, "cos": 1, "cosh": 1, "e": 0, "exp": 1,
	"fac": 1, "floor": 1, "log": 1, "log10": 1,
	"max": 2, "min": 2, "ncr": 2, "negate": 1, "pi": 0,
	"pow": 2, "power": 2, "sin": 1, "sinh": 1, "sqrt": 1,
	"tan": 1, "tanh": 1,
}

var builtinKind = map[string]Kind{
	"abs": KindAbs, "acos": KindAcos, "asin": KindAsin, "atan": KindAtan,
	"atan2": KindAtan2, "ceil": KindCeil, "cos": KindCos, "cosh": KindCosh,
	"e": KindE, "exp": KindExp, "fac": KindFac, "floor": KindFloor,
	"log": KindLog, "log10": KindLog10, "max": KindMax, "min": KindMin,
	"ncr": KindNcr, "negate": KindNegate, "pi": KindPi,
	"pow": KindPow2, "power": KindPow2, "sin": KindSin, "sinh": KindSinh,
	"sqrt": KindSqrt, "tan": KindTan, "tanh": KindTanh,
}

// LookupBuiltin returns the Kind and declared arity for a builtin name,
// or ok=false if name isn't one of spec §4.4's builtins.
func LookupBuiltin(name string) (kind Kind, arity int, ok bool) {
	k, ok := builtinKind[name]
	if !ok {
		return 0, 0, false
	}
	return k, builtinArity[name], true
}
