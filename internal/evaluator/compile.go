package evaluator

import (
	"iarray/internal/container"
	"iarray/internal/exprtree"
	"iarray/internal/ierrors"
	"iarray/internal/ishape"
)

// Compiled is a validated expression tree bound to a concrete set of
// containers. Compile resolves every identifier and checks the
// variable-shape invariant of spec §4.5: all operands must have
// identical logical shape, checked once up front rather than per
// element.
type Compiled struct {
	tree    exprtree.Expr
	vars    map[string]*container.Container
	scalars map[string]float64
	reg     *Registry
	rec     ishape.Record
}

// Compile resolves tree's identifiers against bindings (bound containers
// and scalars) then builtins then reg (user-defined functions), per spec
// §4.4's lookup order, and validates that every bound container shares
// one logical shape. Scalar bindings carry no shape of their own and are
// skipped by that check; per spec §4.5 they are broadcast against the
// output shape, which is inferred from the first container binding
// encountered — at least one container binding must be present. reg may
// be nil if the expression uses no user-defined functions.
func Compile(tree exprtree.Expr, bindings map[string]Binding, reg *Registry) (*Compiled, error) {
	vars := make(map[string]*container.Container, len(bindings))
	scalars := make(map[string]float64, len(bindings))
	var rec ishape.Record
	haveRec := false
	for name, b := range bindings {
		if b.IsScalar {
			scalars[name] = b.Scalar
			continue
		}
		vars[name] = b.Container
		if !haveRec {
			rec = b.Container.Shape()
			haveRec = true
			continue
		}
		if !sameShape(rec, b.Container.Shape()) {
			return nil, ierrors.NewInvalidArgument("evaluator: operand shapes differ")
		}
	}
	if !haveRec {
		return nil, ierrors.NewInvalidArgument("evaluator: expression binds no containers; cannot infer output shape")
	}
	resolved, err := resolve(tree, bindings, reg)
	if err != nil {
		return nil, err
	}
	return &Compiled{tree: resolved, vars: vars, scalars: scalars, reg: reg, rec: rec}, nil
}

func sameShape(a, b ishape.Record) bool {
	if a.NDim != b.NDim {
		return false
	}
	for k := 0; k < a.NDim; k++ {
		if a.Shape[k] != b.Shape[k] {
			return false
		}
	}
	return true
}

// resolve turns every exprtree.Ident into a Var (bound container or
// scalar), a builtin Func, or a Custom Func, per spec §4.4's lookup
// order: bound names first, then builtins, then user-defined functions.
func resolve(e exprtree.Expr, bindings map[string]Binding, reg *Registry) (exprtree.Expr, error) {
	switch n := e.(type) {
	case *exprtree.Const:
		return n, nil
	case *exprtree.Var:
		return n, nil
	case *exprtree.Ident:
		return resolveIdent(n, bindings, reg)
	case *exprtree.Func:
		out := &exprtree.Func{Kind: n.Kind, N: n.N, CustomID: n.CustomID}
		for i := 0; i < n.N; i++ {
			r, err := resolve(n.Children[i], bindings, reg)
			if err != nil {
				return nil, err
			}
			out.Children[i] = r
		}
		return out, nil
	default:
		return nil, ierrors.NewInvalidArgument("evaluator: unknown expression node %T", e)
	}
}

func resolveIdent(id *exprtree.Ident, bindings map[string]Binding, reg *Registry) (exprtree.Expr, error) {
	name := id.Name

	if id.Args == nil {
		if _, ok := bindings[name]; ok {
			return &exprtree.Var{Name: name}, nil
		}
		if kind, arity, ok := exprtree.LookupBuiltin(name); ok {
			if arity != 0 {
				return nil, identArityError(name, arity, 0, id.Offset)
			}
			return exprtree.NewFunc(kind), nil
		}
		if reg != nil {
			if rid, arity, ok := reg.lookupByName(name); ok {
				if arity != 0 {
					return nil, identArityError(name, arity, 0, id.Offset)
				}
				f := exprtree.NewFunc(exprtree.KindCustom)
				f.CustomID = rid
				return f, nil
			}
		}
		return nil, ierrors.NewParseError(id.Offset, "", "unknown identifier %q", name)
	}

	args := make([]exprtree.Expr, len(id.Args))
	for i, a := range id.Args {
		r, err := resolve(a, bindings, reg)
		if err != nil {
			return nil, err
		}
		args[i] = r
	}
	if _, ok := bindings[name]; ok {
		return nil, ierrors.NewParseError(id.Offset, "", "%q is a bound variable, not callable", name)
	}
	if kind, arity, ok := exprtree.LookupBuiltin(name); ok {
		if arity != len(args) {
			return nil, identArityError(name, arity, len(args), id.Offset)
		}
		return exprtree.NewFunc(kind, args...), nil
	}
	if reg != nil {
		if rid, arity, ok := reg.lookupByName(name); ok {
			if arity != len(args) {
				return nil, identArityError(name, arity, len(args), id.Offset)
			}
			f := exprtree.NewFunc(exprtree.KindCustom, args...)
			f.CustomID = rid
			return f, nil
		}
	}
	return nil, ierrors.NewParseError(id.Offset, "", "unknown function %q", name)
}

// identArityError reports a wrong-arity call naming the offset of the
// identifier itself, per spec §8 S6's "foo(x) with foo unknown returns
// a parse error naming the offset of foo".
func identArityError(name string, want, got, offset int) error {
	return ierrors.NewParseError(offset, "", "%q expects %d argument(s), got %d", name, want, got)
}
