package evaluator

import (
	"math"

	"iarray/internal/exprtree"
	"iarray/internal/ierrors"
)

// evalPanel evaluates tree over a row-major panel per variable — all
// slices in vars must have equal length n, matching out. This is the one
// dispatch routine both the chunk-wise and block-wise strategies share
// (spec §4.5): only the panel length differs between them, never the
// per-element math, which is what guarantees bit-identical output.
// scalars holds broadcast operands: a name bound to a scalar contributes
// the same value at every index i, with no per-tile panel of its own.
func evalPanel(tree exprtree.Expr, vars map[string][]float64, scalars map[string]float64, reg *Registry, out []float64) error {
	for i := range out {
		v, err := evalScalar(tree, vars, scalars, reg, i)
		if err != nil {
			return err
		}
		out[i] = v
	}
	return nil
}

func evalScalar(e exprtree.Expr, vars map[string][]float64, scalars map[string]float64, reg *Registry, i int) (float64, error) {
	switch n := e.(type) {
	case *exprtree.Const:
		return n.Value, nil
	case *exprtree.Var:
		if panel, ok := vars[n.Name]; ok {
			return panel[i], nil
		}
		if v, ok := scalars[n.Name]; ok {
			return v, nil
		}
		return 0, ierrors.NewInvalidArgument("unbound variable %q during eval", n.Name)
	case *exprtree.Func:
		return evalFunc(n, vars, scalars, reg, i)
	default:
		return 0, ierrors.NewInvalidArgument("evaluator: unknown node %T", e)
	}
}

func evalFunc(f *exprtree.Func, vars map[string][]float64, scalars map[string]float64, reg *Registry, i int) (float64, error) {
	var args [exprtree.MaxArity]float64
	for k := 0; k < f.N; k++ {
		v, err := evalScalar(f.Children[k], vars, scalars, reg, i)
		if err != nil {
			return 0, err
		}
		args[k] = v
	}
	switch f.Kind {
	case exprtree.KindAdd:
		return args[0] + args[1], nil
	case exprtree.KindSub:
		return args[0] - args[1], nil
	case exprtree.KindMul:
		return args[0] * args[1], nil
	case exprtree.KindDiv:
		return args[0] / args[1], nil
	case exprtree.KindMod:
		return math.Mod(args[0], args[1]), nil
	case exprtree.KindPow:
		return math.Pow(args[0], args[1]), nil
	case exprtree.KindNeg:
		return -args[0], nil
	case exprtree.KindPos:
		return args[0], nil
	case exprtree.KindAbs:
		return math.Abs(args[0]), nil
	case exprtree.KindAcos:
		return math.Acos(args[0]), nil
	case exprtree.KindAsin:
		return math.Asin(args[0]), nil
	case exprtree.KindAtan:
		return math.Atan(args[0]), nil
	case exprtree.KindAtan2:
		return math.Atan2(args[0], args[1]), nil
	case exprtree.KindCeil:
		return math.Ceil(args[0]), nil
	case exprtree.KindCos:
		return math.Cos(args[0]), nil
	case exprtree.KindCosh:
		return math.Cosh(args[0]), nil
	case exprtree.KindE:
		return math.E, nil
	case exprtree.KindExp:
		return math.Exp(args[0]), nil
	case exprtree.KindFac:
		return factorial(args[0]), nil
	case exprtree.KindFloor:
		return math.Floor(args[0]), nil
	case exprtree.KindLog:
		return math.Log(args[0]), nil
	case exprtree.KindLog10:
		return math.Log10(args[0]), nil
	case exprtree.KindMax:
		return math.Max(args[0], args[1]), nil
	case exprtree.KindMin:
		return math.Min(args[0], args[1]), nil
	case exprtree.KindNcr:
		return ncr(args[0], args[1]), nil
	case exprtree.KindNegate:
		return -args[0], nil
	case exprtree.KindPi:
		return math.Pi, nil
	case exprtree.KindPow2:
		return math.Pow(args[0], args[1]), nil
	case exprtree.KindSin:
		return math.Sin(args[0]), nil
	case exprtree.KindSinh:
		return math.Sinh(args[0]), nil
	case exprtree.KindSqrt:
		return math.Sqrt(args[0]), nil
	case exprtree.KindTan:
		return math.Tan(args[0]), nil
	case exprtree.KindTanh:
		return math.Tanh(args[0]), nil
	case exprtree.KindCustom:
		return reg.call(f.CustomID, args[:f.N])
	default:
		return 0, ierrors.NewInvalidArgument("evaluator: unhandled kind %v", f.Kind)
	}
}

func factorial(x float64) float64 {
	n := int(x)
	r := 1.0
	for i := 2; i <= n; i++ {
		r *= float64(i)
	}
	return r
}

func ncr(n, r float64) float64 {
	return factorial(n) / (factorial(r) * factorial(n-r))
}
