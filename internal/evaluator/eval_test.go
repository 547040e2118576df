package evaluator

import (
	"math"
	"testing"

	"iarray/internal/codec"
	"iarray/internal/container"
	"iarray/internal/exprtree"
	"iarray/internal/ierrors"
	"iarray/internal/ishape"
	"iarray/internal/parser"
)

func buildLinear(t *testing.T, rec ishape.Record) *container.Container {
	t.Helper()
	c, err := container.Arange(0, float64(rec.NItems()), 1, codec.Params{CodecID: codec.Zstd, Level: 3}, codec.InMemory(), rec.DType, rec.ChunkShape[0], rec.BlockShape[0])
	if err != nil {
		t.Fatalf("Arange: %v", err)
	}
	return c
}

func mustCompile(t *testing.T, src string, vars map[string]*container.Container) *Compiled {
	t.Helper()
	return mustCompileBindings(t, src, containerBindings(vars), nil)
}

func containerBindings(vars map[string]*container.Container) map[string]Binding {
	bindings := make(map[string]Binding, len(vars))
	for name, c := range vars {
		bindings[name] = ContainerBinding(c)
	}
	return bindings
}

func mustCompileBindings(t *testing.T, src string, bindings map[string]Binding, reg *Registry) *Compiled {
	t.Helper()
	p, err := parser.New(src)
	if err != nil {
		t.Fatalf("parser.New: %v", err)
	}
	tree, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	compiled, err := Compile(tree, bindings, reg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return compiled
}

func readAll(t *testing.T, c *container.Container) []float64 {
	t.Helper()
	r := c.NewElementReader()
	var out []float64
	for r.HasNext() {
		v, _, err := r.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, v)
	}
	return out
}

// TestChunkWiseBlockWiseBitIdentical covers spec scenario S1's property:
// the two strategies must agree exactly, not just approximately.
func TestChunkWiseBlockWiseBitIdentical(t *testing.T) {
	rec := ishape.Record{
		NDim: 1, Shape: ishape.Dims{20}, ChunkShape: ishape.Dims{6},
		BlockShape: ishape.Dims{3}, DType: ishape.Float64, ItemSize: 8,
	}
	x := buildLinear(t, rec)
	vars := map[string]*container.Container{"x": x}
	compiled := mustCompile(t, "(x - 1.35) * (x - 4.45) * (x - 8.5)", vars)

	params := codec.Params{CodecID: codec.Zstd, Level: 3}
	chunkOut, err := compiled.Eval(StrategyChunk, params, codec.InMemory())
	if err != nil {
		t.Fatalf("Eval chunk-wise: %v", err)
	}
	blockOut, err := compiled.Eval(StrategyBlock, params, codec.InMemory())
	if err != nil {
		t.Fatalf("Eval block-wise: %v", err)
	}

	gotChunk := readAll(t, chunkOut)
	gotBlock := readAll(t, blockOut)
	if len(gotChunk) != len(gotBlock) {
		t.Fatalf("length mismatch: chunk=%d block=%d", len(gotChunk), len(gotBlock))
	}
	for i := range gotChunk {
		if gotChunk[i] != gotBlock[i] {
			t.Fatalf("bit-identical property violated at %d: chunk=%v block=%v", i, gotChunk[i], gotBlock[i])
		}
		xi := float64(i)
		want := (xi - 1.35) * (xi - 4.45) * (xi - 8.5)
		if math.Abs(gotChunk[i]-want) > 1e-9 {
			t.Fatalf("element %d = %v, want %v", i, gotChunk[i], want)
		}
	}
}

func TestCompileRejectsShapeMismatch(t *testing.T) {
	recA := ishape.Record{NDim: 1, Shape: ishape.Dims{4}, ChunkShape: ishape.Dims{4}, BlockShape: ishape.Dims{4}, DType: ishape.Float64, ItemSize: 8}
	recB := ishape.Record{NDim: 1, Shape: ishape.Dims{5}, ChunkShape: ishape.Dims{5}, BlockShape: ishape.Dims{5}, DType: ishape.Float64, ItemSize: 8}
	a := buildLinear(t, recA)
	b := buildLinear(t, recB)

	p, err := parser.New("x + y")
	if err != nil {
		t.Fatalf("parser.New: %v", err)
	}
	tree, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = Compile(tree, containerBindings(map[string]*container.Container{"x": a, "y": b}), nil)
	if err == nil {
		t.Fatal("expected a shape-mismatch compile error")
	}
}

func TestCompileUnknownIdentifier(t *testing.T) {
	rec := ishape.Record{NDim: 1, Shape: ishape.Dims{4}, ChunkShape: ishape.Dims{4}, BlockShape: ishape.Dims{4}, DType: ishape.Float64, ItemSize: 8}
	x := buildLinear(t, rec)
	p, err := parser.New("x + bogus")
	if err != nil {
		t.Fatalf("parser.New: %v", err)
	}
	tree, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = Compile(tree, containerBindings(map[string]*container.Container{"x": x}), nil)
	if err == nil {
		t.Fatal("expected an unknown-identifier compile error")
	}
	ie, ok := err.(*ierrors.Error)
	if !ok {
		t.Fatalf("expected a *ierrors.Error, got %T", err)
	}
	if ie.Offset != 5 {
		t.Errorf("offset = %d, want 5 (the start of 'bogus')", ie.Offset)
	}
}

// TestCompileUnknownFunctionReportsOffset covers spec §8 S6's third
// sub-case: foo(x) with foo unknown returns a parse error naming the
// offset of foo.
func TestCompileUnknownFunctionReportsOffset(t *testing.T) {
	rec := ishape.Record{NDim: 1, Shape: ishape.Dims{4}, ChunkShape: ishape.Dims{4}, BlockShape: ishape.Dims{4}, DType: ishape.Float64, ItemSize: 8}
	x := buildLinear(t, rec)
	p, err := parser.New("foo(x)")
	if err != nil {
		t.Fatalf("parser.New: %v", err)
	}
	tree, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = Compile(tree, containerBindings(map[string]*container.Container{"x": x}), nil)
	if err == nil {
		t.Fatal("expected an unknown-function compile error")
	}
	ie, ok := err.(*ierrors.Error)
	if !ok {
		t.Fatalf("expected a *ierrors.Error, got %T", err)
	}
	if ie.Offset != 1 {
		t.Errorf("offset = %d, want 1 (the start of 'foo')", ie.Offset)
	}
}

func TestUserDefinedFunction(t *testing.T) {
	rec := ishape.Record{NDim: 1, Shape: ishape.Dims{4}, ChunkShape: ishape.Dims{4}, BlockShape: ishape.Dims{4}, DType: ishape.Float64, ItemSize: 8}
	x := buildLinear(t, rec)
	reg := NewRegistry()
	reg.Register("double", 1, func(args []float64) float64 { return args[0] * 2 })

	p, err := parser.New("double(x)")
	if err != nil {
		t.Fatalf("parser.New: %v", err)
	}
	tree, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	compiled, err := Compile(tree, containerBindings(map[string]*container.Container{"x": x}), reg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	out, err := compiled.Eval(StrategyChunk, codec.Params{CodecID: codec.Zstd, Level: 3}, codec.InMemory())
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	got := readAll(t, out)
	for i, v := range got {
		if v != float64(i)*2 {
			t.Fatalf("element %d = %v, want %v", i, v, float64(i)*2)
		}
	}
}

// TestScalarBindingBroadcasts covers spec §4.5's scalar operand binding:
// a scalar contributes the same value at every element, with no shape
// of its own, alongside a bound container.
func TestScalarBindingBroadcasts(t *testing.T) {
	rec := ishape.Record{NDim: 1, Shape: ishape.Dims{6}, ChunkShape: ishape.Dims{6}, BlockShape: ishape.Dims{3}, DType: ishape.Float64, ItemSize: 8}
	x := buildLinear(t, rec)
	bindings := map[string]Binding{
		"x": ContainerBinding(x),
		"k": ScalarBinding(10),
	}
	compiled := mustCompileBindings(t, "x + k", bindings, nil)
	out, err := compiled.Eval(StrategyChunk, codec.Params{CodecID: codec.Zstd, Level: 3}, codec.InMemory())
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	got := readAll(t, out)
	for i, v := range got {
		want := float64(i) + 10
		if v != want {
			t.Fatalf("element %d = %v, want %v", i, v, want)
		}
	}
}

// TestCompileRejectsAllScalarBindings covers spec §4.5's requirement
// that a scalar adopts "the first container's dtype" — there must be at
// least one bound container to infer the output shape/dtype from.
func TestCompileRejectsAllScalarBindings(t *testing.T) {
	p, err := parser.New("k + 1")
	if err != nil {
		t.Fatalf("parser.New: %v", err)
	}
	tree, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = Compile(tree, map[string]Binding{"k": ScalarBinding(5)}, nil)
	if err == nil {
		t.Fatal("expected an error for an expression binding no containers")
	}
}

var _ = exprtree.KindAdd
