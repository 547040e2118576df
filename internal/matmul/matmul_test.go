package matmul

import (
	"math"
	"testing"

	"iarray/internal/codec"
	"iarray/internal/container"
	"iarray/internal/ishape"
)

func build2D(t *testing.T, rows, cols, chunkRows, chunkCols, blockRows, blockCols int, valueAt func(i, j int) float64) *container.Container {
	t.Helper()
	rec := ishape.Record{
		NDim: 2, Shape: ishape.Dims{rows, cols}, ChunkShape: ishape.Dims{chunkRows, chunkCols},
		BlockShape: ishape.Dims{blockRows, blockCols}, DType: ishape.Float64, ItemSize: 8,
	}
	c, err := container.New(rec, codec.Params{CodecID: codec.Zstd, Level: 3}, codec.InMemory())
	if err != nil {
		t.Fatalf("container.New: %v", err)
	}
	w := c.NewElementWriter()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if err := w.Write(valueAt(i, j)); err != nil {
				t.Fatalf("Write(%d,%d): %v", i, j, err)
			}
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return c
}

func readVector(t *testing.T, c *container.Container) []float64 {
	t.Helper()
	rec := c.Shape()
	out := make([]float64, rec.NItems())
	r := c.NewElementReader()
	for r.HasNext() {
		v, idx, err := r.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out[idx] = v
	}
	return out
}

// TestGemvAgreesWithReference covers spec scenario S4's matrix-times-
// vector case: A (M,K) · b (K,) against a reference triple loop.
func TestGemvAgreesWithReference(t *testing.T) {
	const m, k = 13, 7
	a := build2D(t, m, k, 4, k, 2, k, func(i, j int) float64 { return float64(i*k + j) })
	b, err := container.Arange(0, k, 1, codec.Params{CodecID: codec.Zstd, Level: 3}, codec.InMemory(), ishape.Float64, k, k)
	if err != nil {
		t.Fatalf("Arange: %v", err)
	}

	out, err := Gemv(a, b, Options{Params: codec.Params{CodecID: codec.Zstd, Level: 3}, Storage: codec.InMemory()})
	if err != nil {
		t.Fatalf("Gemv: %v", err)
	}
	got := readVector(t, out)

	bvals := readVector(t, b)
	for i := 0; i < m; i++ {
		var want float64
		for j := 0; j < k; j++ {
			want += float64(i*k+j) * bvals[j]
		}
		if math.Abs(got[i]-want) > 1e-9 {
			t.Fatalf("row %d: got %v want %v", i, got[i], want)
		}
	}
}

// TestGemvPortableMatchesBLAS exercises spec §4.6's "portable triple loop
// must be provided with identical numerical results to within 1 ulp".
func TestGemvPortableMatchesBLAS(t *testing.T) {
	const m, k = 13, 7
	valueAt := func(i, j int) float64 { return float64(i-j) * 0.75 }
	aBlas := build2D(t, m, k, 4, k, 2, k, valueAt)
	aPortable := build2D(t, m, k, 4, k, 2, k, valueAt)
	b, err := container.Arange(1, k+1, 1, codec.Params{CodecID: codec.Zstd, Level: 3}, codec.InMemory(), ishape.Float64, k, k)
	if err != nil {
		t.Fatalf("Arange: %v", err)
	}

	params := codec.Params{CodecID: codec.Zstd, Level: 3}
	outBLAS, err := Gemv(aBlas, b, Options{Params: params, Storage: codec.InMemory()})
	if err != nil {
		t.Fatalf("Gemv (blas): %v", err)
	}
	outPortable, err := Gemv(aPortable, b, Options{Params: params, Storage: codec.InMemory(), Portable: true})
	if err != nil {
		t.Fatalf("Gemv (portable): %v", err)
	}

	gotBLAS := readVector(t, outBLAS)
	gotPortable := readVector(t, outPortable)
	for i := range gotBLAS {
		if math.Abs(gotBLAS[i]-gotPortable[i]) > 1e-9 {
			t.Fatalf("row %d: blas=%v portable=%v", i, gotBLAS[i], gotPortable[i])
		}
	}
}

// TestGemmAgreesWithReference covers spec scenario S4: A (M,K) · B (K,N).
func TestGemmAgreesWithReference(t *testing.T) {
	const m, k, n = 11, 5, 4
	a := build2D(t, m, k, 4, k, 2, k, func(i, j int) float64 { return float64(i*k + j) })
	b := build2D(t, k, n, k, n, k, n, func(i, j int) float64 { return float64(i+1) * float64(j+1) })

	out, err := Gemm(a, b, Options{Params: codec.Params{CodecID: codec.Zstd, Level: 3}, Storage: codec.InMemory()})
	if err != nil {
		t.Fatalf("Gemm: %v", err)
	}
	outRec := out.Shape()
	if outRec.Shape[0] != m || outRec.Shape[1] != n {
		t.Fatalf("result shape = %v, want (%d,%d)", outRec.Shape, m, n)
	}

	r := out.NewElementReader()
	for r.HasNext() {
		v, idx, err := r.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		i, j := idx/n, idx%n
		var want float64
		for p := 0; p < k; p++ {
			want += float64(i*k+p) * (float64(p+1) * float64(j+1))
		}
		if math.Abs(v-want) > 1e-7 {
			t.Fatalf("element (%d,%d): got %v want %v", i, j, v, want)
		}
	}
}

// TestGemmParallelMatchesSequential exercises spec §5's block-parallel
// scheduling model: splitting one output chunk's rows across a worker
// pool must agree exactly with the single-call path.
func TestGemmParallelMatchesSequential(t *testing.T) {
	const m, k, n = 17, 6, 5
	valueAt := func(i, j int) float64 { return float64(i*k+j) * 0.5 }
	aSeq := build2D(t, m, k, 8, k, 2, k, valueAt)
	aPar := build2D(t, m, k, 8, k, 2, k, valueAt)
	bFill := func(i, j int) float64 { return float64(i+j) }
	bSeq := build2D(t, k, n, k, n, k, n, bFill)
	bPar := build2D(t, k, n, k, n, k, n, bFill)

	params := codec.Params{CodecID: codec.Zstd, Level: 3}
	outSeq, err := Gemm(aSeq, bSeq, Options{Params: params, Storage: codec.InMemory()})
	if err != nil {
		t.Fatalf("Gemm sequential: %v", err)
	}
	outPar, err := Gemm(aPar, bPar, Options{Params: params, Storage: codec.InMemory(), MaxThreads: 4, BlockRows: 2})
	if err != nil {
		t.Fatalf("Gemm parallel: %v", err)
	}

	rSeq := outSeq.NewElementReader()
	rPar := outPar.NewElementReader()
	for rSeq.HasNext() {
		vs, idx, err := rSeq.Next()
		if err != nil {
			t.Fatalf("Next (seq): %v", err)
		}
		vp, _, err := rPar.Next()
		if err != nil {
			t.Fatalf("Next (par): %v", err)
		}
		if vs != vp {
			t.Fatalf("element %d: sequential=%v parallel=%v", idx, vs, vp)
		}
	}
}

// TestGemvTransposeA covers the transpose-via-stride-swap requirement:
// A stored as (K, M), Gemv with TransposeA must equal Aᵀ·b.
func TestGemvTransposeA(t *testing.T) {
	const k, m = 6, 9
	a := build2D(t, k, m, k, 3, k, 3, func(i, j int) float64 { return float64(i*m + j) })
	b, err := container.Arange(0, k, 1, codec.Params{CodecID: codec.Zstd, Level: 3}, codec.InMemory(), ishape.Float64, k, k)
	if err != nil {
		t.Fatalf("Arange: %v", err)
	}

	out, err := Gemv(a, b, Options{TransposeA: true, Params: codec.Params{CodecID: codec.Zstd, Level: 3}, Storage: codec.InMemory()})
	if err != nil {
		t.Fatalf("Gemv transpose: %v", err)
	}
	got := readVector(t, out)
	bvals := readVector(t, b)
	for j := 0; j < m; j++ {
		var want float64
		for i := 0; i < k; i++ {
			want += float64(i*m+j) * bvals[i]
		}
		if math.Abs(got[j]-want) > 1e-9 {
			t.Fatalf("col %d: got %v want %v", j, got[j], want)
		}
	}
}
