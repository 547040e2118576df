// Package matmul implements the three-level matmul pipeline of spec
// §4.6: decompress B once, decompress A one row-slab per output chunk,
// and write C exclusively through the codec's prefilter hook so the
// full product is never materialized.
package matmul

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"

	"iarray/internal/codec"
	"iarray/internal/concurrency"
	"iarray/internal/container"
	"iarray/internal/ierrors"
	"iarray/internal/ishape"
)

// Options configures a single matmul call.
type Options struct {
	TransposeA bool
	TransposeB bool
	Params     codec.Params
	Storage    codec.Storage
	// Portable forces the triple-loop fallback of portable.go instead of
	// gonum's blas64, for parity testing against the BLAS path.
	Portable bool
	// MaxThreads bounds the worker pool used to parallelize the
	// block-level BLAS calls within one output chunk, per spec §5's
	// "inner block loop across blocks of one chunk is trivially
	// parallel". <= 1 runs the chunk's blocks on the calling goroutine.
	MaxThreads int
	// BlockRows sizes the row-group each worker computes; defaults to
	// the output container's own block_shape row count.
	BlockRows int
}

// Gemv computes C = A·b (or Aᵀ·b) where A is (M, K) and b is (K,),
// producing a (M,) result container, per spec §4.6's "matrix × vector"
// walkthrough.
func Gemv(a, b *container.Container, opts Options) (*container.Container, error) {
	arec := a.Shape()
	brec := b.Shape()
	if arec.NDim != 2 || brec.NDim != 1 {
		return nil, ierrors.NewInvalidArgument("matmul.Gemv: A must be rank 2 and b rank 1")
	}
	m, k := arec.Shape[0], arec.Shape[1]
	if opts.TransposeA {
		m, k = k, m
	}
	if brec.Shape[0] != k {
		return nil, ierrors.NewInvalidArgument("matmul.Gemv: inner dimension mismatch %d != %d", k, brec.Shape[0])
	}

	bFlat, err := readAll(b, brec.NItems())
	if err != nil {
		return nil, err
	}

	chunkM := arec.ChunkShape[0]
	if opts.TransposeA {
		chunkM = arec.ChunkShape[1]
	}
	blockM := arec.BlockShape[0]
	if opts.TransposeA {
		blockM = arec.BlockShape[1]
	}
	outRec := ishape.Record{
		NDim: 1, Shape: ishape.Dims{m}, ChunkShape: ishape.Dims{chunkM},
		BlockShape: ishape.Dims{blockM}, DType: arec.DType, ItemSize: arec.ItemSize,
	}
	out, err := container.New(outRec, opts.Params, opts.Storage)
	if err != nil {
		return nil, err
	}

	restore := pinBLASThreads()
	defer restore()

	slabShape := ishape.Dims{chunkM, k}
	if opts.TransposeA {
		// A is stored (K, M); a row-slab along the output's M axis is a
		// column-slab of A, so the slab partition walks the second axis.
		slabShape = ishape.Dims{arec.Shape[0], chunkM}
	}
	ar := a.NewBlockReader(slabShape)
	for ar.HasNext() {
		values, extent, _, _, _, err := ar.Next()
		if err != nil {
			return nil, err
		}
		rows := extent[0]
		aGeneral := blas64.General{Rows: extent[0], Cols: extent[1], Stride: extent[1], Data: values}
		trans := blas.NoTrans
		outRows := rows
		if opts.TransposeA {
			trans = blas.Trans
			outRows = extent[1]
		}
		yCache := make([]float64, outRows)
		blockRows := opts.BlockRows
		if blockRows <= 0 {
			blockRows = blockM
		}
		if opts.Portable || opts.TransposeA || opts.MaxThreads <= 1 {
			if opts.Portable {
				portableGemv(aGeneral, trans, bFlat, yCache)
			} else {
				blas64.Implementation().Dgemv(trans, aGeneral.Rows, aGeneral.Cols, float64(1), aGeneral.Data, aGeneral.Stride, bFlat, 1, float64(0), yCache, 1)
			}
		} else {
			nBlk := (outRows + blockRows - 1) / blockRows
			err := concurrency.RunBlocks(opts.MaxThreads, nBlk, func(bi int) error {
				rowStart := bi * blockRows
				rowEnd := rowStart + blockRows
				if rowEnd > outRows {
					rowEnd = outRows
				}
				sub := aGeneral.Data[rowStart*aGeneral.Stride : rowEnd*aGeneral.Stride]
				blas64.Implementation().Dgemv(blas.NoTrans, rowEnd-rowStart, aGeneral.Cols, float64(1), sub, aGeneral.Stride, bFlat, 1, float64(0), yCache[rowStart:rowEnd], 1)
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
		if err := out.AppendPrefilteredChunk(&slabPrefilter{slab: yCache, dtype: outRec.DType}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Gemm computes C = A·B (or with either operand transposed), the
// natural 2-D extension of Gemv, per spec §4.6.
func Gemm(a, b *container.Container, opts Options) (*container.Container, error) {
	arec := a.Shape()
	brec := b.Shape()
	if arec.NDim != 2 || brec.NDim != 2 {
		return nil, ierrors.NewInvalidArgument("matmul.Gemm: both operands must be rank 2")
	}
	m, k := arec.Shape[0], arec.Shape[1]
	if opts.TransposeA {
		m, k = k, m
	}
	kb, n := brec.Shape[0], brec.Shape[1]
	if opts.TransposeB {
		kb, n = n, kb
	}
	if k != kb {
		return nil, ierrors.NewInvalidArgument("matmul.Gemm: inner dimension mismatch %d != %d", k, kb)
	}

	bFlat, err := readAll(b, brec.NItems())
	if err != nil {
		return nil, err
	}
	bGeneral := blas64.General{Rows: brec.Shape[0], Cols: brec.Shape[1], Stride: brec.Shape[1], Data: bFlat}
	transB := blas.NoTrans
	if opts.TransposeB {
		transB = blas.Trans
	}

	chunkM := arec.ChunkShape[0]
	if opts.TransposeA {
		chunkM = arec.ChunkShape[1]
	}
	blockM := arec.BlockShape[0]
	if opts.TransposeA {
		blockM = arec.BlockShape[1]
	}
	outRec := ishape.Record{
		NDim: 2, Shape: ishape.Dims{m, n}, ChunkShape: ishape.Dims{chunkM, n},
		BlockShape: ishape.Dims{blockM, n}, DType: arec.DType, ItemSize: arec.ItemSize,
	}
	out, err := container.New(outRec, opts.Params, opts.Storage)
	if err != nil {
		return nil, err
	}

	restore := pinBLASThreads()
	defer restore()

	slabShape := ishape.Dims{chunkM, k}
	if opts.TransposeA {
		slabShape = ishape.Dims{arec.Shape[0], chunkM}
	}
	ar := a.NewBlockReader(slabShape)
	for ar.HasNext() {
		values, extent, _, _, _, err := ar.Next()
		if err != nil {
			return nil, err
		}
		aGeneral := blas64.General{Rows: extent[0], Cols: extent[1], Stride: extent[1], Data: values}
		transA := blas.NoTrans
		outRows := extent[0]
		if opts.TransposeA {
			transA = blas.Trans
			outRows = extent[1]
		}
		cSlab := make([]float64, outRows*n)
		cGeneral := blas64.General{Rows: outRows, Cols: n, Stride: n, Data: cSlab}
		blockRows := opts.BlockRows
		if blockRows <= 0 {
			blockRows = blockM
		}
		if opts.Portable || opts.TransposeA || opts.MaxThreads <= 1 {
			if opts.Portable {
				portableGemm(aGeneral, transA, bGeneral, transB, cGeneral)
			} else {
				blas64.Implementation().Dgemm(transA, transB, outRows, n, k, float64(1), aGeneral.Data, aGeneral.Stride, bGeneral.Data, bGeneral.Stride, float64(0), cGeneral.Data, cGeneral.Stride)
			}
		} else {
			nBlk := (outRows + blockRows - 1) / blockRows
			err := concurrency.RunBlocks(opts.MaxThreads, nBlk, func(bi int) error {
				rowStart := bi * blockRows
				rowEnd := rowStart + blockRows
				if rowEnd > outRows {
					rowEnd = outRows
				}
				aSub := aGeneral.Data[rowStart*aGeneral.Stride : rowEnd*aGeneral.Stride]
				cSub := cGeneral.Data[rowStart*cGeneral.Stride : rowEnd*cGeneral.Stride]
				blas64.Implementation().Dgemm(blas.NoTrans, transB, rowEnd-rowStart, n, k, float64(1), aSub, aGeneral.Stride, bGeneral.Data, bGeneral.Stride, float64(0), cSub, cGeneral.Stride)
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
		if err := out.AppendPrefilteredChunk(&slabPrefilter{slab: cSlab, dtype: outRec.DType}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readAll(c *container.Container, n int) ([]float64, error) {
	r := c.NewElementReader()
	out := make([]float64, 0, n)
	for r.HasNext() {
		v, _, err := r.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// slabPrefilter implements codec.BlockProducer over an already-computed
// output slab (one BLAS call per output chunk, or one per row-block on the
// parallel path, all made before the chunk is appended): Fill is still invoked once per block per
// spec §4.6, it just copies a contiguous sub-range of the slab instead of
// issuing one BLAS call per block. The numerical result is identical
// either way since the blocks partition a single linear BLAS result.
type slabPrefilter struct {
	slab  []float64
	dtype ishape.DType
}

func (p *slabPrefilter) Fill(blockIndex int, out []byte) error {
	itemsPerBlock := len(out) / p.dtype.ItemSize()
	start := blockIndex * itemsPerBlock
	if start >= len(p.slab) {
		return nil // fully past the true extent; leave the zero placeholder
	}
	end := start + itemsPerBlock
	if end > len(p.slab) {
		end = len(p.slab)
	}
	for i := start; i < end; i++ {
		container.PutItem(p.dtype, out, i-start, p.slab[i])
	}
	return nil
}
