// Package ishape implements the coordinate arithmetic the rest of the
// engine builds on: row-major strides, flat<->nd conversion, extended-shape
// rounding, negative-index normalization, and slice clamping (spec §4.1).
//
// These are hot-path leaf routines. They work over fixed [MaxNDim]int
// arrays rather than slices so that callers on the element-iteration path
// never allocate.
package ishape

import "iarray/internal/ierrors"

// MaxNDim is the maximum supported rank (spec §3: "ndim ∈ [1, 8]").
const MaxNDim = 8

// Dims is a fixed-size coordinate/shape vector. Only the first N entries
// are meaningful; callers always carry N alongside a Dims value.
type Dims [MaxNDim]int

// FlatToND converts a row-major flat index into an n-d coordinate.
// coord[k] = (i / prod(shape[k+1:])) mod shape[k].
func FlatToND(i int, shape Dims, ndim int) Dims {
	var coord Dims
	for k := ndim - 1; k >= 0; k-- {
		coord[k] = i % shape[k]
		i /= shape[k]
	}
	return coord
}

// NDToFlat is the inverse of FlatToND. Panics if any coord[k] is out of
// [0, shape[k]) — the spec mandates this as an assertion, not a
// recoverable error, since it indicates a caller bug on the hot path.
func NDToFlat(coord Dims, shape Dims, ndim int) int {
	flat := 0
	for k := 0; k < ndim; k++ {
		if coord[k] < 0 || coord[k] >= shape[k] {
			panic("ishape: coordinate out of range")
		}
		flat = flat*shape[k] + coord[k]
	}
	return flat
}

// Strides computes row-major strides (in elements) for shape.
func Strides(shape Dims, ndim int) Dims {
	var s Dims
	stride := 1
	for k := ndim - 1; k >= 0; k-- {
		s[k] = stride
		stride *= shape[k]
	}
	return s
}

// NormalizeSlice wraps negative indices (x < 0 => x + dim) and clamps the
// result into [0, dim] for start, [start, dim] for stop, per spec §4.1.
func NormalizeSlice(start, stop, dim int) (s, e int) {
	if start < 0 {
		start += dim
	}
	if stop < 0 {
		stop += dim
	}
	if start < 0 {
		start = 0
	}
	if start > dim {
		start = dim
	}
	if stop < start {
		stop = start
	}
	if stop > dim {
		stop = dim
	}
	return start, stop
}

// ExtRoundUp rounds shape up to the nearest multiple of step, per axis:
// ext[k] = ceil(shape[k] / step[k]) * step[k].
func ExtRoundUp(shape, step Dims, ndim int) Dims {
	var ext Dims
	for k := 0; k < ndim; k++ {
		if step[k] <= 0 {
			panic("ishape: step must be positive")
		}
		n := (shape[k] + step[k] - 1) / step[k]
		ext[k] = n * step[k]
	}
	return ext
}

// Prod returns the product of the first ndim entries of d.
func Prod(d Dims, ndim int) int {
	p := 1
	for k := 0; k < ndim; k++ {
		p *= d[k]
	}
	return p
}

// Record is the shape record of spec §3: the full set of fields that
// describe a container's logical, chunk, and block geometry.
type Record struct {
	NDim       int
	Shape      Dims
	ChunkShape Dims
	BlockShape Dims
	DType      DType
	ItemSize   int
}

// DType enumerates the minimum two numeric scalar types spec §3 requires.
// The design "generalizes trivially to integer widths" but every operation
// stays monomorphic per container, so only the two floats are modeled.
type DType int

const (
	Float32 DType = iota
	Float64
)

func (d DType) ItemSize() int {
	switch d {
	case Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

// ExtShape returns shape rounded up to a multiple of chunk_shape.
func (r Record) ExtShape() Dims {
	return ExtRoundUp(r.Shape, r.ChunkShape, r.NDim)
}

// ExtChunkShape returns chunk_shape rounded up to a multiple of
// block_shape.
func (r Record) ExtChunkShape() Dims {
	return ExtRoundUp(r.ChunkShape, r.BlockShape, r.NDim)
}

func (r Record) NItems() int       { return Prod(r.Shape, r.NDim) }
func (r Record) ChunkItems() int   { return Prod(r.ChunkShape, r.NDim) }
func (r Record) BlockItems() int   { return Prod(r.BlockShape, r.NDim) }
func (r Record) ExtNItems() int    { return Prod(r.ExtShape(), r.NDim) }
func (r Record) NChunksAxis(k int) int {
	return r.ExtShape()[k] / r.ChunkShape[k]
}

// NChunks returns the total number of chunks covering the extended shape.
func (r Record) NChunks() int {
	ext := r.ExtShape()
	n := 1
	for k := 0; k < r.NDim; k++ {
		n *= ext[k] / r.ChunkShape[k]
	}
	return n
}

// Partition describes one tile yielded by IteratePartitions: its start
// coordinate in the enclosing shape, its true (possibly truncated) extent,
// and its row-major linear index among all partitions.
type Partition struct {
	Start  Dims
	Extent Dims
	Linear int
}

// IteratePartitions enumerates, in row-major partition-coordinate order,
// the tiles obtained by covering shape with boxes of size part (the last
// tile along each axis is truncated to fit). The same routine drives both
// chunk-over-array and block-over-chunk traversal (spec §4.3's iterators
// all reduce to this one partitioning rule at two different grains).
func IteratePartitions(shape Dims, ndim int, part Dims, fn func(Partition) error) error {
	var counts Dims
	total := 1
	for k := 0; k < ndim; k++ {
		counts[k] = (shape[k] + part[k] - 1) / part[k]
		total *= counts[k]
	}
	var idx Dims
	for linear := 0; linear < total; linear++ {
		var p Partition
		p.Linear = linear
		for k := 0; k < ndim; k++ {
			p.Start[k] = idx[k] * part[k]
			remain := shape[k] - p.Start[k]
			if remain > part[k] {
				remain = part[k]
			}
			p.Extent[k] = remain
		}
		if err := fn(p); err != nil {
			return err
		}
		// Odometer increment, last axis fastest (row-major).
		for k := ndim - 1; k >= 0; k-- {
			idx[k]++
			if idx[k] < counts[k] {
				break
			}
			idx[k] = 0
		}
	}
	return nil
}

// NPartitions returns how many tiles IteratePartitions would visit.
func NPartitions(shape Dims, ndim int, part Dims) int {
	n := 1
	for k := 0; k < ndim; k++ {
		n *= (shape[k] + part[k] - 1) / part[k]
	}
	return n
}

// Validate checks the invariants of spec §3.
func (r Record) Validate() error {
	if r.NDim < 1 || r.NDim > MaxNDim {
		return ierrors.NewExceededDim("ndim %d out of range [1, %d]", r.NDim, MaxNDim)
	}
	for k := 0; k < r.NDim; k++ {
		if r.Shape[k] < 1 {
			return ierrors.NewInvalidArgument("shape[%d] = %d must be >= 1", k, r.Shape[k])
		}
		if r.ChunkShape[k] < 1 {
			return ierrors.NewInvalidArgument("chunk_shape[%d] = %d must be >= 1", k, r.ChunkShape[k])
		}
		if r.BlockShape[k] < 1 || r.BlockShape[k] > r.ChunkShape[k] {
			return ierrors.NewInvalidArgument("block_shape[%d] = %d must be in [1, chunk_shape[%d]=%d]", k, r.BlockShape[k], k, r.ChunkShape[k])
		}
	}
	return nil
}
