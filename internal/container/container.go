// Package container implements the chunked array of spec §4.3: a codec
// super-chunk plus shape metadata, exposing the four iterator modes,
// slicing, and buffer import/export.
package container

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/kr/pretty"

	"iarray/internal/codec"
	"iarray/internal/ierrors"
	"iarray/internal/ishape"
)

// Container owns a codec super-chunk plus the shape record describing its
// logical, chunk, and block geometry (spec §3). Views share their
// parent's super-chunk and cannot outlive it (spec §9 "cyclic ownership").
type Container struct {
	rec     ishape.Record
	sc      codec.SuperChunk
	storage codec.Storage
	closed  bool

	parent   *Container
	viewFrom ishape.Dims // this view's origin in the parent's coordinate system
	isView   bool
}

// Shape returns the container's shape record.
func (c *Container) Shape() ishape.Record { return c.rec }

// New opens a fresh, empty container shell for rec, ready for writes via
// its iterators. Exported for packages (internal/evaluator,
// internal/matmul) that construct result containers directly rather than
// through one of the constructors below.
func New(rec ishape.Record, params codec.Params, storage codec.Storage) (*Container, error) {
	return newContainerShell(rec, params, storage)
}

func deriveParams(rec ishape.Record, base codec.Params) codec.Params {
	p := base
	p.ItemSize = rec.ItemSize
	p.ChunkBytes = rec.ChunkItems() * rec.ItemSize
	if p.BlockBytes <= 0 {
		p.BlockBytes = rec.BlockItems() * rec.ItemSize
	}
	return p
}

func newContainerShell(rec ishape.Record, base codec.Params, storage codec.Storage) (*Container, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	params := deriveParams(rec, base)
	sc, err := codec.OpenNew(storage, params)
	if err != nil {
		return nil, err
	}
	return &Container{rec: rec, sc: sc, storage: storage}, nil
}

// buildFromFunc is the shared constructor path for Zeros/Ones/Fill/
// Arange/Linspace/Logspace/FromBuffer: it writes valueAt(i) for every
// global row-major index i via the write-element iterator.
func buildFromFunc(rec ishape.Record, params codec.Params, storage codec.Storage, valueAt func(int) float64) (*Container, error) {
	c, err := newContainerShell(rec, params, storage)
	if err != nil {
		return nil, err
	}
	w := newElementWriter(c)
	n := rec.NItems()
	for i := 0; i < n; i++ {
		if err := w.Write(valueAt(i)); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return c, nil
}

// Zeros constructs a container whose every logical element is 0.
func Zeros(rec ishape.Record, params codec.Params, storage codec.Storage) (*Container, error) {
	return buildFromFunc(rec, params, storage, func(int) float64 { return 0 })
}

// Ones constructs a container whose every logical element is 1.
func Ones(rec ishape.Record, params codec.Params, storage codec.Storage) (*Container, error) {
	return buildFromFunc(rec, params, storage, func(int) float64 { return 1 })
}

// Fill constructs a container whose every logical element is v.
func Fill(rec ishape.Record, params codec.Params, storage codec.Storage, v float64) (*Container, error) {
	return buildFromFunc(rec, params, storage, func(int) float64 { return v })
}

// Empty reserves a container's storage without defining its contents;
// per spec §4.3, subsequent writes via iterators are mandatory before any
// read. No chunk is appended, so the first write iterator opened on it
// fills the append-only super-chunk from chunk 0.
func Empty(rec ishape.Record, params codec.Params, storage codec.Storage) (*Container, error) {
	return newContainerShell(rec, params, storage)
}

// Arange constructs a 1-D container over [start, stop) stepping by step.
func Arange(start, stop, step float64, params codec.Params, storage codec.Storage, dtype ishape.DType, chunkShape, blockShape int) (*Container, error) {
	if step == 0 {
		return nil, ierrors.NewInvalidArgument("arange: step must be non-zero")
	}
	n := int((stop - start) / step)
	if n < 0 {
		n = 0
	}
	if (step > 0 && float64(n)*step+start < stop) || (step < 0 && float64(n)*step+start > stop) {
		n++
	}
	if n <= 0 {
		return nil, ierrors.NewInvalidArgument("arange: empty range [%v, %v) step %v", start, stop, step)
	}
	rec := ishape.Record{
		NDim: 1, Shape: ishape.Dims{n}, ChunkShape: ishape.Dims{chunkShape},
		BlockShape: ishape.Dims{blockShape}, DType: dtype, ItemSize: dtype.ItemSize(),
	}
	return buildFromFunc(rec, params, storage, func(i int) float64 { return start + float64(i)*step })
}

// ArangeInt is the superset-API integer variant of Arange noted as an
// open question in spec §9: the early constructor accepted only integer
// bounds, the later one only float64; here both are supported.
func ArangeInt(start, stop, step int, params codec.Params, storage codec.Storage, dtype ishape.DType, chunkShape, blockShape int) (*Container, error) {
	return Arange(float64(start), float64(stop), float64(step), params, storage, dtype, chunkShape, blockShape)
}

// Linspace constructs n evenly spaced samples over [a, b], endpoint
// inclusive. For n == 1 the result is the single value a (spec §4.3).
func Linspace(n int, a, b float64, params codec.Params, storage codec.Storage, dtype ishape.DType, chunkShape, blockShape int) (*Container, error) {
	if n <= 0 {
		return nil, ierrors.NewInvalidArgument("linspace: n must be >= 1")
	}
	rec := ishape.Record{
		NDim: 1, Shape: ishape.Dims{n}, ChunkShape: ishape.Dims{chunkShape},
		BlockShape: ishape.Dims{blockShape}, DType: dtype, ItemSize: dtype.ItemSize(),
	}
	return buildFromFunc(rec, params, storage, func(i int) float64 {
		if n == 1 {
			return a
		}
		return a + float64(i)*(b-a)/float64(n-1)
	})
}

// Logspace constructs n samples logarithmically spaced between
// base^a and base^b.
func Logspace(n int, a, b, base float64, params codec.Params, storage codec.Storage, dtype ishape.DType, chunkShape, blockShape int) (*Container, error) {
	if n <= 0 {
		return nil, ierrors.NewInvalidArgument("logspace: n must be >= 1")
	}
	rec := ishape.Record{
		NDim: 1, Shape: ishape.Dims{n}, ChunkShape: ishape.Dims{chunkShape},
		BlockShape: ishape.Dims{blockShape}, DType: dtype, ItemSize: dtype.ItemSize(),
	}
	return buildFromFunc(rec, params, storage, func(i int) float64 {
		exp := a
		if n > 1 {
			exp = a + float64(i)*(b-a)/float64(n-1)
		}
		return math.Pow(base, exp)
	})
}

// BitStreamFiller is the RNG contract spec §1 treats as external: "given
// a bit stream, fill a block". The core never generates random bits
// itself; callers of RandomFill supply one.
type BitStreamFiller func(out []byte) error

// RandomFill constructs a container whose chunks are populated by calling
// filler once per chunk with a scratch sized to that chunk's true extent.
func RandomFill(rec ishape.Record, params codec.Params, storage codec.Storage, filler BitStreamFiller) (*Container, error) {
	c, err := newContainerShell(rec, params, storage)
	if err != nil {
		return nil, err
	}
	bw := newBlockWriter(c, rec.ChunkShape)
	for bw.HasNext() {
		scratch, _, _, err := bw.NextBuffer()
		if err != nil {
			return nil, err
		}
		if err := filler(scratch); err != nil {
			return nil, err
		}
		if err := bw.Commit(); err != nil {
			return nil, err
		}
	}
	if err := bw.Close(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewElementWriter opens the write-element iterator (spec §4.3 item 1)
// over a freshly created container. Use Empty to reserve one first.
func (c *Container) NewElementWriter() *ElementWriter { return newElementWriter(c) }

// NewBlockWriter opens the write-block iterator (spec §4.3 item 2). A
// zero blockShape defaults to the container's own chunk_shape.
func (c *Container) NewBlockWriter(blockShape ishape.Dims) *BlockWriter {
	return newBlockWriter(c, blockShape)
}

// NewElementReader opens the read-element iterator (spec §4.3 item 3).
func (c *Container) NewElementReader() *ElementReader { return newElementReader(c) }

// NewBlockReader opens the read-block iterator (spec §4.3 item 4). A zero
// blockShape defaults to the container's own chunk_shape.
func (c *Container) NewBlockReader(blockShape ishape.Dims) *BlockReader {
	return newBlockReader(c, blockShape)
}

// AppendPrefilteredChunk configures the underlying super-chunk's
// prefilter to fn and appends one full (possibly edge-padded) chunk, per
// spec §4.6's matmul pipeline: "compress the whole chunk — this triggers
// the prefilter once per block". Exported for internal/matmul, the one
// caller that needs the codec's raw prefilter hook (codec.BlockProducer)
// rather than the ElementWriter/BlockWriter abstractions the rest of the
// engine writes through.
func (c *Container) AppendPrefilteredChunk(fn codec.BlockProducer) error {
	placeholder := make([]byte, c.rec.ChunkItems()*c.rec.ItemSize)
	c.sc.SetPrefilter(fn, nil)
	_, err := c.sc.AppendChunk(placeholder)
	return err
}

// Close releases codec resources. For file-backed containers this
// flushes the footer (spec §3's lifecycle note).
func (c *Container) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.isView {
		return nil // a view never owns the super-chunk
	}
	return c.sc.Close()
}

// Describe renders a human-readable metadata dump, grounded on
// original_source/src/iarray_utils.c's debug-print helper. The
// uncompressed size is rendered with go-humanize the way the teacher's
// scan-result reporters size-format byte counts.
func (c *Container) Describe() string {
	nbytes := c.rec.NItems() * c.rec.ItemSize
	return fmt.Sprintf(
		"Container{dtype=%s ndim=%d shape=%v chunk_shape=%v block_shape=%v n_chunks=%d size=%s}",
		c.rec.DType, c.rec.NDim, c.rec.Shape[:c.rec.NDim], c.rec.ChunkShape[:c.rec.NDim],
		c.rec.BlockShape[:c.rec.NDim], c.rec.NChunks(), humanize.Bytes(uint64(nbytes)),
	)
}

// DebugDump renders the full shape record via kr/pretty, for the -v
// inspect path: a denser dump than Describe's one-liner.
func (c *Container) DebugDump() string {
	return fmt.Sprintf("%# v", pretty.Formatter(c.rec))
}
