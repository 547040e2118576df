package container

import (
	"iarray/internal/ierrors"
	"iarray/internal/ishape"
)

// ElementWriter is the write-element iterator of spec §4.3: callers push
// values one at a time in row-major order; padding cells are never
// exposed to the caller, and full chunks are appended to the super-chunk
// as soon as every true element they own has been written.
type ElementWriter struct {
	c    *Container
	sink *chunkSink
	pos  int
	n    int
}

func newElementWriter(c *Container) *ElementWriter {
	return &ElementWriter{c: c, sink: newChunkSink(c), n: c.rec.NItems()}
}

// Write accumulates the next logical element (row-major order).
func (w *ElementWriter) Write(v float64) error {
	if w.pos >= w.n {
		return ierrors.NewInvalidArgument("write-element iterator: all %d elements already written", w.n)
	}
	coord := ishape.FlatToND(w.pos, w.c.rec.Shape, w.c.rec.NDim)
	if err := w.sink.writeAt(coord, v); err != nil {
		return err
	}
	w.pos++
	return nil
}

// LinearIndex returns the number of elements written so far.
func (w *ElementWriter) LinearIndex() int { return w.pos }

// HasNext reports whether more elements may be written.
func (w *ElementWriter) HasNext() bool { return w.pos < w.n }

// Close requires that every element has been written and flushes any
// chunk still pending.
func (w *ElementWriter) Close() error {
	if w.pos != w.n {
		return ierrors.NewInvalidArgument("write-element iterator closed after %d/%d elements", w.pos, w.n)
	}
	return w.sink.finish()
}

// BlockWriter is the write-block / partition iterator of spec §4.3 item 2.
// Each call to NextBuffer returns a scratch buffer truncated to the true
// (unpadded) extent at array edges; Commit scatters it into the
// underlying chunk buffers and, once a chunk is complete, appends it.
type BlockWriter struct {
	c          *Container
	sink       *chunkSink
	blockShape ishape.Dims
	total      int
	cur        int
	scratch    []byte
	curExtent  ishape.Dims
	curStart   ishape.Dims
	pending    bool
}

// newBlockWriter creates a block writer. If blockShape is the zero value
// it defaults to the container's own chunk_shape, matching the glossary's
// "partition iterator" (one write call per chunk).
func newBlockWriter(c *Container, blockShape ishape.Dims) *BlockWriter {
	if blockShape == (ishape.Dims{}) {
		blockShape = c.rec.ChunkShape
	}
	total := ishape.NPartitions(c.rec.Shape, c.rec.NDim, blockShape)
	return &BlockWriter{c: c, sink: newChunkSink(c), blockShape: blockShape, total: total}
}

// NextBuffer returns the scratch buffer for the next block, sized to its
// truncated (edge-clamped) extent, plus that extent and the block's
// linear index. The caller fills scratch in row-major order before
// calling Commit.
func (w *BlockWriter) NextBuffer() (scratch []byte, extent ishape.Dims, blockIndex int, err error) {
	if w.cur >= w.total {
		return nil, ishape.Dims{}, 0, ierrors.EndIterErr
	}
	var p ishape.Partition
	visited := 0
	walkErr := ishape.IteratePartitions(w.c.rec.Shape, w.c.rec.NDim, w.blockShape, func(part ishape.Partition) error {
		if visited == w.cur {
			p = part
		}
		visited++
		return nil
	})
	if walkErr != nil {
		return nil, ishape.Dims{}, 0, walkErr
	}
	n := ishape.Prod(p.Extent, w.c.rec.NDim)
	w.scratch = make([]byte, n*w.c.rec.ItemSize)
	w.curExtent = p.Extent
	w.curStart = p.Start
	w.pending = true
	return w.scratch, p.Extent, w.cur, nil
}

// Commit scatters the filled scratch buffer into the underlying chunk(s)
// and advances to the next block.
func (w *BlockWriter) Commit() error {
	if !w.pending {
		return ierrors.NewInvalidArgument("BlockWriter.Commit called without a pending NextBuffer")
	}
	ndim := w.c.rec.NDim
	n := ishape.Prod(w.curExtent, ndim)
	for i := 0; i < n; i++ {
		local := ishape.FlatToND(i, w.curExtent, ndim)
		var global ishape.Dims
		for k := 0; k < ndim; k++ {
			global[k] = w.curStart[k] + local[k]
		}
		v := getItem(w.c.rec.DType, w.scratch, i)
		if err := w.sink.writeAt(global, v); err != nil {
			return err
		}
	}
	w.pending = false
	w.cur++
	return nil
}

func (w *BlockWriter) HasNext() bool { return w.cur < w.total }

func (w *BlockWriter) Close() error {
	if w.cur != w.total {
		return ierrors.NewInvalidArgument("write-block iterator closed after %d/%d blocks", w.cur, w.total)
	}
	return w.sink.finish()
}
