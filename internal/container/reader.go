package container

import (
	"iarray/internal/ierrors"
	"iarray/internal/ishape"
)

// ElementReader is the read-element iterator of spec §4.3 item 3: it
// decompresses one chunk at a time into a scratch buffer and yields
// elements from it in row-major order, skipping padding.
type ElementReader struct {
	c          *Container
	pos        int
	n          int
	chunkBuf   []byte
	curChunk   int
	haveChunk  bool
	nChunksAx  ishape.Dims
}

func newElementReader(c *Container) *ElementReader {
	ext := c.rec.ExtShape()
	var nChunksAx ishape.Dims
	for k := 0; k < c.rec.NDim; k++ {
		nChunksAx[k] = ext[k] / c.rec.ChunkShape[k]
	}
	return &ElementReader{
		c:         c,
		n:         c.rec.NItems(),
		chunkBuf:  make([]byte, c.rec.ChunkItems()*c.rec.ItemSize),
		curChunk:  -1,
		nChunksAx: nChunksAx,
	}
}

func (r *ElementReader) HasNext() bool { return r.pos < r.n }

// Next returns the next element value and its linear index.
func (r *ElementReader) Next() (float64, int, error) {
	if r.pos >= r.n {
		return 0, 0, ierrors.EndIterErr
	}
	ndim := r.c.rec.NDim
	coord := ishape.FlatToND(r.pos, r.c.rec.Shape, ndim)
	var chunkCoord, local ishape.Dims
	for k := 0; k < ndim; k++ {
		chunkCoord[k] = coord[k] / r.c.rec.ChunkShape[k]
		local[k] = coord[k] % r.c.rec.ChunkShape[k]
	}
	cl := ishape.NDToFlat(chunkCoord, r.nChunksAx, ndim)
	if cl != r.curChunk {
		if err := r.c.sc.DecompressChunk(cl, r.chunkBuf); err != nil {
			return 0, 0, err
		}
		r.curChunk = cl
	}
	localFlat := ishape.NDToFlat(local, r.c.rec.ChunkShape, ndim)
	v := getItem(r.c.rec.DType, r.chunkBuf, localFlat)
	idx := r.pos
	r.pos++
	return v, idx, nil
}

// BlockReader is the read-block iterator of spec §4.3 item 4: for an
// arbitrary user block shape it decompresses each chunk the block touches
// and gathers the block's elements from it, yielding (values,
// block_shape, elem_index, block_index, linear_index).
type BlockReader struct {
	c          *Container
	blockShape ishape.Dims
	total      int
	cur        int
	elemIndex  int
}

func newBlockReader(c *Container, blockShape ishape.Dims) *BlockReader {
	if blockShape == (ishape.Dims{}) {
		blockShape = c.rec.ChunkShape
	}
	total := ishape.NPartitions(c.rec.Shape, c.rec.NDim, blockShape)
	return &BlockReader{c: c, blockShape: blockShape, total: total}
}

func (r *BlockReader) HasNext() bool { return r.cur < r.total }

// Next decodes the next block and returns its values in row-major order
// along with its extent, starting element index, block index, and a
// monotonically increasing linear index.
func (r *BlockReader) Next() (values []float64, extent ishape.Dims, elemIndex, blockIndex, linear int, err error) {
	if r.cur >= r.total {
		return nil, ishape.Dims{}, 0, 0, 0, ierrors.EndIterErr
	}
	ndim := r.c.rec.NDim
	var p ishape.Partition
	visited := 0
	walkErr := ishape.IteratePartitions(r.c.rec.Shape, ndim, r.blockShape, func(part ishape.Partition) error {
		if visited == r.cur {
			p = part
		}
		visited++
		return nil
	})
	if walkErr != nil {
		return nil, ishape.Dims{}, 0, 0, 0, walkErr
	}

	n := ishape.Prod(p.Extent, ndim)
	values = make([]float64, n)

	// Walk the block element by element, mapping each to its chunk and
	// in-chunk position; a chunk is decompressed whole when the walk
	// first reaches it, which is correct whether or not the requested
	// block shape aligns to the container's own chunk grid.
	ext := r.c.rec.ExtShape()
	var nChunksAx ishape.Dims
	for k := 0; k < ndim; k++ {
		nChunksAx[k] = ext[k] / r.c.rec.ChunkShape[k]
	}
	chunkBuf := make([]byte, r.c.rec.ChunkItems()*r.c.rec.ItemSize)
	lastChunk := -1
	for i := 0; i < n; i++ {
		local := ishape.FlatToND(i, p.Extent, ndim)
		var global, chunkCoord, localInChunk ishape.Dims
		for k := 0; k < ndim; k++ {
			global[k] = p.Start[k] + local[k]
			chunkCoord[k] = global[k] / r.c.rec.ChunkShape[k]
			localInChunk[k] = global[k] % r.c.rec.ChunkShape[k]
		}
		cl := ishape.NDToFlat(chunkCoord, nChunksAx, ndim)
		if cl != lastChunk {
			if derr := r.c.sc.DecompressChunk(cl, chunkBuf); derr != nil {
				return nil, ishape.Dims{}, 0, 0, 0, derr
			}
			lastChunk = cl
		}
		localFlat := ishape.NDToFlat(localInChunk, r.c.rec.ChunkShape, ndim)
		values[i] = getItem(r.c.rec.DType, chunkBuf, localFlat)
	}

	extent = p.Extent
	elemIndex = r.elemIndex
	blockIndex = r.cur
	linear = r.cur

	r.elemIndex += n
	r.cur++
	return values, extent, elemIndex, blockIndex, linear, nil
}
