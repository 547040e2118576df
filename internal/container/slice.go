package container

import (
	"iarray/internal/codec"
	"iarray/internal/ierrors"
	"iarray/internal/ishape"
)

// Slice materializes a new container holding the box [start, stop) of c,
// normalizing negative indices and clamping per spec §4.1. Unlike a
// zero-copy view (spec §9's "cyclic ownership" open question), the result
// owns its own super-chunk: every read path in this package goes through
// GetBlock/DecompressChunk, so a view sharing the parent's chunk grid
// would need every chunk boundary to realign with the slice box, which
// isn't true in general. We always copy.
func (c *Container) Slice(start, stop ishape.Dims, params codec.Params, storage codec.Storage) (*Container, error) {
	ndim := c.rec.NDim
	var s, e, newShape ishape.Dims
	for k := 0; k < ndim; k++ {
		s[k], e[k] = ishape.NormalizeSlice(start[k], stop[k], c.rec.Shape[k])
		newShape[k] = e[k] - s[k]
		if newShape[k] <= 0 {
			return nil, ierrors.NewInvalidArgument("slice axis %d is empty after normalization", k)
		}
	}

	chunkShape := c.rec.ChunkShape
	for k := 0; k < ndim; k++ {
		if chunkShape[k] > newShape[k] {
			chunkShape[k] = newShape[k]
		}
	}
	blockShape := c.rec.BlockShape
	for k := 0; k < ndim; k++ {
		if blockShape[k] > chunkShape[k] {
			blockShape[k] = chunkShape[k]
		}
	}

	rec := ishape.Record{
		NDim: ndim, Shape: newShape, ChunkShape: chunkShape,
		BlockShape: blockShape, DType: c.rec.DType, ItemSize: c.rec.ItemSize,
	}

	out, err := newContainerShell(rec, params, storage)
	if err != nil {
		return nil, err
	}
	w := newElementWriter(out)

	ext := c.rec.ExtShape()
	var nChunksAx ishape.Dims
	for k := 0; k < ndim; k++ {
		nChunksAx[k] = ext[k] / c.rec.ChunkShape[k]
	}
	chunkBuf := make([]byte, c.rec.ChunkItems()*c.rec.ItemSize)
	lastChunk := -1

	n := rec.NItems()
	for i := 0; i < n; i++ {
		local := ishape.FlatToND(i, newShape, ndim)
		var global, chunkCoord, localInChunk ishape.Dims
		for k := 0; k < ndim; k++ {
			global[k] = s[k] + local[k]
			chunkCoord[k] = global[k] / c.rec.ChunkShape[k]
			localInChunk[k] = global[k] % c.rec.ChunkShape[k]
		}
		cl := ishape.NDToFlat(chunkCoord, nChunksAx, ndim)
		if cl != lastChunk {
			if err := c.sc.DecompressChunk(cl, chunkBuf); err != nil {
				return nil, err
			}
			lastChunk = cl
		}
		localFlat := ishape.NDToFlat(localInChunk, c.rec.ChunkShape, ndim)
		v := getItem(c.rec.DType, chunkBuf, localFlat)
		if err := w.Write(v); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

// Squeeze returns a new shape record with every length-1 axis removed,
// per spec §4.1's squeeze operation. Rank never drops below 1: squeezing
// a container every axis of which is length 1 yields a rank-1, length-1
// result.
func (c *Container) Squeeze(params codec.Params, storage codec.Storage) (*Container, error) {
	var newShape, newChunk, newBlock ishape.Dims
	newNDim := 0
	for k := 0; k < c.rec.NDim; k++ {
		if c.rec.Shape[k] == 1 {
			continue
		}
		newShape[newNDim] = c.rec.Shape[k]
		newChunk[newNDim] = c.rec.ChunkShape[k]
		newBlock[newNDim] = c.rec.BlockShape[k]
		newNDim++
	}
	if newNDim == 0 {
		newShape[0], newChunk[0], newBlock[0] = 1, 1, 1
		newNDim = 1
	}
	rec := ishape.Record{
		NDim: newNDim, Shape: newShape, ChunkShape: newChunk,
		BlockShape: newBlock, DType: c.rec.DType, ItemSize: c.rec.ItemSize,
	}

	out, err := newContainerShell(rec, params, storage)
	if err != nil {
		return nil, err
	}
	w := newElementWriter(out)
	r := newElementReader(c)
	for r.HasNext() {
		v, _, err := r.Next()
		if err != nil {
			return nil, err
		}
		if err := w.Write(v); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out, nil
}
