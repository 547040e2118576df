package container

import (
	"container/heap"

	"iarray/internal/ierrors"
	"iarray/internal/ishape"
)

// chunkSink buffers whole chunks in progress and appends them to the
// super-chunk strictly in ascending chunk index, regardless of the order
// in which individual chunks happen to fill up (spec §5: append_chunk
// calls are strictly ordered by the outer chunk loop). Both the
// write-element and write-block iterators funnel through one of these.
type chunkSink struct {
	c          *Container
	chunkShape ishape.Dims
	nChunksAx  ishape.Dims
	chunkItems int
	itemSize   int

	buffers map[int][]byte
	filled  map[int]int
	target  map[int]int

	nextToFlush int
	totalChunks int

	pending intHeap
}

type intHeap []int

func (h intHeap) Len() int            { return len(h) }
func (h intHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *intHeap) Push(x interface{}) { *h = append(*h, x.(int)) }
func (h *intHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

func newChunkSink(c *Container) *chunkSink {
	rec := c.rec
	var nChunksAx ishape.Dims
	ext := rec.ExtShape()
	for k := 0; k < rec.NDim; k++ {
		nChunksAx[k] = ext[k] / rec.ChunkShape[k]
	}
	return &chunkSink{
		c:           c,
		chunkShape:  rec.ChunkShape,
		nChunksAx:   nChunksAx,
		chunkItems:  rec.ChunkItems(),
		itemSize:    rec.ItemSize,
		buffers:     make(map[int][]byte),
		filled:      make(map[int]int),
		target:      make(map[int]int),
		totalChunks: rec.NChunks(),
	}
}

func (s *chunkSink) chunkLinear(chunkCoord ishape.Dims) int {
	return ishape.NDToFlat(chunkCoord, s.nChunksAx, s.c.rec.NDim)
}

// targetFor returns how many true (non-padding) elements chunk cl
// ultimately receives, computed from the chunk's truncated extent against
// the container's logical shape.
func (s *chunkSink) targetFor(cl int) int {
	if t, ok := s.target[cl]; ok {
		return t
	}
	coord := ishape.FlatToND(cl, s.nChunksAx, s.c.rec.NDim)
	n := 1
	for k := 0; k < s.c.rec.NDim; k++ {
		start := coord[k] * s.chunkShape[k]
		remain := s.c.rec.Shape[k] - start
		if remain > s.chunkShape[k] {
			remain = s.chunkShape[k]
		}
		n *= remain
	}
	s.target[cl] = n
	return n
}

func (s *chunkSink) bufFor(cl int) []byte {
	b, ok := s.buffers[cl]
	if !ok {
		b = make([]byte, s.chunkItems*s.itemSize)
		s.buffers[cl] = b
	}
	return b
}

// writeAt stores value v at global coordinate coord (must lie within the
// logical shape) into the owning chunk's buffer, flushing completed
// chunks in index order as they become ready.
func (s *chunkSink) writeAt(coord ishape.Dims, v float64) error {
	ndim := s.c.rec.NDim
	var chunkCoord, local ishape.Dims
	for k := 0; k < ndim; k++ {
		chunkCoord[k] = coord[k] / s.chunkShape[k]
		local[k] = coord[k] % s.chunkShape[k]
	}
	cl := s.chunkLinear(chunkCoord)
	buf := s.bufFor(cl)
	localFlat := ishape.NDToFlat(local, s.chunkShape, ndim)
	putItem(s.c.rec.DType, buf, localFlat, v)
	s.filled[cl]++
	if s.filled[cl] == s.targetFor(cl) {
		heap.Push(&s.pending, cl)
	}
	return s.drain()
}

func (s *chunkSink) drain() error {
	for s.pending.Len() > 0 && s.pending[0] == s.nextToFlush {
		cl := heap.Pop(&s.pending).(int)
		buf := s.buffers[cl]
		if buf == nil {
			buf = make([]byte, s.chunkItems*s.itemSize)
		}
		if _, err := s.c.sc.AppendChunk(buf); err != nil {
			return err
		}
		delete(s.buffers, cl)
		delete(s.filled, cl)
		delete(s.target, cl)
		s.nextToFlush++
	}
	return nil
}

func (s *chunkSink) finish() error {
	if s.nextToFlush != s.totalChunks {
		return ierrors.NewInvalidArgument("chunk sink closed with %d/%d chunks flushed", s.nextToFlush, s.totalChunks)
	}
	return nil
}
