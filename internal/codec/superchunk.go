package codec

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

const frameMagic = "IASC" // IronArray Super-Chunk

// superChunk is the concrete SuperChunk. It holds one compressed frame
// per appended chunk; each frame is itself a sequence of independently
// compressed blocks (spec §4.2's Block, the unit of partial decode).
//
// Writes are buffered in memory and only flushed to Storage on Close, per
// spec §3 ("closing releases codec handles and, for file-backed
// containers, flushes the footer") — there is no requirement that every
// append_chunk call hit disk synchronously, and buffering keeps the
// append-only discipline of spec §5 cheap.
type superChunk struct {
	mu sync.Mutex

	params    Params
	storage   Storage
	bc        blockCodec
	blockItems int

	frames [][]byte // one encoded block-sequence per chunk

	prefilter     BlockProducer
	prefilterData interface{}

	closed bool
}

// OpenNew creates a fresh super-chunk backed by storage, using the
// portable codec backend. The cgo Blosc2 binding in blockcodec_blosc.go
// is not reachable through OpenNew or OpenExisting.
func OpenNew(storage Storage, params Params) (SuperChunk, error) {
	bc, err := newPortableBlockCodec()
	if err != nil {
		return nil, err
	}
	return newSuperChunk(storage, params, bc)
}

func newSuperChunk(storage Storage, params Params, bc blockCodec) (SuperChunk, error) {
	if params.ItemSize <= 0 || params.ChunkBytes <= 0 {
		return nil, errCodec("open", -1, fmt.Errorf("invalid params: item_size=%d chunk_bytes=%d", params.ItemSize, params.ChunkBytes))
	}
	blockBytes := params.BlockBytes
	if blockBytes <= 0 {
		blockBytes = params.ChunkBytes
	}
	blockItems := blockBytes / params.ItemSize
	if blockItems <= 0 {
		blockItems = params.ChunkBytes / params.ItemSize
	}
	return &superChunk{
		params:     params,
		storage:    storage,
		bc:         bc,
		blockItems: blockItems,
	}, nil
}

// OpenExisting reconstructs a super-chunk previously flushed to storage.
func OpenExisting(ctx context.Context, storage Storage) (SuperChunk, error) {
	raw, err := storage.read(ctx)
	if err != nil {
		return nil, errCodec("open", -1, err)
	}
	if raw == nil {
		return nil, errCodec("open", -1, fmt.Errorf("no persisted super-chunk at storage"))
	}
	bc, err := newPortableBlockCodec()
	if err != nil {
		return nil, err
	}
	sc := &superChunk{storage: storage, bc: bc}
	if err := sc.decodeFrameFile(raw); err != nil {
		return nil, errCodec("open", -1, err)
	}
	return sc, nil
}

func (s *superChunk) nBlocks(chunkItems int) int {
	n := chunkItems / s.blockItems
	if chunkItems%s.blockItems != 0 {
		n++
	}
	return n
}

func (s *superChunk) AppendChunk(raw []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errCodec("append_chunk", len(s.frames), fmt.Errorf("super-chunk closed"))
	}
	if len(raw) != s.params.ChunkBytes {
		return 0, errCodec("append_chunk", len(s.frames), fmt.Errorf("chunk size %d != expected %d", len(raw), s.params.ChunkBytes))
	}
	frame, err := s.compressChunk(len(s.frames), raw)
	if err != nil {
		return 0, err
	}
	s.frames = append(s.frames, frame)
	return len(s.frames), nil
}

func (s *superChunk) UpdateChunk(i int, raw []byte, copyData bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errCodec("update_chunk", i, fmt.Errorf("super-chunk closed"))
	}
	if i < 0 || i >= len(s.frames) {
		return errCodec("update_chunk", i, fmt.Errorf("chunk index out of range"))
	}
	if len(raw) != s.params.ChunkBytes {
		return errCodec("update_chunk", i, fmt.Errorf("chunk size %d != expected %d", len(raw), s.params.ChunkBytes))
	}
	if copyData {
		raw = append([]byte(nil), raw...)
	}
	frame, err := s.compressChunk(i, raw)
	if err != nil {
		return err
	}
	s.frames[i] = frame
	return nil
}

// compressChunk splits raw into blockItems-sized spans, runs the
// prefilter (if any) over each span before the filter pipeline and
// compression, and encodes the resulting compressed blocks as one frame.
func (s *superChunk) compressChunk(chunkIndex int, raw []byte) ([]byte, error) {
	itemSize := s.params.ItemSize
	chunkItems := len(raw) / itemSize
	nBlocks := s.nBlocks(chunkItems)

	var buf bytes.Buffer
	var lenHdr [4]byte
	binary.LittleEndian.PutUint32(lenHdr[:], uint32(nBlocks))
	buf.Write(lenHdr[:])

	for bi := 0; bi < nBlocks; bi++ {
		start := bi * s.blockItems
		end := start + s.blockItems
		if end > chunkItems {
			end = chunkItems
		}
		span := raw[start*itemSize : end*itemSize]
		if s.prefilter != nil {
			if err := s.prefilter.Fill(bi, span); err != nil {
				return nil, errCodec("prefilter", chunkIndex, err)
			}
		}
		filtered := applyFilters(s.params.Filter, itemSize, s.params, span)
		compressed, err := s.bc.compress(s.params.CodecID, s.params.Level, itemSize, filtered)
		if err != nil {
			return nil, errCodec("compress", chunkIndex, err)
		}
		var blkLen [4]byte
		binary.LittleEndian.PutUint32(blkLen[:], uint32(len(compressed)))
		buf.Write(blkLen[:])
		buf.Write(compressed)
		var plainLen [4]byte
		binary.LittleEndian.PutUint32(plainLen[:], uint32(end-start))
		buf.Write(plainLen[:])
	}
	return buf.Bytes(), nil
}

func (s *superChunk) DecompressChunk(i int, out []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decompressChunkLocked(i, out)
}

func (s *superChunk) decompressChunkLocked(i int, out []byte) error {
	if i < 0 || i >= len(s.frames) {
		return errCodec("decompress_chunk", i, fmt.Errorf("chunk index out of range"))
	}
	if len(out) != s.params.ChunkBytes {
		return errCodec("decompress_chunk", i, fmt.Errorf("out size %d != expected %d", len(out), s.params.ChunkBytes))
	}
	itemSize := s.params.ItemSize
	frame := s.frames[i]
	nBlocks := binary.LittleEndian.Uint32(frame[0:4])
	pos := 4
	outOff := 0
	for b := uint32(0); b < nBlocks; b++ {
		blkLen := int(binary.LittleEndian.Uint32(frame[pos:]))
		pos += 4
		compressed := frame[pos : pos+blkLen]
		pos += blkLen
		plainItems := int(binary.LittleEndian.Uint32(frame[pos:]))
		pos += 4

		plain := make([]byte, plainItems*itemSize)
		if err := s.bc.decompress(s.params.CodecID, itemSize, compressed, plain); err != nil {
			return errCodec("decompress", i, err)
		}
		plain = reverseFilters(s.params.Filter, itemSize, plain)
		copy(out[outOff:], plain)
		outOff += plainItems * itemSize
	}
	return nil
}

func (s *superChunk) GetBlock(i int, blockOffset int, nItems int, out []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	itemSize := s.params.ItemSize
	full := make([]byte, s.params.ChunkBytes)
	if err := s.decompressChunkLocked(i, full); err != nil {
		return err
	}
	start := blockOffset * itemSize
	end := start + nItems*itemSize
	if start < 0 || end > len(full) {
		return errCodec("get_block", i, fmt.Errorf("block range [%d,%d) out of chunk bounds", blockOffset, blockOffset+nItems))
	}
	if len(out) != nItems*itemSize {
		return errCodec("get_block", i, fmt.Errorf("out size %d != expected %d", len(out), nItems*itemSize))
	}
	copy(out, full[start:end])
	return nil
}

func (s *superChunk) SetPrefilter(fn BlockProducer, userData interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefilter = fn
	s.prefilterData = userData
}

func (s *superChunk) NChunks() int     { s.mu.Lock(); defer s.mu.Unlock(); return len(s.frames) }
func (s *superChunk) ChunkBytes() int  { return s.params.ChunkBytes }

func (s *superChunk) Footer() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encodeFrameFile(), nil
}

func (s *superChunk) encodeFrameFile() []byte {
	var buf bytes.Buffer
	buf.WriteString(frameMagic)
	writeInt(&buf, s.params.ItemSize)
	writeInt(&buf, s.params.ChunkBytes)
	writeInt(&buf, s.params.BlockBytes)
	writeInt(&buf, int(s.params.Filter))
	writeInt(&buf, int(s.params.CodecID))
	writeInt(&buf, s.params.Level)
	writeInt(&buf, s.params.FPMantissaBits)
	writeInt(&buf, s.blockItems)
	writeInt(&buf, len(s.frames))
	for _, f := range s.frames {
		writeInt(&buf, len(f))
		buf.Write(f)
	}
	return buf.Bytes()
}

func (s *superChunk) decodeFrameFile(raw []byte) error {
	if len(raw) < len(frameMagic) || string(raw[:len(frameMagic)]) != frameMagic {
		return fmt.Errorf("codec: bad frame magic")
	}
	r := bytes.NewReader(raw[len(frameMagic):])
	s.params.ItemSize = readInt(r)
	s.params.ChunkBytes = readInt(r)
	s.params.BlockBytes = readInt(r)
	s.params.Filter = Filter(readInt(r))
	s.params.CodecID = ID(readInt(r))
	s.params.Level = readInt(r)
	s.params.FPMantissaBits = readInt(r)
	s.blockItems = readInt(r)
	n := readInt(r)
	s.frames = make([][]byte, n)
	for i := 0; i < n; i++ {
		flen := readInt(r)
		buf := make([]byte, flen)
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		s.frames[i] = buf
	}
	return nil
}

func writeInt(buf *bytes.Buffer, v int) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

func readInt(r *bytes.Reader) int {
	var b [8]byte
	io.ReadFull(r, b[:])
	return int(binary.LittleEndian.Uint64(b[:]))
}

func (s *superChunk) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.storage.isPersisted() {
		return nil
	}
	return s.storage.write(context.Background(), s.encodeFrameFile())
}
