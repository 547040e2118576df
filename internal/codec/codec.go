// Package codec is the façade spec §4.2 describes: an opaque super-chunk
// abstraction offering append_chunk, decompress_chunk, get_block,
// update_chunk, and a prefilter hook the codec invokes once per block
// while compressing. The underlying compression primitives (Blosc2 via
// cgo, or a portable pure-Go fallback) are collaborators behind this
// interface — the rest of the engine never imports them directly.
package codec

import "iarray/internal/ierrors"

// ID selects the codec backend, matching every entry of spec §6's
// Configuration table.
type ID int

const (
	BloscLZ ID = iota
	LZ4
	LZ4HC
	Snappy
	Zlib
	Zstd
	Lizard
)

func (id ID) String() string {
	switch id {
	case BloscLZ:
		return "blosclz"
	case LZ4:
		return "lz4"
	case LZ4HC:
		return "lz4hc"
	case Snappy:
		return "snappy"
	case Zlib:
		return "zlib"
	case Zstd:
		return "zstd"
	case Lizard:
		return "lizard"
	default:
		return "unknown"
	}
}

// Filter is a bitmask of filter-pipeline stages, matching spec §6.
type Filter int

const (
	NoFilter   Filter = 0
	Shuffle    Filter = 1 << 0
	BitShuffle Filter = 1 << 1
	Delta      Filter = 1 << 2
	TruncPrec  Filter = 1 << 3
)

// Params configures Open, matching spec §4.2's `open(storage, params)`.
type Params struct {
	ItemSize   int
	ChunkBytes int
	BlockBytes int
	Filter     Filter
	CodecID    ID
	Level      int // 0..9; 0 disables compression.

	// FPMantissaBits only applies when Filter includes TruncPrec and
	// ItemSize == 8 (float64), per spec §6.
	FPMantissaBits int
}

// BlockProducer is the cross-abstraction callback of DESIGN NOTES §9: the
// codec invokes Fill once per block while compressing a chunk, letting the
// caller (typically the matmul pipeline) produce that block's bytes on
// demand instead of having them already sitting in a buffer.
type BlockProducer interface {
	Fill(blockIndex int, out []byte) error
}

// SuperChunk is the opaque codec façade spec §4.2 mandates.
type SuperChunk interface {
	// AppendChunk appends one already-sized chunk (chunk_items*item_size
	// raw bytes, pre-filter) and returns the new chunk count.
	AppendChunk(raw []byte) (int, error)

	// DecompressChunk writes exactly chunk_items*item_size bytes into out.
	DecompressChunk(i int, out []byte) error

	// GetBlock performs a partial decode of nItems items starting at
	// blockOffset (in items) within chunk i, writing into out. May
	// decompress the whole chunk internally when the backend doesn't
	// support true partial decode; callers must not assume zero-copy.
	GetBlock(i int, blockOffset int, nItems int, out []byte) error

	// UpdateChunk overwrites chunk i in place.
	UpdateChunk(i int, raw []byte, copyData bool) error

	// SetPrefilter registers fn to be invoked once per block while
	// compressing. userData is opaque to the façade; implementations may
	// ignore it and rely on fn's closure instead.
	SetPrefilter(fn BlockProducer, userData interface{})

	NChunks() int
	ChunkBytes() int

	// Footer returns the encoded frame file (magic, params and every
	// compressed chunk), the same bytes Close writes to persisted
	// storage. It carries no shape; the container's metadata sidecar
	// does.
	Footer() ([]byte, error)

	Close() error
}

// Remove idempotently deletes any persisted state at storage. It is a
// no-op (not an error) if nothing exists there.
func Remove(storage Storage) error {
	return storage.removeAll()
}

func errCodec(op string, chunk int, cause error) error {
	return ierrors.NewCodecError(op, chunk, cause)
}
