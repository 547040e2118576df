//go:build cgo

package codec

import (
	"fmt"

	"github.com/mrjoshuak/go-blosc"
)

// bloscBlockCodec wraps the real Blosc2 C library through the cgo
// binding. It is the primary backend named in spec §6's codec table; the
// portable backend exists only so the rest of the engine (and every test)
// never has to depend on cgo.
type bloscBlockCodec struct{}

func newBloscBlockCodec() *bloscBlockCodec { return &bloscBlockCodec{} }

func (b *bloscBlockCodec) compress(id ID, level int, itemSize int, src []byte) ([]byte, error) {
	shuffle := blosc.NoShuffle
	out, err := blosc.Compress(level, shuffle, itemSize, src)
	if err != nil {
		return nil, fmt.Errorf("blosc compress: %w", err)
	}
	return out, nil
}

func (b *bloscBlockCodec) decompress(id ID, itemSize int, src []byte, out []byte) error {
	plain, err := blosc.Decompress(src)
	if err != nil {
		return fmt.Errorf("blosc decompress: %w", err)
	}
	if len(plain) != len(out) {
		return fmt.Errorf("blosc: decompressed size mismatch: got %d want %d", len(plain), len(out))
	}
	copy(out, plain)
	return nil
}
