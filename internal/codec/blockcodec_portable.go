package codec

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// portableBlockCodec is the pure-Go backend used whenever cgo Blosc2 is
// unavailable, and in every unit test (tests must never require cgo).
// It maps the spec's codec-id enumeration onto whichever pack-provided
// compressor covers that family: s2 (an LZ4-class byte-oriented coder,
// github.com/klauspost/compress) stands in for BloscLZ/LZ4/LZ4HC/Lizard,
// zstd covers Zstd, and the standard library's zlib covers Zlib/Snappy
// (Snappy's goal — fast, low-ratio — is approximated by zlib level 1,
// since no Snappy implementation is wired elsewhere in the domain stack).
type portableBlockCodec struct {
	zstdEnc *zstd.Encoder
	zstdDec *zstd.Decoder
}

func newPortableBlockCodec() (*portableBlockCodec, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &portableBlockCodec{zstdEnc: enc, zstdDec: dec}, nil
}

func (p *portableBlockCodec) compress(id ID, level int, itemSize int, src []byte) ([]byte, error) {
	if level <= 0 {
		// Level 0 disables compression (spec §6): store raw, tagged so
		// decompress can tell stored from compressed frames apart.
		return append([]byte{0}, src...), nil
	}
	var body []byte
	switch id {
	case Zstd:
		body = p.zstdEnc.EncodeAll(src, nil)
	case Zlib, Snappy:
		var buf bytes.Buffer
		zl := clampZlibLevel(level)
		if id == Snappy {
			zl = 1
		}
		w, err := zlib.NewWriterLevel(&buf, zl)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(src); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		body = buf.Bytes()
	default: // BloscLZ, LZ4, LZ4HC, Lizard
		body = s2.Encode(nil, src)
	}
	return append([]byte{1, byte(id)}, body...), nil
}

func (p *portableBlockCodec) decompress(id ID, itemSize int, src []byte, out []byte) error {
	if len(src) == 0 {
		return fmt.Errorf("codec: empty compressed block")
	}
	if src[0] == 0 {
		n := copy(out, src[1:])
		if n != len(out) {
			return fmt.Errorf("codec: stored block size mismatch: got %d want %d", n, len(out))
		}
		return nil
	}
	storedID := ID(src[1])
	body := src[2:]
	var plain []byte
	var err error
	switch storedID {
	case Zstd:
		plain, err = p.zstdDec.DecodeAll(body, nil)
	case Zlib, Snappy:
		r, zerr := zlib.NewReader(bytes.NewReader(body))
		if zerr != nil {
			return zerr
		}
		defer r.Close()
		plain, err = io.ReadAll(r)
	default:
		plain, err = s2.Decode(nil, body)
	}
	if err != nil {
		return err
	}
	if len(plain) != len(out) {
		return fmt.Errorf("codec: decompressed size mismatch: got %d want %d", len(plain), len(out))
	}
	copy(out, plain)
	return nil
}

func clampZlibLevel(level int) int {
	if level > 9 {
		return 9
	}
	if level < 1 {
		return 1
	}
	return level
}
