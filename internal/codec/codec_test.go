package codec

import (
	"encoding/binary"
	"math"
	"testing"
)

func float64sToBytes(vals []float64) []byte {
	buf := make([]byte, len(vals)*8)
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func bytesToFloat64s(b []byte) []float64 {
	n := len(b) / 8
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out
}

func TestAppendDecompressRoundTrip(t *testing.T) {
	params := Params{ItemSize: 8, ChunkBytes: 8 * 16, BlockBytes: 8 * 4, CodecID: Zstd, Level: 5}
	sc, err := OpenNew(InMemory(), params)
	if err != nil {
		t.Fatalf("OpenNew: %v", err)
	}
	defer sc.Close()

	vals := make([]float64, 16)
	for i := range vals {
		vals[i] = float64(i) * 1.5
	}
	raw := float64sToBytes(vals)
	n, err := sc.AppendChunk(raw)
	if err != nil {
		t.Fatalf("AppendChunk: %v", err)
	}
	if n != 1 {
		t.Fatalf("NChunks after append = %d, want 1", n)
	}

	out := make([]byte, len(raw))
	if err := sc.DecompressChunk(0, out); err != nil {
		t.Fatalf("DecompressChunk: %v", err)
	}
	got := bytesToFloat64s(out)
	for i, v := range got {
		if v != vals[i] {
			t.Fatalf("round trip mismatch at %d: got %v want %v", i, v, vals[i])
		}
	}
}

func TestGetBlockPartialDecode(t *testing.T) {
	params := Params{ItemSize: 8, ChunkBytes: 8 * 16, BlockBytes: 8 * 4, CodecID: LZ4, Level: 3}
	sc, err := OpenNew(InMemory(), params)
	if err != nil {
		t.Fatalf("OpenNew: %v", err)
	}
	defer sc.Close()

	vals := make([]float64, 16)
	for i := range vals {
		vals[i] = float64(i)
	}
	raw := float64sToBytes(vals)
	if _, err := sc.AppendChunk(raw); err != nil {
		t.Fatalf("AppendChunk: %v", err)
	}

	out := make([]byte, 4*8)
	if err := sc.GetBlock(0, 8, 4, out); err != nil {
		t.Fatalf("GetBlock: %v", err)
	}
	got := bytesToFloat64s(out)
	want := []float64{8, 9, 10, 11}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("GetBlock mismatch at %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestUpdateChunk(t *testing.T) {
	params := Params{ItemSize: 8, ChunkBytes: 8 * 8, BlockBytes: 8 * 8, CodecID: Zlib, Level: 6}
	sc, err := OpenNew(InMemory(), params)
	if err != nil {
		t.Fatalf("OpenNew: %v", err)
	}
	defer sc.Close()

	zeros := make([]byte, 8*8)
	if _, err := sc.AppendChunk(zeros); err != nil {
		t.Fatalf("AppendChunk: %v", err)
	}
	vals := make([]float64, 8)
	for i := range vals {
		vals[i] = float64(i) + 0.5
	}
	raw := float64sToBytes(vals)
	if err := sc.UpdateChunk(0, raw, true); err != nil {
		t.Fatalf("UpdateChunk: %v", err)
	}
	out := make([]byte, len(raw))
	if err := sc.DecompressChunk(0, out); err != nil {
		t.Fatalf("DecompressChunk: %v", err)
	}
	got := bytesToFloat64s(out)
	for i, v := range got {
		if v != vals[i] {
			t.Fatalf("mismatch at %d: got %v want %v", i, v, vals[i])
		}
	}
}

type constantFiller struct{ value float64 }

func (c constantFiller) Fill(blockIndex int, out []byte) error {
	n := len(out) / 8
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(c.value))
	}
	return nil
}

func TestPrefilterInvokedPerBlock(t *testing.T) {
	params := Params{ItemSize: 8, ChunkBytes: 8 * 16, BlockBytes: 8 * 4, CodecID: Snappy, Level: 1}
	sc, err := OpenNew(InMemory(), params)
	if err != nil {
		t.Fatalf("OpenNew: %v", err)
	}
	defer sc.Close()

	sc.SetPrefilter(constantFiller{value: 42}, nil)
	placeholder := make([]byte, params.ChunkBytes)
	if _, err := sc.AppendChunk(placeholder); err != nil {
		t.Fatalf("AppendChunk: %v", err)
	}

	out := make([]byte, params.ChunkBytes)
	if err := sc.DecompressChunk(0, out); err != nil {
		t.Fatalf("DecompressChunk: %v", err)
	}
	got := bytesToFloat64s(out)
	for i, v := range got {
		if v != 42 {
			t.Fatalf("prefilter not applied at %d: got %v", i, v)
		}
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := InMemory()
	if err := Remove(s); err != nil {
		t.Fatalf("Remove on empty storage: %v", err)
	}
	if err := Remove(s); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
}
