package ishape

import "testing"

func TestFlatToNDRoundTrip(t *testing.T) {
	shape := Dims{10, 10, 10}
	ndim := 3
	for i := 0; i < 1000; i++ {
		coord := FlatToND(i, shape, ndim)
		got := NDToFlat(coord, shape, ndim)
		if got != i {
			t.Fatalf("round trip failed for i=%d: coord=%v got=%d", i, coord, got)
		}
	}
}

func TestFlatToNDKnownValues(t *testing.T) {
	// x[i,j,k] = 100i + 10j + k, matching spec scenario S2's array.
	shape := Dims{10, 10, 10}
	coord := FlatToND(347, shape, 3) // 3*100 + 4*10 + 7
	want := Dims{3, 4, 7}
	if coord[0] != want[0] || coord[1] != want[1] || coord[2] != want[2] {
		t.Fatalf("FlatToND(347) = %v, want %v", coord, want)
	}
}

func TestNormalizeSlice(t *testing.T) {
	tests := []struct {
		name        string
		start, stop int
		dim         int
		wantS       int
		wantE       int
	}{
		{"positive in range", 2, 5, 10, 2, 5},
		{"negative start", -4, 10, 10, 6, 10},
		{"negative stop", 3, -3, 10, 3, 7},
		{"both negative", -7, -3, 10, 3, 7},
		{"start beyond dim clamps", 20, 25, 10, 10, 10},
		{"stop before start clamps to start", 5, 2, 10, 5, 5},
		{"full negative wrap both", -10, -1, 10, 0, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, e := NormalizeSlice(tt.start, tt.stop, tt.dim)
			if s != tt.wantS || e != tt.wantE {
				t.Errorf("NormalizeSlice(%d, %d, %d) = (%d, %d), want (%d, %d)",
					tt.start, tt.stop, tt.dim, s, e, tt.wantS, tt.wantE)
			}
		})
	}
}

func TestExtRoundUp(t *testing.T) {
	shape := Dims{7}
	step := Dims{4}
	ext := ExtRoundUp(shape, step, 1)
	if ext[0] != 8 {
		t.Fatalf("ExtRoundUp(7, 4) = %d, want 8", ext[0])
	}
}

func TestRecordDerivedFields(t *testing.T) {
	r := Record{
		NDim:       1,
		Shape:      Dims{7},
		ChunkShape: Dims{4},
		BlockShape: Dims{2},
		DType:      Float64,
		ItemSize:   8,
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected validate error: %v", err)
	}
	if got := r.ExtShape()[0]; got != 8 {
		t.Errorf("ExtShape()[0] = %d, want 8", got)
	}
	if got := r.ExtChunkShape()[0]; got != 4 {
		t.Errorf("ExtChunkShape()[0] = %d, want 4", got)
	}
	if got := r.NItems(); got != 7 {
		t.Errorf("NItems() = %d, want 7", got)
	}
	if got := r.ChunkItems(); got != 4 {
		t.Errorf("ChunkItems() = %d, want 4", got)
	}
	if got := r.NChunks(); got != 2 {
		t.Errorf("NChunks() = %d, want 2", got)
	}
}

func TestIteratePartitionsTruncatesLastTile(t *testing.T) {
	shape := Dims{7}
	part := Dims{4}
	var got []Partition
	err := IteratePartitions(shape, 1, part, func(p Partition) error {
		got = append(got, p)
		return nil
	})
	if err != nil {
		t.Fatalf("IteratePartitions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d partitions, want 2", len(got))
	}
	if got[0].Start[0] != 0 || got[0].Extent[0] != 4 {
		t.Errorf("partition 0 = %+v, want start=0 extent=4", got[0])
	}
	if got[1].Start[0] != 4 || got[1].Extent[0] != 3 {
		t.Errorf("partition 1 = %+v, want start=4 extent=3", got[1])
	}
}

func TestIteratePartitions2D(t *testing.T) {
	shape := Dims{8, 8}
	part := Dims{4, 4}
	n := 0
	err := IteratePartitions(shape, 2, part, func(p Partition) error {
		if p.Linear != n {
			t.Errorf("partition out of order: got linear %d at position %d", p.Linear, n)
		}
		n++
		return nil
	})
	if err != nil {
		t.Fatalf("IteratePartitions: %v", err)
	}
	if n != 4 {
		t.Fatalf("got %d partitions, want 4", n)
	}
}

func TestRecordValidateRejectsBadBlockShape(t *testing.T) {
	r := Record{
		NDim:       1,
		Shape:      Dims{7},
		ChunkShape: Dims{4},
		BlockShape: Dims{5}, // > chunk_shape
		DType:      Float64,
		ItemSize:   8,
	}
	if err := r.Validate(); err == nil {
		t.Fatal("expected validation error for block_shape > chunk_shape")
	}
}
