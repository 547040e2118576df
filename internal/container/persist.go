package container

import (
	"context"
	"encoding/json"

	"iarray/internal/codec"
	"iarray/internal/ierrors"
	"iarray/internal/ishape"
)

// metaFile is the sidecar JSON written next to a persisted super-chunk's
// frame, recording everything OpenExisting can't recover from Params
// alone (spec §3's on-disk footer: "dtype, ndim, shape, chunk_shape,
// block_shape").
type metaFile struct {
	DType      int         `json:"dtype"`
	NDim       int         `json:"ndim"`
	Shape      []int       `json:"shape"`
	ChunkShape []int       `json:"chunk_shape"`
	BlockShape []int       `json:"block_shape"`
}

func toSlice(d ishape.Dims, n int) []int {
	out := make([]int, n)
	copy(out, d[:n])
	return out
}

func fromSlice(s []int) ishape.Dims {
	var d ishape.Dims
	copy(d[:], s)
	return d
}

// FromBuffer wraps a pre-existing flat row-major buffer of float64/float32
// values as a new container, matching spec §4.3's "from_buffer" entry
// point. The buffer must hold exactly rec.NItems() values in the given
// dtype's encoding.
func FromBuffer(rec ishape.Record, params codec.Params, storage codec.Storage, buf []byte) (*Container, error) {
	n := rec.NItems()
	if len(buf) != n*rec.ItemSize {
		return nil, ierrors.NewInvalidArgument("from_buffer: buffer has %d bytes, want %d", len(buf), n*rec.ItemSize)
	}
	return buildFromFunc(rec, params, storage, func(i int) float64 {
		return getItem(rec.DType, buf, i)
	})
}

// CloseWithMeta persists the shape metadata sidecar (when storage is file-backed)
// before delegating to the super-chunk's own Close.
func (c *Container) CloseWithMeta(ctx context.Context) error {
	if c.closed {
		return nil
	}
	if c.storage.IsPersisted() && !c.isView {
		meta := metaFile{
			DType:      int(c.rec.DType),
			NDim:       c.rec.NDim,
			Shape:      toSlice(c.rec.Shape, c.rec.NDim),
			ChunkShape: toSlice(c.rec.ChunkShape, c.rec.NDim),
			BlockShape: toSlice(c.rec.BlockShape, c.rec.NDim),
		}
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		if err := c.storage.WriteMeta(ctx, data); err != nil {
			return err
		}
	}
	return c.Close()
}

// FromFile reopens a container previously closed (via CloseWithMeta) onto
// file-backed storage, reconstructing its shape record from the sidecar
// metadata and its super-chunk from the persisted frame.
func FromFile(ctx context.Context, storage codec.Storage) (*Container, error) {
	raw, err := storage.ReadMeta(ctx)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ierrors.NewInvalidArgument("from_file: no metadata sidecar found")
	}
	var meta metaFile
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	rec := ishape.Record{
		NDim:       meta.NDim,
		Shape:      fromSlice(meta.Shape),
		ChunkShape: fromSlice(meta.ChunkShape),
		BlockShape: fromSlice(meta.BlockShape),
		DType:      ishape.DType(meta.DType),
		ItemSize:   ishape.DType(meta.DType).ItemSize(),
	}
	sc, err := codec.OpenExisting(ctx, storage)
	if err != nil {
		return nil, err
	}
	return &Container{rec: rec, sc: sc, storage: storage}, nil
}
