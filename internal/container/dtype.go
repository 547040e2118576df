package container

import (
	"encoding/binary"
	"math"

	"iarray/internal/ishape"
)

// getItem reads one scalar at item index idx (row-major, flat) out of buf
// according to dtype, returning it widened to float64 for the evaluator
// and constructor paths that work in float64 regardless of storage width.
func getItem(dtype ishape.DType, buf []byte, idx int) float64 {
	switch dtype {
	case ishape.Float32:
		bits := binary.LittleEndian.Uint32(buf[idx*4:])
		return float64(math.Float32frombits(bits))
	default:
		bits := binary.LittleEndian.Uint64(buf[idx*8:])
		return math.Float64frombits(bits)
	}
}

// GetItem is the exported form of getItem, for packages (e.g.
// internal/evaluator, internal/matmul) that read decompressed panels
// without going through a Container's own iterators.
func GetItem(dtype ishape.DType, buf []byte, idx int) float64 { return getItem(dtype, buf, idx) }

// PutItem is the exported form of putItem.
func PutItem(dtype ishape.DType, buf []byte, idx int, v float64) { putItem(dtype, buf, idx, v) }

func putItem(dtype ishape.DType, buf []byte, idx int, v float64) {
	switch dtype {
	case ishape.Float32:
		binary.LittleEndian.PutUint32(buf[idx*4:], math.Float32bits(float32(v)))
	default:
		binary.LittleEndian.PutUint64(buf[idx*8:], math.Float64bits(v))
	}
}
