package codec

// blockCodec is the narrow compress/decompress primitive a SuperChunk
// delegates to. Two implementations exist: the portable one in
// blockcodec_portable.go (klauspost/compress, pure Go) and the cgo Blosc2 binding in
// blockcodec_blosc.go. The façade's SuperChunk type is agnostic to which
// one it holds.
type blockCodec interface {
	compress(id ID, level int, itemSize int, src []byte) ([]byte, error)
	decompress(id ID, itemSize int, src []byte, out []byte) error
}
