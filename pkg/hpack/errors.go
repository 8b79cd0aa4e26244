package hpack

import herrors "github.com/mardukas/h2engine/pkg/errors"

// compressionError is HTTP/2's COMPRESSION_ERROR code (RFC 7541 §6), used
// for every fatal HPACK failure regardless of where in the codec it
// originates.
const compressionError = 0x9

// Huffman decode failures. These are always surfaced as Transport errors
// carrying compressionError; kept unexported since callers only need the
// Kind and Code, not the specific cause.
var (
	errInvalidHuffmanCode = herrors.NewTransport("hpack.huffman", compressionError, "invalid Huffman code")
	errHuffmanEOSSymbol   = herrors.NewTransport("hpack.huffman", compressionError, "decoded EOS symbol")
	errTruncatedHuffman   = herrors.NewTransport("hpack.huffman", compressionError, "truncated Huffman padding")
)

// Decoder failures, surfaced directly since decoder.go callers already deal
// in *herrors.Error.
var (
	errIndexZero        = herrors.NewTransport("hpack.decode", compressionError, "index 0 is not a valid indexed representation")
	errIndexOutOfRange  = herrors.NewTransport("hpack.decode", compressionError, "header index out of range")
	errIntegerOverflow  = herrors.NewTransport("hpack.decode", compressionError, "integer encoding overflowed")
	errSizeUpdateBounds = herrors.NewTransport("hpack.decode", compressionError, "dynamic table size update exceeds negotiated limit")
	errSizeUpdateOrder  = herrors.NewTransport("hpack.decode", compressionError, "dynamic table size update must precede any field in the same block")
	errTruncatedInput   = herrors.NewTransport("hpack.decode", compressionError, "truncated header block")
)
