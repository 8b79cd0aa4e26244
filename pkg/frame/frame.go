// Package frame implements the HTTP/2 frame layer: reading 9-byte frame
// headers from a buffered byte view, writing frames back out while
// splitting oversized DATA/HEADERS/PUSH_PROMISE payloads into CONTINUATION
// sequences, and the small per-type payload codecs (SETTINGS entries,
// WINDOW_UPDATE increments, GOAWAY, RST_STREAM, PRIORITY, PADDED framing).
// The byte-level header assembly runs directly against pkg/buffer views
// rather than a live io.ReadWriter, since the engine never owns a socket.
package frame

import (
	"encoding/binary"

	"golang.org/x/net/http2"

	"github.com/mardukas/h2engine/pkg/errors"
)

// HeaderLen is the fixed size of an HTTP/2 frame header.
const HeaderLen = 9

// Header is a parsed 9-byte frame header.
type Header struct {
	Length   uint32
	Type     http2.FrameType
	Flags    http2.Flags
	StreamID uint32
}

// PeekLength reads the 24-bit length field without consuming b, returning
// ok=false if fewer than HeaderLen bytes are buffered.
func PeekLength(b []byte) (uint32, bool) {
	if len(b) < HeaderLen {
		return 0, false
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), true
}

// ReadHeader parses the first HeaderLen bytes of b as a frame header.
func ReadHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, errors.NewTransport("frame.read_header", 0, "short frame header")
	}
	return Header{
		Length:   uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]),
		Type:     http2.FrameType(b[3]),
		Flags:    http2.Flags(b[4]),
		StreamID: binary.BigEndian.Uint32(b[5:9]) & 0x7fffffff,
	}, nil
}

// TryExtract attempts to pull one complete frame (header + payload) off the
// front of b. ok is false when fewer than HeaderLen+length bytes are
// buffered yet; the caller should wait for more input. consumed is the
// total byte count to Shift off the source buffer on success.
func TryExtract(b []byte) (hdr Header, payload []byte, consumed int, ok bool, err error) {
	length, have := PeekLength(b)
	if !have {
		return Header{}, nil, 0, false, nil
	}
	total := HeaderLen + int(length)
	if len(b) < total {
		return Header{}, nil, 0, false, nil
	}
	hdr, err = ReadHeader(b)
	if err != nil {
		return Header{}, nil, 0, false, err
	}
	return hdr, b[HeaderLen:total], total, true, nil
}

// WriteHeader appends the wire encoding of h to dst.
func WriteHeader(dst []byte, h Header) []byte {
	var buf [HeaderLen]byte
	buf[0] = byte(h.Length >> 16)
	buf[1] = byte(h.Length >> 8)
	buf[2] = byte(h.Length)
	buf[3] = byte(h.Type)
	buf[4] = byte(h.Flags)
	binary.BigEndian.PutUint32(buf[5:9], h.StreamID&0x7fffffff)
	return append(dst, buf[:]...)
}

// WriteFrame appends one complete frame (header then payload) to dst.
func WriteFrame(dst []byte, typ http2.FrameType, flags http2.Flags, streamID uint32, payload []byte) []byte {
	dst = WriteHeader(dst, Header{Length: uint32(len(payload)), Type: typ, Flags: flags, StreamID: streamID})
	return append(dst, payload...)
}

// StripPadding removes PADDED framing from a DATA/HEADERS/PUSH_PROMISE
// payload when padded is true: the first byte is the pad length, and that
// many bytes at the tail are padding. Returns the bytes before any
// type-specific prefix the caller still needs to strip (e.g. PRIORITY's
// 5 bytes or PUSH_PROMISE's 4-byte promised id).
func StripPadding(payload []byte, padded bool) ([]byte, error) {
	if !padded {
		return payload, nil
	}
	if len(payload) < 1 {
		return nil, errors.NewTransport("frame.strip_padding", uint32(http2.ErrCodeFrameSize), "padded frame with no pad length byte")
	}
	padLen := int(payload[0])
	rest := payload[1:]
	if padLen > len(rest) {
		return nil, errors.NewTransport("frame.strip_padding", uint32(http2.ErrCodeFrameSize), "pad length exceeds payload")
	}
	return rest[:len(rest)-padLen], nil
}

// WriteSplitData emits one or more DATA frames for data, splitting at
// maxFrameSize. Only the final frame carries END_STREAM. An empty data
// slice still emits a single (possibly END_STREAM-only) frame, matching
// write_data's "final with no bytes" case.
func WriteSplitData(dst []byte, streamID uint32, data []byte, endStream bool, maxFrameSize uint32) []byte {
	if len(data) == 0 {
		var flags http2.Flags
		if endStream {
			flags |= http2.FlagDataEndStream
		}
		return WriteFrame(dst, http2.FrameData, flags, streamID, nil)
	}
	for len(data) > 0 {
		n := len(data)
		if uint32(n) > maxFrameSize {
			n = int(maxFrameSize)
		}
		chunk := data[:n]
		data = data[n:]
		var flags http2.Flags
		if len(data) == 0 && endStream {
			flags |= http2.FlagDataEndStream
		}
		dst = WriteFrame(dst, http2.FrameData, flags, streamID, chunk)
	}
	return dst
}

// WriteSplitHeaderBlock emits firstType (HEADERS or PUSH_PROMISE) followed
// by zero or more CONTINUATION frames carrying block, splitting at
// maxFrameSize. END_HEADERS is set only on the last frame; endStream (only
// meaningful when firstType is HEADERS) is set on the first frame.
func WriteSplitHeaderBlock(dst []byte, firstType http2.FrameType, streamID uint32, block []byte, endStream bool, maxFrameSize uint32) []byte {
	first := true
	for {
		n := len(block)
		if uint32(n) > maxFrameSize {
			n = int(maxFrameSize)
		}
		chunk := block[:n]
		block = block[n:]
		last := len(block) == 0

		typ := http2.FrameContinuation
		var flags http2.Flags
		if first {
			typ = firstType
			if firstType == http2.FrameHeaders && endStream {
				flags |= http2.FlagHeadersEndStream
			}
		}
		if last {
			if typ == http2.FrameContinuation {
				flags |= http2.FlagContinuationEndHeaders
			} else if typ == http2.FramePushPromise {
				flags |= http2.FlagPushPromiseEndHeaders
			} else {
				flags |= http2.FlagHeadersEndHeaders
			}
		}

		dst = WriteFrame(dst, typ, flags, streamID, chunk)
		first = false
		if last {
			break
		}
	}
	return dst
}
