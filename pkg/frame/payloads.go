package frame

import (
	"encoding/binary"

	"golang.org/x/net/http2"

	"github.com/mardukas/h2engine/pkg/errors"
)

// SettingEntry is one 6-byte id+value pair from a SETTINGS frame payload.
type SettingEntry struct {
	ID    http2.SettingID
	Value uint32
}

// DecodeSettings parses a non-ACK SETTINGS payload into its entries.
// Payload size must be a multiple of 6; unknown ids are
// passed through for the caller to ignore.
func DecodeSettings(payload []byte) ([]SettingEntry, error) {
	if len(payload)%6 != 0 {
		return nil, errors.NewTransport("frame.settings", uint32(http2.ErrCodeProtocol), "SETTINGS payload not a multiple of 6")
	}
	entries := make([]SettingEntry, 0, len(payload)/6)
	for i := 0; i < len(payload); i += 6 {
		entries = append(entries, SettingEntry{
			ID:    http2.SettingID(binary.BigEndian.Uint16(payload[i : i+2])),
			Value: binary.BigEndian.Uint32(payload[i+2 : i+6]),
		})
	}
	return entries, nil
}

// EncodeSettings serializes entries as a SETTINGS frame payload.
func EncodeSettings(entries []SettingEntry) []byte {
	payload := make([]byte, 0, len(entries)*6)
	for _, e := range entries {
		var buf [6]byte
		binary.BigEndian.PutUint16(buf[0:2], uint16(e.ID))
		binary.BigEndian.PutUint32(buf[2:6], e.Value)
		payload = append(payload, buf[:]...)
	}
	return payload
}

// WriteSettings emits a SETTINGS frame for entries, or an empty ACK frame
// when ack is true.
func WriteSettings(dst []byte, entries []SettingEntry, ack bool) []byte {
	if ack {
		return WriteFrame(dst, http2.FrameSettings, http2.FlagSettingsAck, 0, nil)
	}
	return WriteFrame(dst, http2.FrameSettings, 0, 0, EncodeSettings(entries))
}

// WritePing emits a PING frame, ACK set when ack is true.
func WritePing(dst []byte, data [8]byte, ack bool) []byte {
	var flags http2.Flags
	if ack {
		flags = http2.FlagPingAck
	}
	return WriteFrame(dst, http2.FramePing, flags, 0, data[:])
}

// DecodePing validates and returns an 8-byte PING payload.
func DecodePing(payload []byte) ([8]byte, error) {
	var data [8]byte
	if len(payload) != 8 {
		return data, errors.NewTransport("frame.ping", uint32(http2.ErrCodeFrameSize), "PING payload must be 8 bytes")
	}
	copy(data[:], payload)
	return data, nil
}

// WriteGoAway emits a GOAWAY frame.
func WriteGoAway(dst []byte, lastStreamID uint32, code http2.ErrCode, debug []byte) []byte {
	payload := make([]byte, 8+len(debug))
	binary.BigEndian.PutUint32(payload[0:4], lastStreamID&0x7fffffff)
	binary.BigEndian.PutUint32(payload[4:8], uint32(code))
	copy(payload[8:], debug)
	return WriteFrame(dst, http2.FrameGoAway, 0, 0, payload)
}

// DecodeGoAway parses a GOAWAY payload into the peer's last-accepted stream
// id and error code.
func DecodeGoAway(payload []byte) (lastStreamID uint32, code http2.ErrCode, err error) {
	if len(payload) < 8 {
		return 0, 0, errors.NewTransport("frame.goaway", uint32(http2.ErrCodeFrameSize), "GOAWAY payload shorter than 8 bytes")
	}
	lastStreamID = binary.BigEndian.Uint32(payload[0:4]) & 0x7fffffff
	code = http2.ErrCode(binary.BigEndian.Uint32(payload[4:8]))
	return lastStreamID, code, nil
}

// WriteWindowUpdate emits a WINDOW_UPDATE frame.
func WriteWindowUpdate(dst []byte, streamID, increment uint32) []byte {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, increment&0x7fffffff)
	return WriteFrame(dst, http2.FrameWindowUpdate, 0, streamID, payload)
}

// DecodeWindowUpdate parses a 4-byte WINDOW_UPDATE increment, which must be
// nonzero (RFC 7540 §6.9).
func DecodeWindowUpdate(payload []byte) (uint32, error) {
	if len(payload) != 4 {
		return 0, errors.NewTransport("frame.window_update", uint32(http2.ErrCodeFrameSize), "WINDOW_UPDATE payload must be 4 bytes")
	}
	inc := binary.BigEndian.Uint32(payload) & 0x7fffffff
	if inc == 0 {
		return 0, errors.NewTransport("frame.window_update", uint32(http2.ErrCodeProtocol), "zero increment")
	}
	return inc, nil
}

// WriteRstStream emits an RST_STREAM frame.
func WriteRstStream(dst []byte, streamID uint32, code http2.ErrCode) []byte {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(code))
	return WriteFrame(dst, http2.FrameRSTStream, 0, streamID, payload)
}

// DecodeRstStream parses the 4-byte RST_STREAM error code.
func DecodeRstStream(payload []byte) (http2.ErrCode, error) {
	if len(payload) != 4 {
		return 0, errors.NewTransport("frame.rst_stream", uint32(http2.ErrCodeFrameSize), "RST_STREAM payload must be 4 bytes")
	}
	return http2.ErrCode(binary.BigEndian.Uint32(payload)), nil
}

// DecodePriority parses a 5-byte PRIORITY payload (or the 5-byte prefix of
// a HEADERS frame with the PRIORITY flag set).
func DecodePriority(payload []byte) (streamDep uint32, exclusive bool, weight uint8, err error) {
	if len(payload) < 5 {
		return 0, false, 0, errors.NewTransport("frame.priority", uint32(http2.ErrCodeFrameSize), "PRIORITY payload shorter than 5 bytes")
	}
	raw := binary.BigEndian.Uint32(payload[0:4])
	exclusive = raw&0x80000000 != 0
	streamDep = raw &^ 0x80000000
	weight = payload[4]
	return streamDep, exclusive, weight, nil
}

// DecodePromisedID parses the 4-byte promised stream id prefix of a
// PUSH_PROMISE payload, returning the id and the remaining header block
// bytes.
func DecodePromisedID(payload []byte) (promisedID uint32, rest []byte, err error) {
	if len(payload) < 4 {
		return 0, nil, errors.NewTransport("frame.push_promise", uint32(http2.ErrCodeFrameSize), "PUSH_PROMISE payload shorter than 4 bytes")
	}
	return binary.BigEndian.Uint32(payload[0:4]) & 0x7fffffff, payload[4:], nil
}

// EncodePromisedID prepends a 4-byte promised stream id to a PUSH_PROMISE
// header block, for WriteSplitHeaderBlock to then split as usual.
func EncodePromisedID(promisedID uint32, block []byte) []byte {
	out := make([]byte, 4+len(block))
	binary.BigEndian.PutUint32(out[0:4], promisedID&0x7fffffff)
	copy(out[4:], block)
	return out
}
