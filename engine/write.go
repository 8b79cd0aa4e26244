package engine

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/http2"

	"github.com/mardukas/h2engine/pkg/errors"
	"github.com/mardukas/h2engine/pkg/frame"
	"github.com/mardukas/h2engine/pkg/hpack"
	"github.com/mardukas/h2engine/pkg/stream"
)

func (c *Connection) http2Active() bool {
	return c.state == stateReady
}

func (c *Connection) h1Active() bool {
	return c.state == stateH1Ready || c.state == stateH1Reading || c.state == stateH1ReadingUpgrade
}

// WriteMessage sends msg's headers. id is 0
// to have a client allocate a new request stream, or an existing stream id
// a server is responding on (or a client issuing an additional request on
// an id it already owns isn't supported; id must name a stream with
// WRITE_HEADERS still set). final marks this as the complete message (no
// body will follow); an informational (1xx) response may not set it.
func (c *Connection) WriteMessage(id uint32, msg *Message, final bool) (uint32, error) {
	if !msg.IsRequest && msg.StatusCode >= 100 && msg.StatusCode < 200 && final {
		return 0, errors.NewAssertion("write_message", "an informational response may not be final")
	}

	if c.h1Active() {
		if err := c.writeH1Head(msg, final); err != nil {
			return 0, err
		}
		c.http1WriteOpen = !final
		return http1StreamID, nil
	}
	if !c.http2Active() {
		return 0, errors.NewAssertion("write_message", "connection is not ready to write")
	}

	var s *stream.Stream
	switch {
	case id == 0:
		if c.role != Client {
			return 0, errors.NewAssertion("write_message", "only a client may create a stream implicitly")
		}
		newID, err := c.nextStreamID(stream.Local)
		if err != nil {
			return 0, err
		}
		ns, err := c.createStream(newID, stream.Local, stream.Headers|stream.Push|stream.WriteHeaders)
		if err != nil {
			return 0, err
		}
		s, id = ns, newID
	default:
		s = c.streams.Find(id)
		if s == nil || s.Accept&stream.WriteHeaders == 0 {
			return 0, errors.NewInvalidStream("write_message", id, "stream does not accept WRITE_HEADERS")
		}
	}

	if err := c.writeH2Head(id, msg, final); err != nil {
		return 0, err
	}

	s.Accept &^= stream.WriteHeaders
	if !(msg.StatusCode >= 100 && msg.StatusCode < 200) {
		s.Accept |= stream.WriteData
	}
	if final {
		s.Accept &^= stream.WriteData | stream.WritePush
		if !s.Live() {
			return id, c.destroyStream(s, streamSideOf(c, id), false)
		}
	}
	return id, nil
}

func pseudoFields(msg *Message) []hpack.HeaderField {
	var out []hpack.HeaderField
	if msg.IsRequest {
		out = append(out,
			hpack.HeaderField{Name: ":method", Value: msg.Method},
			hpack.HeaderField{Name: ":path", Value: msg.Path},
			hpack.HeaderField{Name: ":scheme", Value: msg.Scheme},
		)
		if msg.Authority != "" {
			out = append(out, hpack.HeaderField{Name: ":authority", Value: msg.Authority})
		}
	} else {
		out = append(out, hpack.HeaderField{Name: ":status", Value: strconv.Itoa(msg.StatusCode)})
	}
	return out
}

func (c *Connection) writeH2Head(id uint32, msg *Message, final bool) error {
	fields := append(pseudoFields(msg), msg.Headers...)
	block := c.encoder.Encode(nil, fields)
	dst := frame.WriteSplitHeaderBlock(nil, http2.FrameHeaders, id, block, final, c.remote.MaxFrameSize)
	return c.emitFrames(dst)
}

func (c *Connection) writeH1Head(msg *Message, final bool) error {
	var line string
	if msg.IsRequest {
		line = fmt.Sprintf("%s %s HTTP/1.1\r\n", msg.Method, msg.Path)
	} else {
		line = fmt.Sprintf("HTTP/1.1 %d %s\r\n", msg.StatusCode, http2StatusText(msg.StatusCode))
	}

	var b strings.Builder
	b.WriteString(line)

	haveConnection := false
	haveContentLength := false
	for _, f := range msg.Headers {
		switch f.Name {
		case ":authority":
			fmt.Fprintf(&b, "host: %s\r\n", f.Value)
			continue
		case "connection":
			haveConnection = true
		case "content-length":
			haveContentLength = true
		case "transfer-encoding":
			v := strings.TrimSuffix(strings.TrimSpace(f.Value), ", chunked")
			if v == "" {
				continue
			}
			fmt.Fprintf(&b, "%s: %s\r\n", f.Name, v)
			continue
		}
		if strings.HasPrefix(f.Name, ":") {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\r\n", f.Name, f.Value)
	}

	c.http1WriteChunked = !final && !haveContentLength
	if c.http1WriteChunked {
		b.WriteString("transfer-encoding: chunked\r\n")
	}
	if !haveConnection {
		b.WriteString("connection: keep-alive\r\n")
	}
	b.WriteString("\r\n")
	return c.writeRaw([]byte(b.String()))
}

func http2StatusText(code int) string {
	return http.StatusText(code)
}

// WriteData sends up to len(data) body bytes on id, returning the number of bytes actually consumed. In HTTP/2
// mode the write is clamped to the smaller of the connection and stream
// send windows; a clamp that shortens the write forces final=false for
// this call regardless of what the caller asked for.
func (c *Connection) WriteData(id uint32, data []byte, final bool) (int, error) {
	if c.h1Active() {
		if !c.http1WriteOpen {
			return 0, errors.NewInvalidStream("write_data", id, "no HTTP/1.x message body is open for writing")
		}
		return c.writeH1Data(data, final)
	}
	if !c.http2Active() {
		return 0, errors.NewAssertion("write_data", "connection is not ready to write")
	}

	s := c.streams.Find(id)
	if s == nil || s.Accept&stream.WriteData == 0 {
		return 0, errors.NewInvalidStream("write_data", id, "stream does not accept WRITE_DATA")
	}

	limit := c.connSendWindow
	if s.SendWindow < limit {
		limit = s.SendWindow
	}
	if limit <= 0 {
		return 0, nil
	}
	n := len(data)
	if n > int(limit) {
		n = int(limit)
		final = false
	}
	chunk := data[:n]
	dst := frame.WriteSplitData(nil, id, chunk, final, c.remote.MaxFrameSize)
	if err := c.emitFrames(dst); err != nil {
		return 0, err
	}
	c.connSendWindow -= int32(n)
	s.SendWindow -= int32(n)
	if final {
		s.Accept &^= stream.WriteData | stream.WritePush
		if !s.Live() {
			if err := c.destroyStream(s, streamSideOf(c, id), false); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

func (c *Connection) writeH1Data(data []byte, final bool) (int, error) {
	var b strings.Builder
	if c.http1WriteChunked {
		if len(data) > 0 {
			fmt.Fprintf(&b, "%x\r\n", len(data))
			b.Write(data)
			b.WriteString("\r\n")
		}
		if final {
			b.WriteString("0\r\n\r\n")
		}
	} else {
		b.Write(data)
	}
	if err := c.writeRaw([]byte(b.String())); err != nil {
		return 0, err
	}
	if final {
		c.http1WriteOpen = false
	}
	return len(data), nil
}

// WritePush sends a PUSH_PROMISE on parentID carrying req, then
// synchronously fires the child's own OnMessageStart/OnMessageEnd (a push
// request has no body). A peer that has disabled push makes this a no-op
// returning OK, not an error.
func (c *Connection) WritePush(parentID uint32, req *Message) (uint32, error) {
	if c.role != Server || !c.http2Active() {
		return 0, errors.NewAssertion("write_push", "push is HTTP/2 and server only")
	}
	if c.remote.EnablePush == 0 {
		return 0, nil
	}
	parent := c.streams.Find(parentID)
	if parent == nil || parent.Accept&stream.WritePush == 0 {
		return 0, errors.NewInvalidStream("write_push", parentID, "stream does not accept WRITE_PUSH")
	}

	childID, err := c.nextStreamID(stream.Local)
	if err != nil {
		return 0, err
	}
	if _, err := c.createStream(childID, stream.Local, stream.WriteHeaders|stream.WriteData); err != nil {
		return 0, err
	}

	fields := append(pseudoFields(req), req.Headers...)
	block := c.encoder.Encode(nil, fields)
	dst := frame.WriteSplitHeaderBlock(nil, http2.FramePushPromise, parentID, frame.EncodePromisedID(childID, block), false, c.remote.MaxFrameSize)
	if err := c.emitFrames(dst); err != nil {
		return 0, err
	}

	if err := c.obs.OnMessageStart(childID, req); err != nil {
		return 0, err
	}
	if err := c.obs.OnMessageEnd(childID); err != nil {
		return 0, err
	}
	return childID, nil
}

// WriteReset tears the whole connection down with GOAWAY when id is 0, or
// resets one stream when id > 0 (a no-op OK if the stream is already idle
// or gone).
func (c *Connection) WriteReset(id uint32, code http2.ErrCode) error {
	if id == 0 {
		if c.goawaySent {
			return nil
		}
		c.goawaySent = true
		return c.emitFrames(frame.WriteGoAway(nil, c.streams.LastStreamID(stream.Remote), code, nil))
	}
	s := c.streams.Find(id)
	if s == nil {
		return nil
	}
	return c.localReset(s, streamSideOf(c, id), code)
}

// WritePing sends an unsolicited PING.
func (c *Connection) WritePing(data [8]byte) error {
	if !c.http2Active() {
		return errors.NewAssertion("write_ping", "PING requires HTTP/2 mode")
	}
	return c.emitFrames(frame.WritePing(nil, data, false))
}

// WriteFrame sends a raw frame directly, bypassing the engine's own frame
// construction; validated for HTTP/2 mode only.
func (c *Connection) WriteFrame(typ http2.FrameType, flags http2.Flags, streamID uint32, payload []byte) error {
	if !c.http2Active() {
		return errors.NewAssertion("write_frame", "write_frame requires HTTP/2 mode")
	}
	return c.emitFrames(frame.WriteFrame(nil, typ, flags, streamID, payload))
}

// IncreaseFlowWindow emits a WINDOW_UPDATE for id (0 = connection-level)
// and applies it to local bookkeeping, for an embedder that disabled
// automatic flow control via WithManualFlowControl.
func (c *Connection) IncreaseFlowWindow(id uint32, n uint32) error {
	if !c.http2Active() {
		return errors.NewAssertion("increase_flow_window", "requires HTTP/2 mode")
	}
	if id == 0 {
		if err := c.emitFrames(frame.WriteWindowUpdate(nil, 0, n)); err != nil {
			return err
		}
		c.connRecvWindow += int32(n)
		return c.obs.OnFlowIncrease(0)
	}
	s := c.streams.Find(id)
	if s == nil {
		return errors.NewInvalidStream("increase_flow_window", id, "unknown stream")
	}
	if err := c.emitFrames(frame.WriteWindowUpdate(nil, id, n)); err != nil {
		return err
	}
	s.RecvWindow += int32(n)
	return c.obs.OnFlowIncrease(id)
}

// SetConfig validates and applies a new local Settings record. If the connection has already completed HTTP/2 negotiation, only
// the changed fields are emitted as a SETTINGS frame; otherwise the new
// record simply becomes what stepInit (or the next SetConfig) will use.
func (c *Connection) SetConfig(s Settings) error {
	if err := s.Validate(); err != nil {
		return errors.NewAssertion("set_config", err.Error())
	}
	prev := c.local
	if c.http2Active() {
		delta := s.deltaEntries(prev)
		if len(delta) > 0 {
			if err := c.emitFrames(frame.WriteSettings(nil, delta, false)); err != nil {
				return err
			}
		}
	}
	c.local = s
	if s.HeaderTableSize != prev.HeaderTableSize {
		c.decoder.SetMaxDynamicTableSize(s.HeaderTableSize)
	}
	return nil
}
