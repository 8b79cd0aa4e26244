package engine

import (
	"golang.org/x/net/http2"

	"github.com/mardukas/h2engine/pkg/buffer"
	"github.com/mardukas/h2engine/pkg/constants"
	"github.com/mardukas/h2engine/pkg/frame"
	"github.com/mardukas/h2engine/pkg/stream"
	"github.com/mardukas/h2engine/pkg/validate"
)

// handleHeaders processes a HEADERS frame: request-creating on an unknown
// stream, response-or-trailers on a known one.
func (c *Connection) handleHeaders(hdr frame.Header, payload []byte) error {
	block, err := frame.StripPadding(payload, hdr.Flags&http2.FlagHeadersPadded != 0)
	if err != nil {
		return c.goAwayFrom(err)
	}
	if hdr.Flags&http2.FlagHeadersPriority != 0 {
		if len(block) < 5 {
			return c.goAway(http2.ErrCodeFrameSize, "headers", "HEADERS priority prefix truncated")
		}
		if _, _, _, err := frame.DecodePriority(block); err != nil {
			return c.goAwayFrom(err)
		}
		block = block[5:]
	}

	endStream := hdr.Flags&http2.FlagHeadersEndStream != 0
	endHeaders := hdr.Flags&http2.FlagHeadersEndHeaders != 0

	s := c.streams.Find(hdr.StreamID)
	if s == nil {
		if c.streams.RecentlyReset(hdr.StreamID) {
			return c.beginHeaderBlock(hdr.StreamID, 0, false, false, true, endStream, endHeaders, block)
		}
		if c.role != Server {
			return c.goAway(http2.ErrCodeProtocol, "headers", "client received HEADERS opening an unknown stream")
		}
		if _, err := c.createStream(hdr.StreamID, stream.Remote, stream.Data|stream.Trailers|stream.WriteHeaders|stream.WritePush); err != nil {
			return err
		}
		return c.beginHeaderBlock(hdr.StreamID, 0, true, false, false, endStream, endHeaders, block)
	}

	isTrailers := s.Accept&stream.Headers == 0
	s.Accept &^= stream.Headers
	if !isTrailers {
		s.Accept |= stream.Data | stream.Trailers
	}
	return c.beginHeaderBlock(hdr.StreamID, 0, false, isTrailers, false, endStream, endHeaders, block)
}

// handlePushPromise processes a server-to-client push announcement. The promised stream is created immediately,
// server-initiated and read-only from here; its header block always
// carries a synthetic request and is delivered via OnMessagePush once
// complete.
func (c *Connection) handlePushPromise(hdr frame.Header, payload []byte) error {
	if c.role != Client {
		return c.goAway(http2.ErrCodeProtocol, "push_promise", "server received PUSH_PROMISE")
	}
	if c.local.EnablePush == 0 {
		return c.goAway(http2.ErrCodeProtocol, "push_promise", "PUSH_PROMISE received with push disabled")
	}
	block, err := frame.StripPadding(payload, hdr.Flags&http2.FlagPushPromisePadded != 0)
	if err != nil {
		return c.goAwayFrom(err)
	}
	promisedID, rest, err := frame.DecodePromisedID(block)
	if err != nil {
		return c.goAwayFrom(err)
	}
	parent := c.streams.Find(hdr.StreamID)
	if parent == nil && !c.streams.RecentlyReset(hdr.StreamID) {
		return c.goAway(http2.ErrCodeProtocol, "push_promise", "PUSH_PROMISE on unknown parent stream")
	}
	if _, err := c.createStream(promisedID, stream.Remote, stream.Headers|stream.Data|stream.Trailers); err != nil {
		return err
	}
	endHeaders := hdr.Flags&http2.FlagPushPromiseEndHeaders != 0
	return c.beginHeaderBlock(hdr.StreamID, promisedID, true, false, false, false, endHeaders, rest)
}

// handleContinuation appends a CONTINUATION frame's payload onto the
// in-progress header block, enforcing the MaxContinuations
// bound (RFC 7540 §10.5's "small frame flood" hardening).
func (c *Connection) handleContinuation(hdr frame.Header, payload []byte) error {
	if !c.cont.active || hdr.StreamID != c.cont.streamID {
		return c.goAway(http2.ErrCodeProtocol, "continuation", "CONTINUATION without a matching HEADERS/PUSH_PROMISE sequence")
	}
	c.cont.count++
	if c.cont.count > constants.MaxContinuations {
		return c.goAway(http2.ErrCodeEnhanceYourCalm, "continuation", "too many CONTINUATION frames in one header block")
	}
	if err := c.cont.buf.Append(payload); err != nil {
		return err
	}
	if hdr.Flags&http2.FlagContinuationEndHeaders == 0 {
		return nil
	}
	return c.finishHeaderBlock()
}

// beginHeaderBlock stores block as the start of a header-block sequence,
// completing it immediately when endHeaders is already set, or latching
// continuation state to await CONTINUATION frames otherwise. When discard
// is true the eventual decode result is dropped (NOP_HEADERS latch).
func (c *Connection) beginHeaderBlock(streamID, promisedID uint32, isRequest, isTrailers, discard, endStream, endHeaders bool, block []byte) error {
	c.cont = continuation{
		active:     true,
		streamID:   streamID,
		promisedID: promisedID,
		endStream:  endStream,
		isRequest:  isRequest,
		isTrailers: isTrailers,
		discard:    discard,
		buf:        buffer.NewWithData(block),
	}
	if !endHeaders {
		return nil
	}
	return c.finishHeaderBlock()
}

// finishHeaderBlock runs once a header-block sequence's END_HEADERS frame
// has arrived: HPACK-decodes the full concatenation (always, to keep the
// shared compression context synchronized even when discard is set), then
// validates and delivers it unless discarded.
func (c *Connection) finishHeaderBlock() error {
	cont := c.cont
	c.cont = continuation{}

	block := append([]byte(nil), cont.buf.AsView()...)
	fields, err := c.decoder.Decode(block)
	if err != nil {
		return c.goAway(http2.ErrCodeCompression, "hpack.decode", err.Error())
	}

	if cont.discard {
		if s := c.streams.Find(cont.streamID); s != nil {
			side := streamSideOf(c, s.ID)
			return c.destroyStream(s, side, true)
		}
		return nil
	}

	if len(fields) > constants.MaxHeaders {
		return c.goAway(http2.ErrCodeEnhanceYourCalm, "hpack.decode", "too many header fields")
	}

	if cont.isTrailers {
		regular, err := validate.Trailers(fields)
		if err != nil {
			return c.goAwayFrom(err)
		}
		msg := &Message{Headers: regular}
		if err := c.obs.OnMessageTrail(cont.streamID, msg); err != nil {
			return err
		}
		return c.endInboundIfNeeded(cont)
	}

	result, verr := validate.Headers(fields, cont.isRequest)
	if verr != nil {
		return c.goAwayFrom(verr)
	}
	msg := &Message{
		IsRequest: cont.isRequest,
		Method:    result.Pseudo.Method,
		Path:      result.Pseudo.Path,
		Scheme:    result.Pseudo.Scheme,
		Authority: result.Pseudo.Authority,
		Headers:   result.Fields,
	}
	if !cont.isRequest {
		msg.StatusCode = result.Pseudo.Status
	}

	if cont.promisedID != 0 {
		if err := c.obs.OnMessagePush(cont.streamID, msg, cont.promisedID); err != nil {
			return err
		}
		return nil
	}
	if err := c.obs.OnMessageStart(cont.streamID, msg); err != nil {
		return err
	}
	return c.endInboundIfNeeded(cont)
}

// endInboundIfNeeded handles END_STREAM carried on the initial HEADERS or
// on a trailers block: clears this direction's inbound acceptance, fires
// OnMessageEnd, and frees the stream once nothing keeps it alive.
func (c *Connection) endInboundIfNeeded(cont continuation) error {
	if !cont.endStream {
		return nil
	}
	s := c.streams.Find(cont.streamID)
	if s == nil {
		return nil
	}
	s.Accept &^= stream.Headers | stream.Data | stream.Trailers
	if err := c.obs.OnMessageEnd(cont.streamID); err != nil {
		return err
	}
	if !s.Live() {
		return c.destroyStream(s, streamSideOf(c, s.ID), false)
	}
	return nil
}
