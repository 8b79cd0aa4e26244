package engine

import (
	"golang.org/x/net/http2"

	"github.com/mardukas/h2engine/pkg/errors"
	"github.com/mardukas/h2engine/pkg/frame"
	"github.com/mardukas/h2engine/pkg/stream"
)

// dispatchFrame routes one already-extracted frame to its handler. Unknown
// frame types are ignored per RFC 7540 §4.1 (extension-frame tolerance).
func (c *Connection) dispatchFrame(hdr frame.Header, payload []byte) error {
	switch hdr.Type {
	case http2.FrameData:
		return c.handleData(hdr, payload)
	case http2.FrameHeaders:
		return c.handleHeaders(hdr, payload)
	case http2.FramePriority:
		return c.handlePriority(hdr, payload)
	case http2.FrameRSTStream:
		return c.handleRstStream(hdr, payload)
	case http2.FrameSettings:
		return c.handleSettings(hdr, payload)
	case http2.FramePushPromise:
		return c.handlePushPromise(hdr, payload)
	case http2.FramePing:
		return c.handlePing(hdr, payload)
	case http2.FrameGoAway:
		return c.handleGoAway(hdr, payload)
	case http2.FrameWindowUpdate:
		return c.handleWindowUpdate(hdr, payload)
	case http2.FrameContinuation:
		return c.handleContinuation(hdr, payload)
	default:
		return nil
	}
}

// handleSettings applies (or acknowledges) an inbound SETTINGS frame.
func (c *Connection) handleSettings(hdr frame.Header, payload []byte) error {
	if hdr.Flags&http2.FlagSettingsAck != 0 {
		if len(payload) != 0 {
			return c.goAway(http2.ErrCodeFrameSize, "settings", "SETTINGS ACK must carry no payload")
		}
		return nil
	}
	entries, err := frame.DecodeSettings(payload)
	if err != nil {
		return c.goAwayFrom(err)
	}
	prev := c.remote
	next := c.remote
	for _, e := range entries {
		next.applyEntry(e)
	}
	if err := next.Validate(); err != nil {
		return c.goAway(http2.ErrCodeProtocol, "settings", err.Error())
	}
	c.remote = next
	if next.HeaderTableSize != prev.HeaderTableSize {
		c.encoder.SetMaxDynamicTableSize(next.HeaderTableSize)
	}
	if next.InitialWindowSize != prev.InitialWindowSize {
		delta := int32(next.InitialWindowSize) - int32(prev.InitialWindowSize)
		c.streams.AdjustSendWindows(delta)
	}
	if err := c.emitFrames(frame.WriteSettings(nil, nil, true)); err != nil {
		return err
	}
	return c.obs.OnSettings()
}

// handlePing answers a non-ACK PING with an ACK carrying the same opaque
// data, and surfaces an ACK'd PING as OnPong.
func (c *Connection) handlePing(hdr frame.Header, payload []byte) error {
	data, err := frame.DecodePing(payload)
	if err != nil {
		return c.goAwayFrom(err)
	}
	if hdr.Flags&http2.FlagPingAck != 0 {
		return c.obs.OnPong(data)
	}
	return c.emitFrames(frame.WritePing(nil, data, true))
}

// handleGoAway treats a peer-initiated GOAWAY as terminal: no further
// drive activity is meaningful once the peer has announced it is closing
// the connection. A nonzero error code surfaces as a Transport error,
// NO_ERROR as Disconnect.
func (c *Connection) handleGoAway(_ frame.Header, payload []byte) error {
	_, code, err := frame.DecodeGoAway(payload)
	if err != nil {
		return c.goAwayFrom(err)
	}
	if code != http2.ErrCodeNo {
		return errors.NewTransport("goaway", uint32(code), "peer sent GOAWAY code "+errcodeString(code))
	}
	return errors.NewDisconnect("goaway", "peer sent GOAWAY code "+errcodeString(code))
}

// handleRstStream tears down (or NOP_HEADERS-latches) a stream the peer is
// resetting.
func (c *Connection) handleRstStream(hdr frame.Header, payload []byte) error {
	if _, err := frame.DecodeRstStream(payload); err != nil {
		return c.goAwayFrom(err)
	}
	s := c.streams.Find(hdr.StreamID)
	if s == nil {
		if c.streams.RecentlyReset(hdr.StreamID) {
			return nil
		}
		return c.goAway(http2.ErrCodeProtocol, "rst_stream", "RST_STREAM for unknown stream")
	}
	if c.cont.active && c.cont.streamID == s.ID {
		s.Accept = stream.NopHeaders
		c.cont.discard = true
		return nil
	}
	side := stream.Remote
	if s.ID%2 == 1 == (c.role == Client) {
		side = stream.Local
	}
	return c.destroyStream(s, side, true)
}

// handlePriority validates and discards a PRIORITY frame: this engine does
// not model the priority tree.
func (c *Connection) handlePriority(_ frame.Header, payload []byte) error {
	_, _, _, err := frame.DecodePriority(payload)
	if err != nil {
		return c.goAwayFrom(err)
	}
	return nil
}

// handleWindowUpdate applies a connection- or stream-level flow-control
// credit increase.
func (c *Connection) handleWindowUpdate(hdr frame.Header, payload []byte) error {
	inc, err := frame.DecodeWindowUpdate(payload)
	if err != nil {
		return c.goAwayFrom(err)
	}
	if hdr.StreamID == 0 {
		if int64(c.connSendWindow)+int64(inc) > 0x7fffffff {
			return c.goAway(http2.ErrCodeFlowControl, "window_update", "connection send window overflow")
		}
		c.connSendWindow += int32(inc)
		return c.obs.OnFlowIncrease(0)
	}
	s := c.streams.Find(hdr.StreamID)
	if s == nil {
		if c.streams.RecentlyReset(hdr.StreamID) {
			return nil
		}
		// A stream that existed and has since closed can still receive a
		// WINDOW_UPDATE the peer sent before it saw the close; ignore it.
		if hdr.StreamID <= c.streams.LastStreamID(streamSideOf(c, hdr.StreamID)) {
			return nil
		}
		return c.goAway(http2.ErrCodeProtocol, "window_update", "WINDOW_UPDATE for unknown stream")
	}
	if int64(s.SendWindow)+int64(inc) > 0x7fffffff {
		return c.localReset(s, streamSideOf(c, s.ID), http2.ErrCodeFlowControl)
	}
	s.SendWindow += int32(inc)
	return c.obs.OnFlowIncrease(hdr.StreamID)
}

// handleData delivers inbound DATA bytes to the stream's message, applying
// flow-control accounting and automatically replenishing the connection
// window it consumed (and, unless manual flow control is requested, the
// stream window too).
func (c *Connection) handleData(hdr frame.Header, payload []byte) error {
	block, err := frame.StripPadding(payload, hdr.Flags&http2.FlagDataPadded != 0)
	if err != nil {
		return c.goAwayFrom(err)
	}
	consumed := int32(len(payload))
	if int64(c.connRecvWindow)-int64(consumed) < 0 {
		return c.goAway(http2.ErrCodeFlowControl, "data", "connection receive window exceeded")
	}
	c.connRecvWindow -= consumed

	s := c.streams.Find(hdr.StreamID)
	if s == nil {
		if c.streams.RecentlyReset(hdr.StreamID) {
			return nil
		}
		return c.goAway(http2.ErrCodeProtocol, "data", "DATA for unknown stream")
	}
	side := streamSideOf(c, s.ID)
	if s.Accept&stream.Data == 0 {
		return c.localReset(s, side, http2.ErrCodeStreamClosed)
	}
	if int64(s.RecvWindow)-int64(consumed) < 0 {
		return c.localReset(s, side, http2.ErrCodeFlowControl)
	}
	s.RecvWindow -= consumed

	if len(block) > 0 {
		if err := c.obs.OnMessageData(hdr.StreamID, block); err != nil {
			return err
		}
	}

	if consumed > 0 {
		if err := c.emitFrames(frame.WriteWindowUpdate(nil, 0, uint32(consumed))); err != nil {
			return err
		}
		c.connRecvWindow += consumed
	}
	if !c.manualFlowControl && consumed > 0 {
		if err := c.emitFrames(frame.WriteWindowUpdate(nil, hdr.StreamID, uint32(consumed))); err != nil {
			return err
		}
		s.RecvWindow += consumed
	}

	if hdr.Flags&http2.FlagDataEndStream != 0 {
		s.Accept &^= stream.Headers | stream.Data | stream.Trailers
		if err := c.obs.OnMessageEnd(hdr.StreamID); err != nil {
			return err
		}
		if !s.Live() {
			return c.destroyStream(s, side, false)
		}
	}
	return nil
}

// streamSideOf reports which side originated stream id on connection c.
func streamSideOf(c *Connection, id uint32) stream.Side {
	wantOdd := c.role == Client
	if (id%2 == 1) == wantOdd {
		return stream.Local
	}
	return stream.Remote
}

func (c *Connection) goAwayFrom(err error) error {
	if e, ok := err.(*errors.Error); ok && e.Kind == errors.Transport {
		return c.goAway(http2.ErrCode(e.Code), "frame", e.Message)
	}
	return c.goAway(http2.ErrCodeProtocol, "frame", err.Error())
}

func errcodeString(code http2.ErrCode) string {
	return code.String()
}
