package engine

import (
	"bytes"

	"golang.org/x/net/http2"

	"github.com/mardukas/h2engine/pkg/constants"
	"github.com/mardukas/h2engine/pkg/frame"
)

// stepInit performs the one-time connection-open actions for HTTP/2: a
// client writes its 24-byte preface before anything else, then both roles
// emit their initial SETTINGS frame. INIT always makes
// progress in one pass, so drive() treats any non-nil return as fatal.
func (c *Connection) stepInit() error {
	if c.role == Client {
		if err := c.writeRaw([]byte(constants.ClientPreface)); err != nil {
			return err
		}
	}
	if err := c.emitFrames(frame.WriteSettings(nil, c.local.entries(), false)); err != nil {
		return err
	}
	if c.role == Client {
		c.state = stateReadyNoSettings
	} else {
		c.state = statePreface
	}
	return nil
}

// stepPreface is the server-only wait for the client's 24-byte preface.
func (c *Connection) stepPreface() (bool, error) {
	view := c.in.AsView()
	want := len(constants.ClientPreface)
	if len(view) < want {
		return false, nil
	}
	if !bytes.Equal(view[:want], []byte(constants.ClientPreface)) {
		return false, c.goAway(http2.ErrCodeProtocol, "preface", "invalid client preface")
	}
	c.in.Shift(want)
	c.state = stateReadyNoSettings
	return true, nil
}

// stepReadyNoSettings is the wait for the peer's mandatory first frame,
// which RFC 7540 §3.5 requires to be SETTINGS.
func (c *Connection) stepReadyNoSettings() (bool, error) {
	hdr, payload, n, ok, err := frame.TryExtract(c.in.AsView())
	if err != nil {
		return false, c.goAway(http2.ErrCodeProtocol, "ready_no_settings", err.Error())
	}
	if !ok {
		return false, nil
	}
	if hdr.Type != http2.FrameSettings {
		return false, c.goAway(http2.ErrCodeProtocol, "ready_no_settings", "first frame from peer must be SETTINGS")
	}
	payload = append([]byte(nil), payload...)
	c.in.Shift(n)
	c.recordInboundFrame(hdr)
	if err := c.obs.OnFrame(frameInfoOf(hdr)); err != nil {
		return false, err
	}
	c.state = stateReady
	if err := c.handleSettings(hdr, payload); err != nil {
		return false, err
	}
	return true, nil
}

// stepReady is the steady-state one-frame-at-a-time dispatch loop.
func (c *Connection) stepReady() (bool, error) {
	hdr, payload, n, ok, err := frame.TryExtract(c.in.AsView())
	if err != nil {
		return false, c.goAway(http2.ErrCodeProtocol, "ready", err.Error())
	}
	if !ok {
		return false, nil
	}
	if hdr.Length > c.local.MaxFrameSize {
		return false, c.goAway(http2.ErrCodeFrameSize, "ready", "frame exceeds advertised max_frame_size")
	}
	if c.cont.active {
		if hdr.Type != http2.FrameContinuation || hdr.StreamID != c.cont.streamID {
			return false, c.goAway(http2.ErrCodeProtocol, "ready", "expected CONTINUATION for the in-progress header block")
		}
	}
	payload = append([]byte(nil), payload...)
	c.in.Shift(n)
	c.recordInboundFrame(hdr)
	if err := c.obs.OnFrame(frameInfoOf(hdr)); err != nil {
		return false, err
	}
	if err := c.dispatchFrame(hdr, payload); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Connection) recordInboundFrame(hdr frame.Header) {
	c.framesIn++
	c.metrics.FrameReceived(uint8(hdr.Type))
}

func frameInfoOf(hdr frame.Header) FrameInfo {
	return FrameInfo{Type: hdr.Type, Flags: hdr.Flags, StreamID: hdr.StreamID, Length: hdr.Length}
}
