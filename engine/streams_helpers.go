package engine

import (
	"golang.org/x/net/http2"

	"github.com/mardukas/h2engine/pkg/errors"
	"github.com/mardukas/h2engine/pkg/frame"
	"github.com/mardukas/h2engine/pkg/stream"
)

// nextStreamID computes the next id this connection would allocate on the
// given side: odd for the side that plays the client role, even for the
// side that plays the server role, starting at 1/2 and incrementing by 2
// thereafter. Returns Assertion once the id
// space would be exhausted, rather than
// wrapping silently.
func (c *Connection) nextStreamID(side stream.Side) (uint32, error) {
	wantOdd := (c.role == Client) == (side == stream.Local)
	last := c.streams.LastStreamID(side)
	var next uint32
	if last == 0 {
		if wantOdd {
			next = 1
		} else {
			next = 2
		}
	} else {
		next = last + 2
	}
	if next > 0x7FFFFFFF {
		return 0, errors.NewAssertion("stream.next_id", "stream id space exhausted")
	}
	return next, nil
}

// createStream allocates and inserts a new stream on side, firing
// OnStreamStart. The initial window sizes come from the settings each side
// currently advertises (local.InitialWindowSize bounds what the peer may
// send us; remote.InitialWindowSize bounds what we may send them).
func (c *Connection) createStream(id uint32, side stream.Side, accept stream.Flags) (*stream.Stream, error) {
	maxConcurrent := c.remote.MaxConcurrentStreams
	if side == stream.Remote {
		maxConcurrent = c.local.MaxConcurrentStreams
	}
	sendWindow := int32(c.remote.InitialWindowSize)
	recvWindow := int32(c.local.InitialWindowSize)
	s, err := c.streams.NewStream(id, side, accept, sendWindow, recvWindow, maxConcurrent)
	if err != nil {
		return nil, err
	}
	if err := c.obs.OnStreamStart(id); err != nil {
		return nil, err
	}
	return s, nil
}

// destroyStream frees s from the table and fires OnStreamEnd. Callers that
// locally reset the stream should pass markReset=true so a later frame
// racing the RST_STREAM doesn't spuriously fail the connection.
func (c *Connection) destroyStream(s *stream.Stream, side stream.Side, markReset bool) error {
	c.streams.Free(s.ID, side)
	if markReset {
		c.streams.MarkReset(s.ID)
	}
	return c.obs.OnStreamEnd(s.ID)
}

// localReset emits RST_STREAM for s (or, if the stream is the active
// CONTINUATION target and END_HEADERS hasn't arrived yet, latches
// NOP_HEADERS instead of destroying it outright so the HPACK decoder stays
// synchronized through the peer's eventual HEADERS bytes).
func (c *Connection) localReset(s *stream.Stream, side stream.Side, code http2.ErrCode) error {
	if err := c.emitFrames(frame.WriteRstStream(nil, s.ID, code)); err != nil {
		return err
	}
	if c.cont.active && c.cont.streamID == s.ID {
		s.Accept = stream.NopHeaders
		c.cont.discard = true
		return nil
	}
	return c.destroyStream(s, side, true)
}
