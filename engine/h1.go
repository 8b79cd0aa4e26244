package engine

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/mardukas/h2engine/pkg/constants"
	"github.com/mardukas/h2engine/pkg/errors"
	"github.com/mardukas/h2engine/pkg/frame"
	"github.com/mardukas/h2engine/pkg/h1"
	"github.com/mardukas/h2engine/pkg/hpack"
	"github.com/mardukas/h2engine/pkg/validate"
)

// http1StreamID is the fixed stream id HTTP/1.x messages are delivered
// under: there is no wire concept of concurrent streams in HTTP/1.x, so
// every message on a connection reuses the same id.
const http1StreamID = 1

// stepH1Ready consumes leading CRLFs, recognizes a prior-knowledge HTTP/2
// client preface, and otherwise waits for a complete HTTP/1.x message head
// (up through the blank line terminating the header block) to hand to
// h1.ParseRequest/ParseResponse.
func (c *Connection) stepH1Ready() (bool, error) {
	view := c.in.AsView()
	skip := 0
	for skip < len(view) && (view[skip] == '\r' || view[skip] == '\n') {
		skip++
	}
	if skip > 0 {
		c.in.Shift(skip)
		return true, nil
	}

	if c.role == Server && !c.forbidPriorKnowledgeH2 {
		want := len(constants.ClientPreface)
		if len(view) >= want {
			if bytes.Equal(view[:want], []byte(constants.ClientPreface)) {
				c.state = stateInit
				return true, nil
			}
		} else if bytes.Equal(view, []byte(constants.ClientPreface)[:len(view)]) {
			return false, nil
		}
	}

	idx := bytes.Index(view, []byte("\r\n\r\n"))
	if idx < 0 {
		if len(view) > constants.MaxHTTP1HeaderSize {
			return false, errors.NewDisconnect("h1.parse", "HTTP/1.x header block exceeds the configured limit")
		}
		return false, nil
	}
	if idx+4 > constants.MaxHTTP1HeaderSize {
		return false, errors.NewDisconnect("h1.parse", "HTTP/1.x header block exceeds the configured limit")
	}

	head := append([]byte(nil), view[:idx+4]...)
	var msg h1.Message
	var err error
	if c.role == Server {
		msg, err = h1.ParseRequest(head)
	} else {
		msg, err = h1.ParseResponse(head)
	}
	if err != nil {
		return false, errors.NewDisconnect("h1.parse", err.Error())
	}
	c.in.Shift(idx + 4)
	return true, c.onH1MessageHead(msg)
}

// onH1MessageHead bridges a parsed HTTP/1.x message head into the engine's
// Message shape and callback surface, resolves body framing, and handles
// the h2c upgrade and generic-upgrade cases.
func (c *Connection) onH1MessageHead(msg h1.Message) error {
	authority := h1.HeaderValue(msg.Headers, "host")
	filtered := make([]hpack.HeaderField, 0, len(msg.Headers))
	for _, f := range msg.Headers {
		if f.Name == "host" {
			continue
		}
		if validate.IsConnectionSpecific(f.Name) && f.Name != "te" {
			continue
		}
		filtered = append(filtered, f)
	}

	c.http1Remaining = 0
	if te := h1.HeaderValue(msg.Headers, "transfer-encoding"); te != "" && !strings.EqualFold(te, "identity") {
		c.http1Remaining = 0xFFFFFFFF
	} else if cl := h1.HeaderValue(msg.Headers, "content-length"); cl != "" {
		n, err := strconv.ParseUint(cl, 10, 32)
		if err != nil {
			return errors.NewDisconnect("h1.parse", "non-numeric content-length")
		}
		c.http1Remaining = uint32(n)
	}

	out := &Message{
		IsRequest:  msg.IsRequest,
		Method:     msg.Method,
		Path:       msg.Path,
		Authority:  authority,
		StatusCode: msg.StatusCode,
		Headers:    filtered,
	}
	if c.role == Server {
		out.Scheme = "unknown"
	}

	c.http1Stream = http1StreamID
	if err := c.obs.OnStreamStart(http1StreamID); err != nil {
		return err
	}
	if err := c.obs.OnMessageStart(http1StreamID, out); err != nil {
		return err
	}

	upgrade := h1.HeaderValue(msg.Headers, "upgrade")
	if msg.IsRequest && strings.EqualFold(upgrade, "h2c") && c.role == Server && !c.forbidH2Upgrade {
		if err := c.writeRaw([]byte("HTTP/1.1 101 Switching Protocols\r\nConnection: Upgrade\r\nUpgrade: h2c\r\n\r\n")); err != nil {
			return err
		}
		if err := c.writeRaw([]byte(constants.ClientPreface)); err != nil {
			return err
		}
		if err := c.emitFrames(frame.WriteSettings(nil, c.local.entries(), false)); err != nil {
			return err
		}
		c.state = stateH1ReadingUpgrade
		return nil
	}
	if msg.IsRequest && upgrade != "" {
		if err := c.obs.OnUpgrade(); err != nil {
			return err
		}
		c.state = stateUnknownProtocolUpgrade
		return nil
	}

	c.state = stateH1Reading
	return nil
}

// stepH1Reading streams an in-progress HTTP/1.x body out as on_message_data
// calls (content-length or chunked framing), finalizing the message once
// http1Remaining reaches zero.
func (c *Connection) stepH1Reading() (bool, error) {
	if c.http1Remaining == 0 {
		if err := c.obs.OnMessageEnd(c.http1Stream); err != nil {
			return false, err
		}
		if err := c.obs.OnStreamEnd(c.http1Stream); err != nil {
			return false, err
		}
		if c.state == stateH1ReadingUpgrade {
			c.state = statePreface
		} else {
			c.state = stateH1Ready
		}
		return true, nil
	}

	if c.http1Remaining == 0xFFFFFFFF {
		return c.stepH1Chunk()
	}

	view := c.in.AsView()
	take := len(view)
	if uint32(take) > c.http1Remaining {
		take = int(c.http1Remaining)
	}
	if take == 0 {
		return false, nil
	}
	chunk := append([]byte(nil), view[:take]...)
	c.in.Shift(take)
	c.http1Remaining -= uint32(take)
	if err := c.obs.OnMessageData(c.http1Stream, chunk); err != nil {
		return false, err
	}
	return true, nil
}

// stepH1Chunk parses one chunked-transfer-encoding chunk: a hex length
// line, CRLF, that many data bytes, then a trailing CRLF (RFC 7230 §4.1).
func (c *Connection) stepH1Chunk() (bool, error) {
	view := c.in.AsView()
	crlf := bytes.Index(view, []byte("\r\n"))
	if crlf < 0 {
		if len(view) > 64 {
			return false, errors.NewDisconnect("h1.chunk", "chunk size line too long")
		}
		return false, nil
	}
	sizeLine := view[:crlf]
	if semi := bytes.IndexByte(sizeLine, ';'); semi >= 0 {
		sizeLine = sizeLine[:semi]
	}
	n, err := strconv.ParseUint(strings.TrimSpace(string(sizeLine)), 16, 32)
	if err != nil {
		return false, errors.NewDisconnect("h1.chunk", "malformed chunk size")
	}
	need := crlf + 2 + int(n) + 2
	if len(view) < need {
		return false, nil
	}
	data := view[crlf+2 : crlf+2+int(n)]
	if n == 0 {
		c.in.Shift(need)
		c.http1Remaining = 0
		return true, nil
	}
	chunk := append([]byte(nil), data...)
	c.in.Shift(need)
	if err := c.obs.OnMessageData(c.http1Stream, chunk); err != nil {
		return false, err
	}
	return true, nil
}
