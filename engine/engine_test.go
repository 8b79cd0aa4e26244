package engine

import (
	"bytes"
	"testing"

	"golang.org/x/net/http2"

	"github.com/mardukas/h2engine/pkg/frame"
	"github.com/mardukas/h2engine/pkg/hpack"
	"github.com/mardukas/h2engine/pkg/stream"
)

// recording is an Observer that appends every callback invocation to a log
// and queues OnWrite's bytes rather than handing them to a peer inline: a
// real transport would deliver them on its own schedule, and a pair of
// Connections in the same goroutine must not re-enter each other's drive
// loop mid-call, so tests move bytes between queues themselves via pump.
type recording struct {
	NopObserver

	out bytes.Buffer

	starts []uint32
	ends   []uint32
	msgs   []*Message
	datas  [][]byte
	trails []*Message
	pushes []*Message

	settled int
}

func (r *recording) OnWrite(b []byte) error {
	r.out.Write(b)
	return nil
}

func (r *recording) OnStreamStart(id uint32) error { r.starts = append(r.starts, id); return nil }
func (r *recording) OnStreamEnd(id uint32) error   { r.ends = append(r.ends, id); return nil }

func (r *recording) OnMessageStart(id uint32, msg *Message) error {
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recording) OnMessageData(id uint32, b []byte) error {
	r.datas = append(r.datas, append([]byte(nil), b...))
	return nil
}

func (r *recording) OnMessageTrail(id uint32, msg *Message) error {
	r.trails = append(r.trails, msg)
	return nil
}

func (r *recording) OnMessagePush(parent uint32, msg *Message, child uint32) error {
	r.pushes = append(r.pushes, msg)
	return nil
}

func (r *recording) OnSettings() error { r.settled++; return nil }

// pump drains whatever each side has queued into the other's data_received,
// alternating until both queues run dry — the two engines "talking" to each
// other without ever nesting one drive() call inside another.
func pump(t *testing.T, a *Connection, aObs *recording, b *Connection, bObs *recording) {
	t.Helper()
	for i := 0; i < 64; i++ {
		progressed := false
		if aObs.out.Len() > 0 {
			buf := aObs.out.Bytes()
			aObs.out.Reset()
			if err := b.DataReceived(buf); err != nil {
				t.Fatalf("data_received: %v", err)
			}
			progressed = true
		}
		if bObs.out.Len() > 0 {
			buf := bObs.out.Bytes()
			bObs.out.Reset()
			if err := a.DataReceived(buf); err != nil {
				t.Fatalf("data_received: %v", err)
			}
			progressed = true
		}
		if !progressed {
			return
		}
	}
	t.Fatalf("pump did not settle after 64 rounds")
}

// pair constructs a client/server Connection pair, drives both through
// Made, and pumps the resulting preface/SETTINGS exchange to completion.
func pair(t *testing.T) (client *Connection, cObs *recording, server *Connection, sObs *recording) {
	t.Helper()
	cObs = &recording{}
	sObs = &recording{}
	client = New(Client, cObs)
	server = New(Server, sObs)

	if err := client.Made(HTTP2_0); err != nil {
		t.Fatalf("client Made: %v", err)
	}
	if err := server.Made(HTTP2_0); err != nil {
		t.Fatalf("server Made: %v", err)
	}
	pump(t, client, cObs, server, sObs)
	return client, cObs, server, sObs
}

func TestHTTP2HandshakeExchangesSettings(t *testing.T) {
	_, cObs, _, sObs := pair(t)
	if cObs.settled != 1 {
		t.Fatalf("client observed %d OnSettings calls, want 1", cObs.settled)
	}
	if sObs.settled != 1 {
		t.Fatalf("server observed %d OnSettings calls, want 1", sObs.settled)
	}
}

func TestHTTP2EchoRoundTrip(t *testing.T) {
	client, cObs, server, sObs := pair(t)

	req := &Message{
		IsRequest: true,
		Method:    "GET",
		Path:      "/hello",
		Scheme:    "https",
		Authority: "example.com",
		Headers:   []hpack.HeaderField{{Name: "x-request", Value: "1"}},
	}
	streamID, err := client.WriteMessage(0, req, false)
	if err != nil {
		t.Fatalf("write_message: %v", err)
	}
	if streamID != 1 {
		t.Fatalf("first client-initiated stream id = %d, want 1", streamID)
	}
	if _, err := client.WriteData(streamID, []byte("ping"), true); err != nil {
		t.Fatalf("write_data: %v", err)
	}
	pump(t, client, cObs, server, sObs)

	if len(sObs.msgs) != 1 {
		t.Fatalf("server saw %d message starts, want 1", len(sObs.msgs))
	}
	got := sObs.msgs[0]
	if got.Method != "GET" || got.Path != "/hello" || got.Authority != "example.com" {
		t.Fatalf("server decoded request mismatch: %+v", got)
	}
	if len(sObs.datas) != 1 || string(sObs.datas[0]) != "ping" {
		t.Fatalf("server saw body %q, want \"ping\"", sObs.datas)
	}

	resp := &Message{StatusCode: 200, Headers: []hpack.HeaderField{{Name: "content-type", Value: "text/plain"}}}
	if _, err := server.WriteMessage(streamID, resp, false); err != nil {
		t.Fatalf("server write_message: %v", err)
	}
	if _, err := server.WriteData(streamID, []byte("pong"), true); err != nil {
		t.Fatalf("server write_data: %v", err)
	}
	pump(t, client, cObs, server, sObs)

	if len(cObs.msgs) != 1 || cObs.msgs[0].StatusCode != 200 {
		t.Fatalf("client saw response %+v", cObs.msgs)
	}
	if len(cObs.datas) != 1 || string(cObs.datas[0]) != "pong" {
		t.Fatalf("client saw body %q, want \"pong\"", cObs.datas)
	}

	if client.streams.ActiveCount(stream.Local) != 0 {
		t.Fatalf("client stream not freed after both sides ended, active=%d", client.streams.ActiveCount(stream.Local))
	}
	if server.streams.ActiveCount(stream.Remote) != 0 {
		t.Fatalf("server stream not freed after both sides ended, active=%d", server.streams.ActiveCount(stream.Remote))
	}
}

func TestHTTP2TrailersDeliveredAfterBody(t *testing.T) {
	client, cObs, server, sObs := pair(t)

	req := &Message{IsRequest: true, Method: "POST", Path: "/up", Scheme: "https", Authority: "x"}
	id, err := client.WriteMessage(0, req, false)
	if err != nil {
		t.Fatalf("write_message: %v", err)
	}
	if _, err := client.WriteData(id, []byte("body"), false); err != nil {
		t.Fatalf("write_data: %v", err)
	}
	pump(t, client, cObs, server, sObs)
	if len(sObs.datas) != 1 || string(sObs.datas[0]) != "body" {
		t.Fatalf("server saw body %q", sObs.datas)
	}

	// The engine's write surface has no dedicated trailer call; a second
	// HEADERS block on the same stream is how the wire distinguishes
	// trailers from an initial request/response, so exercise that path directly at the frame layer.
	trailerFields := []hpack.HeaderField{{Name: "x-checksum", Value: "deadbeef"}}
	block := client.encoder.Encode(nil, trailerFields)
	dst := frame.WriteSplitHeaderBlock(nil, http2.FrameHeaders, id, block, true, client.remote.MaxFrameSize)
	if err := client.emitFrames(dst); err != nil {
		t.Fatalf("emitting trailer HEADERS: %v", err)
	}
	pump(t, client, cObs, server, sObs)

	if len(sObs.trails) != 1 || sObs.trails[0].Headers[0].Value != "deadbeef" {
		t.Fatalf("server trailers = %+v", sObs.trails)
	}
	// The client's half is done, but the stream stays alive until the
	// server answers too.
	if server.streams.Find(id) == nil {
		t.Fatalf("stream freed before the server sent its own response")
	}

	resp := &Message{StatusCode: 200}
	if _, err := server.WriteMessage(id, resp, false); err != nil {
		t.Fatalf("server write_message: %v", err)
	}
	if _, err := server.WriteData(id, nil, true); err != nil {
		t.Fatalf("server write_data: %v", err)
	}
	if server.streams.Find(id) != nil {
		t.Fatalf("stream should be freed once both halves have ended")
	}
}

func TestWriteDataClampedByStreamWindow(t *testing.T) {
	client, cObs, server, sObs := pair(t)

	small := Settings{
		HeaderTableSize:      4096,
		EnablePush:           1,
		MaxConcurrentStreams: 100,
		InitialWindowSize:    8,
		MaxFrameSize:         16384,
		MaxHeaderListSize:    Unlimited,
	}
	if err := server.SetConfig(small); err != nil {
		t.Fatalf("server set_config: %v", err)
	}
	pump(t, client, cObs, server, sObs)

	req := &Message{IsRequest: true, Method: "GET", Path: "/", Scheme: "https", Authority: "x"}
	id, err := client.WriteMessage(0, req, false)
	if err != nil {
		t.Fatalf("write_message: %v", err)
	}

	payload := bytes.Repeat([]byte{'a'}, 32)
	n, err := client.WriteData(id, payload, true)
	if err != nil {
		t.Fatalf("write_data: %v", err)
	}
	if n != 8 {
		t.Fatalf("write_data clamped to %d bytes, want 8 (the advertised stream window)", n)
	}
	pump(t, client, cObs, server, sObs)

	if len(sObs.datas) != 1 || len(sObs.datas[0]) != 8 {
		t.Fatalf("server received %v, want one 8-byte chunk", sObs.datas)
	}
}

func TestLocalResetDuringContinuationLatchesNopHeaders(t *testing.T) {
	client, cObs, server, sObs := pair(t)

	req := &Message{IsRequest: true, Method: "GET", Path: "/split", Scheme: "https", Authority: "x",
		Headers: []hpack.HeaderField{{Name: "x-big", Value: string(bytes.Repeat([]byte{'z'}, 40))}}}
	id, err := client.WriteMessage(0, req, false)
	if err != nil {
		t.Fatalf("write_message: %v", err)
	}
	// Discard the real HEADERS frame write_message just queued: this test
	// fabricates its own split HEADERS/CONTINUATION pair directly instead.
	cObs.out.Reset()

	// Use a throwaway encoder matching the server decoder's pristine HPACK
	// state, rather than the client's real encoder (already mutated by the
	// write_message call above) or the server's own (sender-side) encoder.
	fresh := hpack.NewEncoder(server.local.HeaderTableSize)
	fields := append(pseudoFields(req), req.Headers...)
	block := fresh.Encode(nil, fields)
	if len(block) < 10 {
		t.Skip("encoded block too small to split for this test")
	}
	split := len(block) / 2

	headersFrame := frame.WriteFrame(nil, http2.FrameHeaders, 0, id, block[:split])
	contFrame := frame.WriteFrame(nil, http2.FrameContinuation, http2.FlagContinuationEndHeaders, id, block[split:])

	// Deliver only the opening HEADERS frame, racing the server resetting
	// the stream before the CONTINUATION arrives — the NOP_HEADERS case.
	if err := server.DataReceived(headersFrame); err != nil {
		t.Fatalf("server data_received (partial HEADERS): %v", err)
	}
	if err := server.WriteReset(id, http2.ErrCodeCancel); err != nil {
		t.Fatalf("server write_reset: %v", err)
	}
	sObs.out.Reset() // drop the RST_STREAM the server just queued for the client
	if err := server.DataReceived(contFrame); err != nil {
		t.Fatalf("server data_received (CONTINUATION): %v", err)
	}

	if len(sObs.msgs) != 0 {
		t.Fatalf("NOP_HEADERS stream should not fire OnMessageStart, got %d", len(sObs.msgs))
	}
	if server.streams.Find(id) != nil {
		t.Fatalf("stream %d should have been freed once its CONTINUATION sequence resolved", id)
	}
}

func TestHTTP1UpgradeToH2c(t *testing.T) {
	sObs := &recording{}
	server := New(Server, sObs)
	if err := server.Made(HTTP1_1); err != nil {
		t.Fatalf("server Made: %v", err)
	}

	req := "GET / HTTP/1.1\r\nHost: example.com\r\nConnection: Upgrade\r\nUpgrade: h2c\r\n\r\n"
	if err := server.DataReceived([]byte(req)); err != nil {
		t.Fatalf("data_received: %v", err)
	}

	out := sObs.out.Bytes()
	const want101 = "HTTP/1.1 101 Switching Protocols\r\nConnection: Upgrade\r\nUpgrade: h2c\r\n\r\n"
	if !bytes.HasPrefix(out, []byte(want101)) {
		t.Fatalf("expected 101 response first, got %q", out[:min(len(out), 80)])
	}
	out = out[len(want101):]

	const preface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"
	if !bytes.HasPrefix(out, []byte(preface)) {
		t.Fatalf("expected client preface after 101, got %q", out[:min(len(out), 30)])
	}
	out = out[len(preface):]

	hdr, payload, _, ok, err := frame.TryExtract(out)
	if err != nil || !ok {
		t.Fatalf("expected a SETTINGS frame after the preface, ok=%v err=%v", ok, err)
	}
	if hdr.Type != http2.FrameSettings || hdr.Flags&http2.FlagSettingsAck != 0 {
		t.Fatalf("expected a non-ACK SETTINGS frame, got type=%v flags=%v", hdr.Type, hdr.Flags)
	}
	if len(payload)%6 != 0 {
		t.Fatalf("SETTINGS payload length %d not a multiple of 6", len(payload))
	}
}
