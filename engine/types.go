package engine

import (
	"golang.org/x/net/http2"

	"github.com/mardukas/h2engine/pkg/hpack"
	"github.com/mardukas/h2engine/pkg/stream"
)

// Role is which end of the connection this engine instance plays. It
// determines expected stream id parity.
type Role = stream.Role

const (
	Client = stream.Client
	Server = stream.Server
)

// Version selects which protocol Made starts the connection in.
type Version int

const (
	HTTP1_0 Version = iota
	HTTP1_1
	HTTP2_0
)

// Message is the engine's message representation: HTTP/2 pseudo-headers
// surfaced as named fields (stripped from Headers), unified into one shape
// since a Message is either a request or a response depending on
// IsRequest.
type Message struct {
	IsRequest bool

	Method    string
	Path      string
	Scheme    string
	Authority string

	StatusCode int

	Headers []hpack.HeaderField
}

// FrameInfo is the minimal frame descriptor handed to OnFrame/OnFrameSend —
// enough for a diagnostic observer to log or count by type without exposing
// the engine's internal payload representation.
type FrameInfo struct {
	Type     http2.FrameType
	Flags    http2.Flags
	StreamID uint32
	Length   uint32
}

// Observer is the capability set of callbacks an embedder supplies at
// construction. Each callback returns OK (nil) or a
// propagatable error; a non-nil return aborts the current drive and becomes
// the return value of the driving API call (Made/DataReceived/write_*).
type Observer interface {
	OnWrite(b []byte) error

	OnStreamStart(id uint32) error
	OnStreamEnd(id uint32) error

	OnMessageStart(id uint32, msg *Message) error
	OnMessageData(id uint32, b []byte) error
	OnMessageTrail(id uint32, msg *Message) error
	OnMessageEnd(id uint32) error
	OnMessagePush(parent uint32, msg *Message, child uint32) error

	OnFrame(f FrameInfo) error
	OnFrameSend(f FrameInfo) error

	OnSettings() error
	OnFlowIncrease(id uint32) error
	OnPong(opaque [8]byte) error
	OnUpgrade() error
}

// NopObserver implements Observer with no-op, nil-returning methods. An
// embedder composes it into their own observer struct and overrides only
// the callbacks they care about, the same partial-implementation pattern
// the standard library uses for multi-method interfaces (e.g. http.Handler
// combinators).
type NopObserver struct{}

func (NopObserver) OnWrite(b []byte) error { return nil }

func (NopObserver) OnStreamStart(id uint32) error { return nil }
func (NopObserver) OnStreamEnd(id uint32) error   { return nil }

func (NopObserver) OnMessageStart(id uint32, msg *Message) error      { return nil }
func (NopObserver) OnMessageData(id uint32, b []byte) error           { return nil }
func (NopObserver) OnMessageTrail(id uint32, msg *Message) error      { return nil }
func (NopObserver) OnMessageEnd(id uint32) error                      { return nil }
func (NopObserver) OnMessagePush(parent uint32, msg *Message, child uint32) error { return nil }

func (NopObserver) OnFrame(f FrameInfo) error     { return nil }
func (NopObserver) OnFrameSend(f FrameInfo) error { return nil }

func (NopObserver) OnSettings() error             { return nil }
func (NopObserver) OnFlowIncrease(id uint32) error { return nil }
func (NopObserver) OnPong(opaque [8]byte) error    { return nil }
func (NopObserver) OnUpgrade() error                { return nil }
