package engine

import (
	"golang.org/x/net/http2"

	"github.com/google/uuid"

	"github.com/mardukas/h2engine/internal/obslog"
	"github.com/mardukas/h2engine/internal/obsmetrics"
	"github.com/mardukas/h2engine/pkg/buffer"
	"github.com/mardukas/h2engine/pkg/errors"
	"github.com/mardukas/h2engine/pkg/frame"
	"github.com/mardukas/h2engine/pkg/hpack"
	"github.com/mardukas/h2engine/pkg/stream"
)

// connState is the connection's mode-negotiation/parsing state.
type connState int

const (
	stateUndefined connState = iota
	stateInit
	statePreface
	stateReadyNoSettings
	stateReady
	stateH1Ready
	stateH1Reading
	stateH1ReadingUpgrade
	stateUnknownProtocolUpgrade
	stateUnknownProtocol
)

// continuation tracks an in-progress HEADERS/PUSH_PROMISE/CONTINUATION
// concatenation sequence.
type continuation struct {
	active     bool
	streamID   uint32
	promisedID uint32 // nonzero when this sequence is a PUSH_PROMISE
	endStream  bool
	isRequest  bool // whether the eventual block should validate as a request
	isTrailers bool
	discard    bool // NOP_HEADERS latch: decode for HPACK sync, drop the result
	count      int  // CONTINUATION frames seen so far in this sequence
	buf        *buffer.Buffer
}

// Connection is the sans-I/O dual-mode HTTP/1.x + HTTP/2 protocol engine.
// It owns no socket, thread, or timer: DataReceived consumes opaque bytes,
// write_* operations and inbound frame handling produce opaque bytes via
// Observer.OnWrite. A single instance is not safe for concurrent use — the
// caller must serialize one inbound DataReceived against any write_* call.
type Connection struct {
	ID uuid.UUID

	role  Role
	state connState
	lost  bool

	obs     Observer
	log     obslog.Logger
	metrics obsmetrics.Recorder

	in *buffer.Buffer

	cont continuation

	local  Settings
	remote Settings

	encoder *hpack.Encoder
	decoder *hpack.Decoder

	streams *stream.Table

	connSendWindow int32
	connRecvWindow int32

	goawaySent bool

	// HTTP/1.x bridging state.
	http1Remaining uint32 // 0 = none, 0xFFFFFFFF = chunked, else Content-Length
	http1Stream    uint32 // stream id of the in-flight h1 message

	manualFlowControl      bool
	forbidH2Upgrade        bool
	forbidPriorKnowledgeH2 bool
	http1WriteChunked      bool // current outbound h1 message is chunked-framed
	http1WriteOpen         bool // an h1 message head has been written, body writes still open

	// observability counters, snapshotted by Stats.
	framesIn, framesOut uint64
	bytesIn, bytesOut   uint64
}

// Option configures a Connection at construction time.
type Option func(*Connection)

// WithLogger attaches a diagnostic logger. Absent, the engine uses a no-op.
func WithLogger(l obslog.Logger) Option {
	return func(c *Connection) { c.log = l }
}

// WithMetrics attaches a metrics recorder. Absent, the engine uses a no-op.
func WithMetrics(m obsmetrics.Recorder) Option {
	return func(c *Connection) { c.metrics = m }
}

// WithInitialSettings overrides the local Settings record advertised on
// connection start, in place of InitialSettings().
func WithInitialSettings(s Settings) Option {
	return func(c *Connection) { c.local = s }
}

// WithManualFlowControl disables the engine's automatic stream-level
// WINDOW_UPDATE emission on DATA receipt; the embedder must call
// IncreaseFlowWindow itself.
func WithManualFlowControl() Option {
	return func(c *Connection) { c.manualFlowControl = true }
}

// WithForbidH2Upgrade disables responding to an HTTP/1.1 "Upgrade: h2c"
// request with a 101 switch.
func WithForbidH2Upgrade() Option {
	return func(c *Connection) { c.forbidH2Upgrade = true }
}

// WithForbidPriorKnowledgeH2 disables recognizing the 24-byte client
// preface arriving directly in H1_READY (prior-knowledge HTTP/2).
func WithForbidPriorKnowledgeH2() Option {
	return func(c *Connection) { c.forbidPriorKnowledgeH2 = true }
}

// New creates a Connection in the given role, ready for Made. obs must not
// be nil.
func New(role Role, obs Observer, opts ...Option) *Connection {
	c := &Connection{
		ID:      uuid.New(),
		role:    role,
		state:   stateUndefined,
		obs:     obs,
		log:     obslog.Nop,
		metrics: obsmetrics.Nop,
		in:      buffer.New(),
		local:   InitialSettings(),
		remote:  ConservativeSettings(),
		streams: stream.New(role),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.connSendWindow = int32(StandardSettings().InitialWindowSize)
	c.connRecvWindow = int32(StandardSettings().InitialWindowSize)
	c.encoder = hpack.NewEncoder(c.remote.HeaderTableSize)
	c.decoder = hpack.NewDecoder(c.local.HeaderTableSize)
	return c
}

// Made starts the connection in the given protocol version, transitioning
// UNDEFINED to INIT (HTTP/2) or H1_READY (HTTP/1.x), and immediately
// drives whatever that transition implies.
func (c *Connection) Made(version Version) error {
	if c.state != stateUndefined {
		return errors.NewAssertion("made", "connection already made")
	}
	if version == HTTP2_0 {
		c.state = stateInit
	} else {
		c.state = stateH1Ready
	}
	return c.drive()
}

// DataReceived appends bytes to the inbound buffer and re-enters the drive
// loop. It returns nil ("OK") when the loop needs more input to make
// progress, or a propagated error from a callback or a protocol violation.
func (c *Connection) DataReceived(b []byte) error {
	if c.lost {
		return errors.NewAssertion("data_received", "connection already lost")
	}
	c.metrics.BytesIn(len(b))
	c.bytesIn += uint64(len(b))
	if err := c.in.Append(b); err != nil {
		return err
	}
	return c.drive()
}

// Lost tears the connection down: no further drive activity is possible,
// and any buffered continuation state is released.
func (c *Connection) Lost(cause error) error {
	if c.lost {
		return nil
	}
	c.lost = true
	c.state = stateUndefined
	c.cont = continuation{}
	if cause == nil {
		cause = errors.NewDisconnect("lost", "connection lost")
	}
	c.log.Warnf("connection %s lost: %v", c.ID, cause)
	return cause
}

// drive repeatedly advances the state machine until it needs more input,
// hits a fatal error, or a callback aborts the pass.
func (c *Connection) drive() error {
	for {
		if c.lost {
			return nil
		}
		var (
			progressed bool
			err        error
		)
		switch c.state {
		case stateUndefined:
			return nil

		case stateInit:
			err = c.stepInit()
			progressed = err == nil

		case statePreface:
			progressed, err = c.stepPreface()

		case stateReadyNoSettings:
			progressed, err = c.stepReadyNoSettings()

		case stateReady:
			progressed, err = c.stepReady()

		case stateH1Ready:
			progressed, err = c.stepH1Ready()

		case stateH1Reading, stateH1ReadingUpgrade:
			progressed, err = c.stepH1Reading()

		case stateUnknownProtocolUpgrade, stateUnknownProtocol:
			// Opaque pass-through: deliver whatever is buffered as stream 1
			// data and stop driving until more arrives.
			if c.in.Len() > 0 {
				view := append([]byte(nil), c.in.AsView()...)
				c.in.Reset()
				if err := c.obs.OnMessageData(1, view); err != nil {
					return err
				}
			}
			return nil

		default:
			return nil
		}
		if err != nil {
			if errors.Is(err, errors.Transport) || errors.Is(err, errors.Disconnect) {
				c.lost = true
			}
			return err
		}
		if !progressed {
			return nil
		}
	}
}

// writeRaw hands bytes to the observer's OnWrite, tracking byte counters.
func (c *Connection) writeRaw(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	c.bytesOut += uint64(len(b))
	c.metrics.BytesOut(len(b))
	return c.obs.OnWrite(b)
}

// emitFrames walks raw as a sequence of complete HTTP/2 frames, firing
// OnFrameSend for each one before handing the whole concatenation to
// OnWrite in a single call — the exact wire bytes in wire order, which is
// all §5 requires of on_write itself.
func (c *Connection) emitFrames(raw []byte) error {
	buf := raw
	for len(buf) > 0 {
		hdr, _, n, ok, perr := frame.TryExtract(buf)
		if perr != nil || !ok {
			break
		}
		c.framesOut++
		c.metrics.FrameSent(uint8(hdr.Type))
		if err := c.obs.OnFrameSend(FrameInfo{Type: hdr.Type, Flags: hdr.Flags, StreamID: hdr.StreamID, Length: hdr.Length}); err != nil {
			return err
		}
		buf = buf[n:]
	}
	return c.writeRaw(raw)
}

// goAway emits a GOAWAY frame (once) and returns the corresponding
// Transport error: frame handlers that detect a peer protocol violation
// emit GOAWAY with a specific code and return Transport.
func (c *Connection) goAway(code http2.ErrCode, op, message string) error {
	if !c.goawaySent {
		c.goawaySent = true
		c.log.Warnf("connection %s sending GOAWAY code=%s op=%s: %s", c.ID, code, op, message)
		dst := frame.WriteGoAway(nil, c.streams.LastStreamID(stream.Remote), code, nil)
		if err := c.emitFrames(dst); err != nil {
			return err
		}
	}
	return errors.NewTransport(op, uint32(code), message)
}

// Stats is a read-only snapshot of the connection's activity counters.
type Stats struct {
	FramesIn, FramesOut               uint64
	BytesIn, BytesOut                 uint64
	ActiveStreamsLocal, ActiveStreamsRemote uint32
	EncoderTableSize, DecoderTableSize uint32
}

// Stats returns a snapshot of the connection's activity counters.
func (c *Connection) Stats() Stats {
	s := Stats{
		FramesIn:           c.framesIn,
		FramesOut:          c.framesOut,
		BytesIn:            c.bytesIn,
		BytesOut:           c.bytesOut,
		ActiveStreamsLocal: c.streams.ActiveCount(stream.Local),
		ActiveStreamsRemote: c.streams.ActiveCount(stream.Remote),
	}
	if c.encoder != nil {
		s.EncoderTableSize = c.encoder.DynamicTableSize()
	}
	if c.decoder != nil {
		s.DecoderTableSize = c.decoder.DynamicTableSize()
	}
	c.metrics.SetActiveStreams(s.ActiveStreamsLocal, s.ActiveStreamsRemote)
	return s
}
