// Package stream implements the connection's per-stream state: the
// bucketed hash table keyed by stream id, the acceptance bitmask that
// gates which frames a stream may send/receive, and the recently-reset
// ring used to tolerate frames that race a local RST_STREAM. The table
// carries no internal locking — a Connection is not safe for concurrent
// use, so serializing access is the caller's job, not the table's.
package stream

import (
	"golang.org/x/net/http2"

	"github.com/mardukas/h2engine/pkg/constants"
	herrors "github.com/mardukas/h2engine/pkg/errors"
)

// Flags is the per-stream acceptance bitmask.
type Flags uint16

const (
	Headers  Flags = 1 << iota // inbound HEADERS/CONTINUATION may arrive as initial headers
	Data                       // inbound DATA may arrive
	Trailers                  // next HEADERS will be trailers

	WriteHeaders // local may emit HEADERS
	WriteData    // local may emit DATA
	WritePush    // local may emit PUSH_PROMISE on this stream

	Push       // remote may push-promise on this stream (client-initiated parent)
	NopHeaders // locally reset mid-HEADERS-sequence; keep decoding HPACK, discard result
)

// Inbound and Outbound are composite masks used when testing whether a
// stream still has any reason to exist.
const (
	Inbound  = Headers | Data | Trailers
	Outbound = WriteHeaders | WriteData | WritePush
)

// Side identifies which end of the connection originated a stream id.
type Side int

const (
	Local Side = iota
	Remote
)

// Role is which role this connection plays; it determines the expected id
// parity for each Side (client-initiated ids are odd, server-initiated
// even).
type Role int

const (
	Client Role = iota
	Server
)

// Stream is one HTTP/2 stream's multiplexer state.
type Stream struct {
	ID         uint32
	Accept     Flags
	SendWindow int32
	RecvWindow int32

	next *Stream // bucket chain link
}

// Live reports whether the stream still has any reason to exist: at least
// one inbound or outbound acceptance bit set, or NopHeaders latched while
// an in-flight CONTINUATION sequence still owes bytes to the HPACK decoder.
func (s *Stream) Live() bool {
	return s.Accept&(Inbound|Outbound|NopHeaders) != 0
}

// Table is the bucketed stream hash table for one connection.
type Table struct {
	role    Role
	buckets [constants.StreamBuckets]*Stream

	lastStreamID [2]uint32 // indexed by Side
	activeCount  [2]uint32

	resetRing    [constants.StreamResetHistory]uint32
	resetRingPos int
}

// New creates an empty Table for a connection playing role.
func New(role Role) *Table {
	return &Table{role: role}
}

// ActiveCount returns the number of live streams on the given side.
func (t *Table) ActiveCount(side Side) uint32 {
	return t.activeCount[side]
}

// LastStreamID returns the highest stream id created on the given side.
func (t *Table) LastStreamID(side Side) uint32 {
	return t.lastStreamID[side]
}

func (t *Table) expectsOdd(side Side) bool {
	localIsOdd := t.role == Client
	if side == Local {
		return localIsOdd
	}
	return !localIsOdd
}

func bucket(id uint32) uint32 {
	return id % constants.StreamBuckets
}

// Find returns the stream with the given id, or nil if absent.
func (t *Table) Find(id uint32) *Stream {
	for s := t.buckets[bucket(id)]; s != nil; s = s.next {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// RecentlyReset reports whether id was pushed into the reset ring and has
// not been evicted by newer resets yet — used to distinguish a peer
// protocol violation from a harmless race against a just-sent RST_STREAM.
func (t *Table) RecentlyReset(id uint32) bool {
	for _, r := range t.resetRing {
		if r == id {
			return true
		}
	}
	return false
}

// NewStream creates and inserts a stream with the given id, side, initial
// acceptance mask, and flow-control window sizes (sendWindow bounded by
// what the peer's SETTINGS currently allows us to send, recvWindow by what
// we've advertised the peer may send us), enforcing stream id parity,
// monotonicity, and concurrency invariants. A violation on Local is the
// caller's own bug (Assertion for parity/monotonicity, WouldBlock for the
// concurrency cap); the identical violation on Remote is a peer protocol
// violation (Transport).
func (t *Table) NewStream(id uint32, side Side, accept Flags, sendWindow, recvWindow int32, maxConcurrent uint32) (*Stream, error) {
	if id == 0 {
		return nil, herrors.NewAssertion("stream.new", "stream id 0 is reserved for the connection")
	}
	wantOdd := t.expectsOdd(side)
	if (id%2 == 1) != wantOdd {
		return nil, parityError(side, id)
	}
	if id <= t.lastStreamID[side] {
		return nil, monotonicityError(side, id)
	}
	if t.activeCount[side] >= maxConcurrent {
		return nil, concurrencyError(side)
	}

	s := &Stream{ID: id, Accept: accept, SendWindow: sendWindow, RecvWindow: recvWindow}
	b := bucket(id)
	s.next = t.buckets[b]
	t.buckets[b] = s

	t.lastStreamID[side] = id
	t.activeCount[side]++
	return s, nil
}

// Free unlinks id from its bucket and decrements side's active counter. A
// caller that locally resets the stream should also call MarkReset.
func (t *Table) Free(id uint32, side Side) {
	b := bucket(id)
	var prev *Stream
	for s := t.buckets[b]; s != nil; s = s.next {
		if s.ID == id {
			if prev == nil {
				t.buckets[b] = s.next
			} else {
				prev.next = s.next
			}
			if t.activeCount[side] > 0 {
				t.activeCount[side]--
			}
			return
		}
		prev = s
	}
}

// MarkReset pushes id into the recently-reset ring, so later frames
// racing the RST_STREAM don't spuriously fail the connection.
func (t *Table) MarkReset(id uint32) {
	t.resetRing[t.resetRingPos] = id
	t.resetRingPos = (t.resetRingPos + 1) % len(t.resetRing)
}

// AdjustSendWindows adds delta to every live stream's SendWindow, used when
// a peer's SETTINGS changes initial_window_size (RFC 7540 §6.9.2).
func (t *Table) AdjustSendWindows(delta int32) {
	for _, head := range t.buckets {
		for s := head; s != nil; s = s.next {
			s.SendWindow += delta
		}
	}
}

func parityError(side Side, id uint32) error {
	if side == Local {
		return herrors.NewAssertion("stream.new", "local stream id has wrong parity")
	}
	e := herrors.NewTransport("stream.new", uint32(http2.ErrCodeProtocol), "peer stream id has wrong parity")
	e.StreamID = id
	return e
}

func monotonicityError(side Side, id uint32) error {
	if side == Local {
		return herrors.NewAssertion("stream.new", "local stream id is not monotonically increasing")
	}
	e := herrors.NewTransport("stream.new", uint32(http2.ErrCodeProtocol), "peer stream id is not monotonically increasing")
	e.StreamID = id
	return e
}

func concurrencyError(side Side) error {
	if side == Local {
		return herrors.NewWouldBlock("stream.new", "local concurrency cap reached")
	}
	return herrors.NewTransport("stream.new", uint32(http2.ErrCodeRefusedStream), "peer exceeded its concurrency cap")
}
