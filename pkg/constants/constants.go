// Package constants defines the engine's compile-time knobs.
package constants

// Byte buffer growth.
const (
	BufferAllocMin = 256
	GrowthFactor   = 1.5
)

// HTTP/1.x framing limits.
const (
	// MaxHTTP1HeaderSize bounds a single request/response's header block:
	// below it, data_received returns nil and waits for more bytes; past
	// it, data_received fails with a DISCONNECT error.
	MaxHTTP1HeaderSize = 2048
)

// HPACK / header list limits.
const (
	// MaxHeaders bounds the number of header fields accepted per message.
	MaxHeaders = 64
)

// HTTP/2 frame layer limits.
const (
	// MaxContinuations bounds how many CONTINUATION frames may follow a
	// single HEADERS/PUSH_PROMISE before the sequence is abandoned with
	// GOAWAY(ENHANCE_YOUR_CALM). The total permitted concatenation size is
	// (MaxContinuations+1) * local.max_frame_size.
	MaxContinuations = 3
)

// Stream table sizing.
const (
	// StreamBuckets is the bucket count for the stream hash table. Kept
	// prime to spread sequential stream ids evenly.
	StreamBuckets = 61
	// StreamResetHistory is the length of the recently-reset id ring used
	// to suppress spurious connection errors for frames that arrive just
	// after a local RST_STREAM.
	StreamResetHistory = 7
)

// HTTP/2 protocol-level defaults.
const (
	DefaultHeaderTableSize   = 4096
	DefaultInitialWindowSize = 65535
	DefaultMaxFrameSize      = 16384
	MinMaxFrameSize          = 16384
	MaxMaxFrameSize          = 16777215
	MaxWindowSize            = 0x7FFFFFFF
)

// ClientPreface is the 24-byte sequence a client sends to open an HTTP/2
// connection.
const ClientPreface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"
