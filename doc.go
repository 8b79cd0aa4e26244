// Package h2engine is a dual-mode HTTP/1.x and HTTP/2 sans-I/O protocol
// engine: a pure state machine with no socket, thread, or timer of its own.
// A caller feeds it opaque bytes via engine.Connection.DataReceived and
// drives writes via engine.Connection.WriteMessage/WriteData/WritePush/
// WriteReset/WritePing; the engine responds synchronously through the
// engine.Observer callback set, most importantly OnWrite for outbound
// bytes.
//
// The engine itself lives in the engine package; pkg/frame, pkg/hpack,
// pkg/stream, pkg/validate, and pkg/h1 are its independently testable
// subsystems (frame codec, HPACK, stream table, header validation, HTTP/1.x
// line parsing). cmd/h2demo is a runnable demonstration wiring a client and
// a server engine together over an in-process net.Pipe.
package h2engine

// Version is this module's release tag.
const Version = "0.1.0"
