// Package obsmetrics instruments the engine's own activity as prometheus
// counters/gauges: frames, bytes, and streams, the things a sans-I/O
// connection actually does since it owns no socket to time DNS/TCP/TLS
// phases against.
package obsmetrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "h2engine"

var (
	framesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Inbound frames handled, by frame type.",
		},
		[]string{"type"},
	)

	framesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Outbound frames written, by frame type.",
		},
		[]string{"type"},
	)

	bytesIn = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_in_total",
			Help:      "Bytes consumed from data_received.",
		},
	)

	bytesOut = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_out_total",
			Help:      "Bytes emitted via on_write.",
		},
	)

	activeStreams = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Currently live streams, by side (local/remote).",
		},
		[]string{"side"},
	)
)

// Recorder is the interface Connection accepts as an optional constructor
// argument, so a caller that doesn't want prometheus wiring can supply a
// no-op implementation instead.
type Recorder interface {
	FrameReceived(typ uint8)
	FrameSent(typ uint8)
	BytesIn(n int)
	BytesOut(n int)
	SetActiveStreams(local, remote uint32)
}

type promRecorder struct{}

// Prom is the shared prometheus-backed Recorder.
var Prom Recorder = promRecorder{}

func (promRecorder) FrameReceived(typ uint8) {
	framesReceived.WithLabelValues(strconv.Itoa(int(typ))).Inc()
}

func (promRecorder) FrameSent(typ uint8) {
	framesSent.WithLabelValues(strconv.Itoa(int(typ))).Inc()
}

func (promRecorder) BytesIn(n int)  { bytesIn.Add(float64(n)) }
func (promRecorder) BytesOut(n int) { bytesOut.Add(float64(n)) }

func (promRecorder) SetActiveStreams(local, remote uint32) {
	activeStreams.WithLabelValues("local").Set(float64(local))
	activeStreams.WithLabelValues("remote").Set(float64(remote))
}

// nopRecorder discards everything; used when an embedder configures no
// Recorder at all.
type nopRecorder struct{}

func (nopRecorder) FrameReceived(uint8)             {}
func (nopRecorder) FrameSent(uint8)                 {}
func (nopRecorder) BytesIn(int)                     {}
func (nopRecorder) BytesOut(int)                    {}
func (nopRecorder) SetActiveStreams(uint32, uint32) {}

// Nop is the shared no-op Recorder.
var Nop Recorder = nopRecorder{}
