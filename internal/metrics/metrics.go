// Package metrics defines all Prometheus metrics for dhcpy.
// All metrics use the "dhcpy_" prefix.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dhcpy"

// --- Codec Metrics ---

var (
	// MessagesDecoded counts successfully decoded messages by message type.
	MessagesDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_decoded_total",
		Help:      "Total DHCP messages decoded, by message type.",
	}, []string{"msg_type"})

	// DecodeErrors counts decode failures by error kind.
	DecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decode_errors_total",
		Help:      "Total DHCP decode failures, by error kind.",
	}, []string{"kind"})

	// UnknownOptions counts options skipped for lack of a decoder.
	UnknownOptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "unknown_options_total",
		Help:      "Total options with no registered decoder, by option code.",
	}, []string{"code"})

	// MessagesEncoded counts successfully encoded messages.
	MessagesEncoded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_encoded_total",
		Help:      "Total DHCP messages encoded.",
	})

	// EncodeErrors counts encode failures by error kind.
	EncodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "encode_errors_total",
		Help:      "Total DHCP encode failures, by error kind.",
	}, []string{"kind"})
)

// --- Listener Metrics ---

var (
	// PacketsDropped counts datagrams discarded before reaching a handler.
	PacketsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_dropped_total",
		Help:      "Total packets dropped by the listener, by reason.",
	}, []string{"reason"})

	// ProcessingDuration tracks per-packet decode and handling latency.
	ProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "processing_duration_seconds",
		Help:      "Packet decode and handling duration in seconds.",
		Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})
)

// --- Capture Metrics ---

var (
	// CaptureRecords counts messages written to the capture store.
	CaptureRecords = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "capture_records_total",
		Help:      "Total messages written to the capture store.",
	})

	// CaptureErrors counts capture store write failures.
	CaptureErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "capture_errors_total",
		Help:      "Total capture store write failures.",
	})
)

// --- Server Info ---

var (
	// ServerInfo is a constant gauge with build metadata.
	ServerInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "server_info",
		Help:      "Server build and version info.",
	}, []string{"version"})

	// ServerStartTime tracks listener start time as a unix timestamp.
	ServerStartTime = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "server_start_time_seconds",
		Help:      "Server start time as Unix timestamp.",
	})
)
