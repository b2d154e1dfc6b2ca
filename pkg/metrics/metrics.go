package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SnapshotsReceived counts decoded market data snapshots by symbol
var SnapshotsReceived = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fixmd_snapshots_received_total",
		Help: "Total number of market data snapshots decoded",
	},
	[]string{"symbol"},
)

// Entry-level decode outcomes
var (
	EntriesDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixmd_entries_decoded_total",
			Help: "Total number of snapshot entries decoded, by side",
		},
		[]string{"symbol", "side"},
	)

	EntriesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixmd_entries_dropped_total",
			Help: "Total number of snapshot entries skipped during decode",
		},
		[]string{"reason"},
	)

	DecodeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fixmd_decode_failures_total",
			Help: "Total number of inbound messages that could not be decoded at all",
		},
	)
)

// RejectsReceived counts market data request rejects by MDReqRejReason
var RejectsReceived = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fixmd_rejects_received_total",
		Help: "Total number of market data request rejects received",
	},
	[]string{"reason"},
)

// SendFailures counts outbound requests the session engine refused
var SendFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fixmd_send_failures_total",
		Help: "Total number of failed market data request sends",
	},
	[]string{"request"},
)

// SessionState is 1 for the current session state and 0 for the others
var SessionState = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "fixmd_session_state",
		Help: "Current FIX session state",
	},
	[]string{"state"},
)

// FirstDataWait records the startup health check outcome (signaled/timed_out)
var FirstDataWait = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fixmd_first_data_wait_total",
		Help: "Outcome of waiting for the first market data snapshot",
	},
	[]string{"outcome"},
)

// Async sink queue metrics
var (
	SinkQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fixmd_sink_queue_depth",
			Help: "Number of events waiting in an async sink queue",
		},
		[]string{"sink"},
	)

	SinkDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixmd_sink_dropped_total",
			Help: "Number of events dropped because an async sink queue was full",
		},
		[]string{"sink"},
	)

	SinkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixmd_sink_errors_total",
			Help: "Number of events a downstream backend failed to accept",
		},
		[]string{"sink"},
	)
)

func init() {
	prometheus.MustRegister(SnapshotsReceived, EntriesDecoded, EntriesDropped, DecodeFailures)
	prometheus.MustRegister(RejectsReceived, SendFailures, SessionState, FirstDataWait)
	prometheus.MustRegister(SinkQueueDepth, SinkDropped, SinkErrors)
}
