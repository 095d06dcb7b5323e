// Package prometheus provides Prometheus metrics for voicebridge
// sessions. Metrics are fed from the shared event bus through
// MetricsListener and served by Exporter.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "voicebridge"

var (
	// sessionsActive is a gauge of currently connected sessions.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently connected sessions",
		},
	)

	// reconnectAttemptsTotal is a counter of reconnection attempts.
	reconnectAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Total number of reconnection attempts",
		},
	)

	// responsesActive is a gauge of in-flight model responses.
	responsesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "responses_active",
			Help:      "Number of in-flight model responses",
		},
	)

	// responsesTotal is a counter of completed responses by final status.
	responsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Total number of completed responses",
		},
		[]string{"status"}, // status: completed, cancelled, failed
	)

	// audioChunksTotal is a counter of inbound response audio chunks.
	audioChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_total",
			Help:      "Total number of inbound response audio chunks",
		},
	)

	// audioBytesTotal is a counter of inbound response audio bytes.
	audioBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_total",
			Help:      "Total inbound response audio bytes (decoded PCM16)",
		},
	)

	// interruptionsTotal is a counter of barge-in interruptions.
	interruptionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interruptions_total",
			Help:      "Total number of barge-in interruptions",
		},
	)

	// transcriptTurnsTotal is a counter of finalized transcript turns.
	transcriptTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_turns_total",
			Help:      "Total number of finalized transcript turns",
		},
		[]string{"speaker"}, // speaker: user, assistant
	)

	// toolCallDuration is a histogram of tool dispatch duration.
	toolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Duration of tool dispatches in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"tool"},
	)

	// toolCallsTotal is a counter of tool dispatches.
	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool dispatches",
		},
		[]string{"tool", "status"}, // status: success, error
	)

	// protocolErrorsTotal is a counter of upstream protocol errors.
	protocolErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Total number of upstream protocol errors",
		},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		sessionsActive,
		reconnectAttemptsTotal,
		responsesActive,
		responsesTotal,
		audioChunksTotal,
		audioBytesTotal,
		interruptionsTotal,
		transcriptTurnsTotal,
		toolCallDuration,
		toolCallsTotal,
		protocolErrorsTotal,
	}
)

// RecordSessionConnected records a session connection.
func RecordSessionConnected() {
	sessionsActive.Inc()
}

// RecordSessionDisconnected records a session ending.
func RecordSessionDisconnected() {
	sessionsActive.Dec()
}

// RecordReconnectAttempt records one reconnection attempt.
func RecordReconnectAttempt() {
	reconnectAttemptsTotal.Inc()
}

// RecordResponseStarted records the model starting a response.
func RecordResponseStarted() {
	responsesActive.Inc()
}

// RecordResponseDone records a response ending with its final status.
func RecordResponseDone(status string) {
	responsesActive.Dec()
	if status == "" {
		status = "completed"
	}
	responsesTotal.WithLabelValues(status).Inc()
}

// RecordAudioChunk records one inbound audio chunk and its byte size.
func RecordAudioChunk(bytes int) {
	audioChunksTotal.Inc()
	audioBytesTotal.Add(float64(bytes))
}

// RecordInterruption records a barge-in.
func RecordInterruption() {
	interruptionsTotal.Inc()
}

// RecordTranscriptTurn records a finalized transcript turn.
func RecordTranscriptTurn(speaker string) {
	transcriptTurnsTotal.WithLabelValues(speaker).Inc()
}

// RecordToolCall records a tool dispatch.
func RecordToolCall(tool, status string, durationSeconds float64) {
	toolCallDuration.WithLabelValues(tool).Observe(durationSeconds)
	toolCallsTotal.WithLabelValues(tool, status).Inc()
}

// RecordProtocolError records an upstream protocol error.
func RecordProtocolError() {
	protocolErrorsTotal.Inc()
}
