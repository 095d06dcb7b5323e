package prometheus

import (
	"github.com/voicebridge-ai/voicebridge/events"
)

// Status constants for metric labels.
const (
	statusSuccess = "success"
	statusError   = "error"
)

// MetricsListener records session events as Prometheus metrics.
// It implements the events.Listener signature and should be registered
// with an EventBus using SubscribeAll.
type MetricsListener struct{}

// NewMetricsListener creates a new MetricsListener.
func NewMetricsListener() *MetricsListener {
	return &MetricsListener{}
}

// Handle processes an event and records relevant metrics.
// This method is designed to be used with EventBus.SubscribeAll.
func (l *MetricsListener) Handle(event *events.Event) {
	switch event.Type {
	case events.EventConnected:
		RecordSessionConnected()
	case events.EventDisconnected:
		RecordSessionDisconnected()
	case events.EventReconnecting:
		RecordReconnectAttempt()
	case events.EventResponseCreated:
		RecordResponseStarted()
	case events.EventResponseDone:
		l.handleResponseDone(event)
	case events.EventAudioDelta:
		l.handleAudioDelta(event)
	case events.EventInterruption:
		RecordInterruption()
	case events.EventTranscriptDone:
		l.handleTranscriptDone(event)
	case events.EventToolCallCompleted:
		l.handleToolCall(event, statusSuccess)
	case events.EventToolCallFailed:
		l.handleToolCall(event, statusError)
	case events.EventError:
		RecordProtocolError()
	default:
		// Ignore events that don't have metrics
	}
}

func (l *MetricsListener) handleResponseDone(event *events.Event) {
	status := ""
	if data, ok := event.Data.(*events.ResponseData); ok {
		status = data.Status
	}
	RecordResponseDone(status)
}

func (l *MetricsListener) handleAudioDelta(event *events.Event) {
	if data, ok := event.Data.(*events.AudioDeltaData); ok {
		RecordAudioChunk(data.Bytes)
	}
}

func (l *MetricsListener) handleTranscriptDone(event *events.Event) {
	if data, ok := event.Data.(*events.TranscriptData); ok {
		RecordTranscriptTurn(data.Speaker)
	}
}

func (l *MetricsListener) handleToolCall(event *events.Event, status string) {
	if data, ok := event.Data.(*events.ToolCallData); ok {
		RecordToolCall(data.Tool, status, data.Duration.Seconds())
	}
}

// Listener returns an events.Listener function that can be registered with an EventBus.
func (l *MetricsListener) Listener() events.Listener {
	return l.Handle
}
