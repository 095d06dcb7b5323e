package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voicebridge-ai/voicebridge/events"
	"github.com/voicebridge-ai/voicebridge/logger"
)

// Protocol state machine constants.
const (
	// minCommitSamples is the minimum appended sample count before a
	// manual commit is valid. Commits below this are skipped to avoid
	// upstream errors on empty buffers.
	minCommitSamples = 2400

	reconnectMaxAttempts = 5

	heartbeatInterval = 30 * time.Second
	setupTimeout      = 10 * time.Second
	msgChannelSize    = 32
)

// reconnectBaseDelay is the first backoff delay, doubling per attempt.
// Variable so tests can compress the schedule.
var reconnectBaseDelay = time.Second

// Engine is the protocol state machine. It owns exactly one upstream
// connection per session, tracks turn, response, and interruption state,
// and exposes a normalized event feed. All mutable turn state is guarded
// by one mutex; inbound events are applied by a single handler goroutine.
type Engine struct {
	cfg     Config
	eventID atomic.Int64

	mu              sync.Mutex
	conn            *Conn
	sessionID       string
	state           AgentState
	configSent      bool // per physical connection
	clearPending    bool // one input buffer clear per utterance
	bufferedSamples int
	audioReceived   bool
	activeResponses int
	cancelPending   bool
	intentional     bool
	connected       bool
	closed          bool

	transcripts *transcriptBuffers

	ctx       context.Context
	cancel    context.CancelFunc
	loopDone  chan struct{}
	eventsCh  chan Event
	closeOnce sync.Once
}

// NewEngine creates an Engine. Call Connect to establish the session.
func NewEngine(cfg Config) *Engine {
	cfg.defaults()
	return &Engine{
		cfg:          cfg,
		state:        StateIdle,
		clearPending: true,
		transcripts:  newTranscriptBuffers(),
		eventsCh:     make(chan Event, cfg.EventBufferSize),
	}
}

// Events returns the normalized event feed. The channel is closed by
// Disconnect. A slow consumer drops events rather than blocking the
// protocol handler.
func (e *Engine) Events() <-chan Event {
	return e.eventsCh
}

// State returns the current conversational state.
func (e *Engine) State() AgentState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SessionID returns the upstream-assigned session identifier, empty
// before the session is created.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// Connect dials the upstream service, waits for session creation, and
// sends the one-time session configuration. A failed connect rejects the
// caller; the reconnection policy only applies after a previously
// successful connection drops.
func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrSessionClosed
	}
	if e.connected {
		e.mu.Unlock()
		return nil
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.mu.Unlock()

	conn := e.newConn()
	if err := conn.Dial(e.ctx); err != nil {
		return err
	}
	if err := e.setupSession(conn); err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	conn.StartHeartbeat(e.ctx, heartbeatInterval)

	e.mu.Lock()
	e.conn = conn
	e.connected = true
	e.loopDone = make(chan struct{})
	e.mu.Unlock()

	go e.runLoop(conn)

	logger.SessionConnected(e.SessionID(), e.cfg.Model, e.cfg.Voice)
	e.emit(Event{Type: EventConnected})
	return nil
}

func (e *Engine) newConn() *Conn {
	url := e.cfg.URL
	if !strings.Contains(url, "?") {
		url += "?model=" + e.cfg.Model
	}
	return NewConn(url, e.cfg.Credential, e.cfg.Headers)
}

// setupSession performs the per-connection handshake: wait for
// session.created, then send the session configuration exactly once.
func (e *Engine) setupSession(conn *Conn) error {
	ctx, cancel := context.WithTimeout(e.ctx, setupTimeout)
	defer cancel()

	data, err := conn.Receive(ctx)
	if err != nil {
		return fmt.Errorf("awaiting session.created: %w", err)
	}
	event, err := ParseServerEvent(data)
	if err != nil {
		return fmt.Errorf("parsing session.created: %w", err)
	}
	created, ok := event.(*SessionCreatedEvent)
	if !ok {
		return fmt.Errorf("%w: expected session.created, got %T", ErrProtocolError, event)
	}

	e.mu.Lock()
	e.sessionID = created.Session.ID
	e.configSent = false
	e.clearPending = true
	e.bufferedSamples = 0
	e.audioReceived = false
	e.activeResponses = 0
	e.cancelPending = false
	err = e.sendSessionConfigLocked(conn)
	e.mu.Unlock()

	return err
}

// sendSessionConfigLocked sends the session.update configuration. At most
// one is sent per physical connection; a second attempt is logged and
// skipped.
func (e *Engine) sendSessionConfigLocked(conn *Conn) error {
	if e.configSent {
		logger.Warn("duplicate session configuration attempt ignored",
			"session_id", e.sessionID)
		return nil
	}

	cfg := SessionConfig{
		Modalities:              []string{"text", "audio"},
		Instructions:            e.cfg.instructions(),
		Voice:                   e.cfg.Voice,
		InputAudioFormat:        "pcm16",
		OutputAudioFormat:       "pcm16",
		InputAudioTranscription: e.cfg.Transcription,
		TurnDetection:           e.cfg.TurnDetection,
		Tools:                   e.cfg.Tools,
		Temperature:             e.cfg.Temperature,
	}

	err := conn.Send(SessionUpdateEvent{
		ClientEvent: e.clientEvent(TypeSessionUpdate),
		Session:     cfg,
	})
	if err != nil {
		return err
	}
	e.configSent = true
	return nil
}

func (e *Engine) clientEvent(eventType string) ClientEvent {
	return ClientEvent{
		EventID: fmt.Sprintf("evt_%d", e.eventID.Add(1)),
		Type:    eventType,
	}
}

// runLoop consumes inbound messages for the life of the session,
// replacing the connection through the bounded reconnection policy when
// an unintentional drop occurs.
func (e *Engine) runLoop(conn *Conn) {
	defer close(e.loopDone)

	for {
		msgCh := make(chan []byte, msgChannelSize)
		errCh := make(chan error, 1)
		go func(c *Conn) {
			errCh <- c.ReceiveLoop(e.ctx, msgCh)
		}(conn)

		connEnded := false
		for !connEnded {
			select {
			case <-e.ctx.Done():
				e.finishDisconnect(nil)
				return
			case err := <-errCh:
				if err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("receive loop ended", "error", err)
				}
				connEnded = true
			case data := <-msgCh:
				e.handleMessage(data)
			}
		}

		if e.isIntentional() {
			e.finishDisconnect(nil)
			return
		}

		logger.Warn("upstream connection lost, reconnecting",
			"session_id", e.SessionID())

		next, err := e.reconnect()
		if err != nil {
			e.emit(Event{Type: EventError, Err: err})
			e.finishDisconnect(err)
			return
		}
		conn = next
	}
}

// reconnect retries the connection with exponential backoff: a fixed
// number of attempts, base delay doubling each time, with bounded
// positive jitter. Exhausting the attempts is terminal.
func (e *Engine) reconnect() (*Conn, error) {
	delay := reconnectBaseDelay

	for attempt := 1; attempt <= reconnectMaxAttempts; attempt++ {
		logger.Reconnecting(attempt, reconnectMaxAttempts, delay)
		e.emit(Event{Type: EventReconnecting, Attempt: attempt})

		select {
		case <-e.ctx.Done():
			return nil, e.ctx.Err()
		case <-time.After(jittered(delay)):
		}

		if e.isIntentional() {
			return nil, ErrSessionClosed
		}

		conn := e.newConn()
		if err := conn.Dial(e.ctx); err != nil {
			logger.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
			delay *= 2
			continue
		}
		if err := e.setupSession(conn); err != nil {
			logger.Warn("reconnect handshake failed", "attempt", attempt, "error", err)
			_ = conn.Close()
			delay *= 2
			continue
		}

		e.mu.Lock()
		e.conn = conn
		e.mu.Unlock()
		conn.StartHeartbeat(e.ctx, heartbeatInterval)

		e.emit(Event{Type: EventConnected})
		return conn, nil
	}

	return nil, fmt.Errorf("%w: %d attempts", ErrReconnectExhausted, reconnectMaxAttempts)
}

// jittered adds up to 25% to a backoff delay. Jitter only extends the
// delay so the attempt schedule never collapses below its base.
func jittered(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(int64(d)/4+1)) //nolint:gosec // backoff jitter
}

func (e *Engine) isIntentional() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.intentional
}

// finishDisconnect emits the terminal disconnected event.
func (e *Engine) finishDisconnect(err error) {
	e.mu.Lock()
	e.connected = false
	intentional := e.intentional
	sessionID := e.sessionID
	e.mu.Unlock()

	logger.SessionDisconnected(sessionID, intentional)
	e.emit(Event{Type: EventDisconnected, Err: err})
}

// Disconnect intentionally closes the session: no reconnection, all turn
// and response bookkeeping reset, event feed closed. Idempotent.
func (e *Engine) Disconnect() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.intentional = true
	conn := e.conn
	cancel := e.cancel
	loopDone := e.loopDone

	e.state = StateIdle
	e.clearPending = true
	e.bufferedSamples = 0
	e.audioReceived = false
	e.activeResponses = 0
	e.cancelPending = false
	e.transcripts.resetAll()
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if loopDone != nil {
		<-loopDone
	} else {
		e.finishDisconnect(nil)
	}

	e.closeOnce.Do(func() { close(e.eventsCh) })
	return nil
}

// SendAudio appends one captured PCM16 frame to the upstream input
// buffer. The first frame of a new utterance is preceded by exactly one
// input buffer clear, gated by the pending-clear flag.
func (e *Engine) SendAudio(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrSessionClosed
	}
	if e.conn == nil || !e.connected {
		return ErrNotConnected
	}

	if e.clearPending {
		if err := e.conn.Send(InputAudioClearEvent{ClientEvent: e.clientEvent(TypeInputAudioClear)}); err != nil {
			return err
		}
		e.clearPending = false
		e.bufferedSamples = 0
		e.audioReceived = false
	}

	event := InputAudioAppendEvent{
		ClientEvent: e.clientEvent(TypeInputAudioAppend),
		Audio:       base64.StdEncoding.EncodeToString(pcm),
	}
	if err := e.conn.Send(event); err != nil {
		return err
	}

	e.bufferedSamples += len(pcm) / 2
	e.audioReceived = true
	return nil
}

// CommitAudio commits the input buffer for processing. The commit is
// gated: below the minimum sample threshold, or when no audio arrived
// since the last clear, it is skipped and logged rather than sent.
func (e *Engine) CommitAudio() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrSessionClosed
	}
	if e.conn == nil || !e.connected {
		return ErrNotConnected
	}

	if !e.audioReceived || e.bufferedSamples < minCommitSamples {
		logger.Debug("audio commit skipped",
			"buffered_samples", e.bufferedSamples,
			"audio_received", e.audioReceived,
			"min_samples", minCommitSamples)
		return nil
	}

	if err := e.conn.Send(InputAudioCommitEvent{ClientEvent: e.clientEvent(TypeInputAudioCommit)}); err != nil {
		return err
	}
	e.bufferedSamples = 0
	e.audioReceived = false
	return nil
}

// EndTurn ends the user's turn under local turn detection: commit the
// buffer and explicitly request the next response. Under upstream turn
// detection only the commit applies.
func (e *Engine) EndTurn() error {
	if err := e.CommitAudio(); err != nil {
		return err
	}
	if e.cfg.TurnDetection != nil {
		return nil
	}
	return e.requestResponse()
}

func (e *Engine) requestResponse() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil || !e.connected {
		return ErrNotConnected
	}
	return e.conn.Send(ResponseCreateEvent{ClientEvent: e.clientEvent(TypeResponseCreate)})
}

// SendText submits a text message as the user's turn and requests a
// response.
func (e *Engine) SendText(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrSessionClosed
	}
	if e.conn == nil || !e.connected {
		return ErrNotConnected
	}

	item := ConversationItemCreateEvent{
		ClientEvent: e.clientEvent(TypeConversationItemCreate),
		Item: ConversationItem{
			Type: "message",
			Role: "user",
			Content: []ItemContent{
				{Type: "input_text", Text: text},
			},
		},
	}
	if err := e.conn.Send(item); err != nil {
		return err
	}
	if err := e.conn.Send(ResponseCreateEvent{ClientEvent: e.clientEvent(TypeResponseCreate)}); err != nil {
		return err
	}

	e.setStateLocked(StateThinking)
	return nil
}

// CancelResponse advisorily cancels the active response: playback stops
// and local state moves to interrupted optimistically, while the
// authoritative interruption is committed by the upstream acknowledgment.
// Without an active response this is a no-op.
func (e *Engine) CancelResponse() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrSessionClosed
	}
	if e.activeResponses == 0 {
		return nil
	}

	e.interruptLocked()
	return nil
}

// ResetConversation clears transcripts, playback, and turn bookkeeping
// without dropping the connection.
func (e *Engine) ResetConversation() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrSessionClosed
	}

	if e.cfg.Sink != nil {
		e.cfg.Sink.Stop()
	}
	e.cancelResponseLocked()

	for _, speaker := range []Speaker{SpeakerUser, SpeakerAssistant} {
		if id, ok := e.transcripts.reset(speaker); ok {
			e.emitLocked(Event{Type: EventTranscriptReset, Speaker: speaker, ItemID: id})
		}
	}

	e.clearPending = true
	e.bufferedSamples = 0
	e.audioReceived = false
	e.setStateLocked(StateIdle)
	return nil
}

// handleMessage applies one inbound message to the state machine.
// Malformed messages are logged and dropped, never fatal.
func (e *Engine) handleMessage(data []byte) {
	event, err := ParseServerEvent(data)
	if err != nil {
		logger.ProtocolDrop("unparseable", err)
		return
	}

	switch ev := event.(type) {
	case *ErrorEvent:
		e.handleErrorEvent(ev)
	case *SessionUpdatedEvent:
		logger.Debug("session updated", "session_id", ev.Session.ID)
	case *SpeechStartedEvent:
		e.handleSpeechStarted(ev)
	case *SpeechStoppedEvent:
		e.handleSpeechStopped(ev)
	case *InputTranscriptionCompletedEvent:
		e.handleInputTranscription(ev)
	case *InputTranscriptionFailedEvent:
		logger.Warn("input transcription failed",
			"item_id", ev.ItemID, "error", ev.Error.Message)
	case *ResponseCreatedEvent:
		e.handleResponseCreated(ev)
	case *ResponseDoneEvent:
		e.handleResponseDone(ev)
	case *AudioDeltaEvent:
		e.handleAudioDelta(ev)
	case *AudioDoneEvent:
		e.handleAudioDone(ev)
	case *TranscriptDeltaEvent:
		e.handleAssistantDelta(ev.ItemID, ev.Delta)
	case *TranscriptDoneEvent:
		e.handleAssistantDone(ev.ItemID, ev.Transcript)
	case *TextDeltaEvent:
		e.handleAssistantDelta(ev.ItemID, ev.Delta)
	case *TextDoneEvent:
		e.handleAssistantDone(ev.ItemID, ev.Text)
	case *FunctionCallArgumentsDoneEvent:
		e.handleFunctionCall(ev)
	case *ServerEvent:
		logger.Debug("unhandled upstream event", "type", ev.Type)
	}
}

func (e *Engine) handleErrorEvent(ev *ErrorEvent) {
	logger.Error("upstream error",
		"type", ev.Error.Type,
		"code", ev.Error.Code,
		"message", ev.Error.Message)

	e.emit(Event{
		Type: EventError,
		Err:  fmt.Errorf("%w: %s", ErrProtocolError, ev.Error.Message),
	})
}

func (e *Engine) handleSpeechStarted(ev *SpeechStartedEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.state == StateSpeaking && !e.cfg.DisableInterruptions:
		e.interruptLocked()
		e.setStateLocked(StateListening)
	case e.state == StateSpeaking:
		// Interruptions disabled: record the detection, let the response
		// finish.
		logger.Debug("speech detected during response, interruptions disabled",
			"item_id", ev.ItemID)
	default:
		e.setStateLocked(StateListening)
	}
}

func (e *Engine) handleSpeechStopped(ev *SpeechStoppedEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateListening {
		e.setStateLocked(StateThinking)
	}

	// Utterance ended: reset commit bookkeeping for the next one. The
	// buffer clear itself is deferred to the next utterance's first frame.
	e.bufferedSamples = 0
	e.audioReceived = false
	e.clearPending = true
}

func (e *Engine) handleInputTranscription(ev *InputTranscriptionCompletedEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, text, ok := e.transcripts.finalize(SpeakerUser, ev.ItemID, ev.Transcript)
	if !ok {
		logger.Debug("empty user transcript discarded", "item_id", id)
		return
	}
	e.emitLocked(Event{
		Type:    EventTranscriptDone,
		Speaker: SpeakerUser,
		ItemID:  id,
		Text:    text,
	})
}

func (e *Engine) handleResponseCreated(ev *ResponseCreatedEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.activeResponses++
	if e.state == StateIdle || e.state == StateListening {
		e.setStateLocked(StateThinking)
	}
	e.emitLocked(Event{
		Type:       EventResponseCreated,
		ResponseID: ev.Response.ID,
		Status:     ev.Response.Status,
	})
}

func (e *Engine) handleResponseDone(ev *ResponseDoneEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.activeResponses > 0 {
		e.activeResponses--
	}
	e.cancelPending = false

	status := ev.Response.Status
	if status == "cancelled" {
		if e.state == StateSpeaking || e.state == StateThinking {
			e.setStateLocked(StateInterrupted)
		}
	} else if e.state == StateSpeaking || e.state == StateThinking {
		e.setStateLocked(StateIdle)
	}

	e.emitLocked(Event{
		Type:       EventResponseDone,
		ResponseID: ev.Response.ID,
		Status:     status,
	})
}

func (e *Engine) handleAudioDelta(ev *AudioDeltaEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Stale audio from a response being cancelled is dropped; playback
	// was already cleared.
	if e.cancelPending {
		return
	}

	pcm, err := base64.StdEncoding.DecodeString(ev.Delta)
	if err != nil {
		logger.ProtocolDrop("response.audio.delta", err)
		return
	}

	if e.state == StateThinking || e.state == StateInterrupted {
		e.setStateLocked(StateSpeaking)
	}

	if e.cfg.Sink != nil {
		e.cfg.Sink.Play(pcm)
	}
	e.emitLocked(Event{
		Type:       EventAudioDelta,
		Audio:      pcm,
		ItemID:     ev.ItemID,
		ResponseID: ev.ResponseID,
	})
}

func (e *Engine) handleAudioDone(ev *AudioDoneEvent) {
	e.emit(Event{
		Type:       EventAudioDone,
		ItemID:     ev.ItemID,
		ResponseID: ev.ResponseID,
	})
}

func (e *Engine) handleAssistantDelta(itemID, delta string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.transcripts.appendDelta(SpeakerAssistant, itemID, delta)
	e.emitLocked(Event{
		Type:    EventTranscriptDelta,
		Speaker: SpeakerAssistant,
		ItemID:  id,
		Text:    delta,
	})
}

func (e *Engine) handleAssistantDone(itemID, full string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, text, ok := e.transcripts.finalize(SpeakerAssistant, itemID, full)
	if !ok {
		logger.Debug("empty assistant transcript discarded", "item_id", id)
		return
	}
	e.emitLocked(Event{
		Type:    EventTranscriptDone,
		Speaker: SpeakerAssistant,
		ItemID:  id,
		Text:    text,
	})
}

func (e *Engine) handleFunctionCall(ev *FunctionCallArgumentsDoneEvent) {
	e.mu.Lock()
	call := ToolCall{
		CallID:    ev.CallID,
		Name:      ev.Name,
		Arguments: ev.Arguments,
		SessionID: e.sessionID,
	}
	e.emitLocked(Event{Type: EventFunctionCall, Call: &call})
	dispatcher := e.cfg.Dispatcher
	e.mu.Unlock()

	if dispatcher == nil {
		logger.Warn("function call received with no dispatcher configured",
			"tool", ev.Name, "call_id", ev.CallID)
		return
	}
	go e.dispatchTool(dispatcher, call)
}

// dispatchTool runs one tool call and reports its result upstream as a
// function_call_output item followed by an explicit response request;
// tool results do not auto-trigger generation. A dispatch error becomes a
// structured error payload, never a session failure.
func (e *Engine) dispatchTool(dispatcher ToolDispatcher, call ToolCall) {
	result, err := dispatcher.Dispatch(e.ctx, call)
	if err != nil {
		payload, merr := json.Marshal(map[string]string{"error": err.Error()})
		if merr != nil {
			payload = []byte(`{"error":"tool dispatch failed"}`)
		}
		result = string(payload)
	}

	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn == nil {
		return
	}

	item := ConversationItemCreateEvent{
		ClientEvent: e.clientEvent(TypeConversationItemCreate),
		Item: ConversationItem{
			Type:   "function_call_output",
			CallID: call.CallID,
			Output: result,
		},
	}
	if err := conn.Send(item); err != nil {
		logger.Error("failed to send tool result", "call_id", call.CallID, "error", err)
		return
	}
	if err := conn.Send(ResponseCreateEvent{ClientEvent: e.clientEvent(TypeResponseCreate)}); err != nil {
		logger.Error("failed to request response after tool result",
			"call_id", call.CallID, "error", err)
	}
}

// interruptLocked performs the barge-in sequence: stop playback, discard
// the assistant's active transcript, cancel the active response, and
// drop buffered-but-uncommitted input audio.
func (e *Engine) interruptLocked() {
	if e.cfg.Sink != nil {
		e.cfg.Sink.Stop()
	}
	if id, ok := e.transcripts.reset(SpeakerAssistant); ok {
		e.emitLocked(Event{Type: EventTranscriptReset, Speaker: SpeakerAssistant, ItemID: id})
	}
	e.cancelResponseLocked()

	e.bufferedSamples = 0
	e.audioReceived = false
	e.clearPending = true

	e.setStateLocked(StateInterrupted)
	e.emitLocked(Event{Type: EventInterruption})
}

// cancelResponseLocked issues at most one in-flight cancel, and only
// when a response is active.
func (e *Engine) cancelResponseLocked() {
	if e.activeResponses == 0 || e.cancelPending {
		return
	}
	if e.conn == nil {
		return
	}
	if err := e.conn.Send(ResponseCancelEvent{ClientEvent: e.clientEvent(TypeResponseCancel)}); err != nil {
		logger.Warn("response cancel failed", "error", err)
		return
	}
	e.cancelPending = true
}

func (e *Engine) setStateLocked(next AgentState) {
	if e.state == next {
		return
	}
	logger.Debug("agent state transition", "from", e.state.String(), "to", next.String())
	e.state = next
	e.emitLocked(Event{Type: EventAgentState, State: next})
}

// emit delivers one event to the feed and, when configured, the bus.
// Delivery is non-blocking: a full feed drops the event.
func (e *Engine) emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitLocked(ev)
}

func (e *Engine) emitLocked(ev Event) {
	if e.closed && ev.Type != EventDisconnected {
		return
	}
	ev.Timestamp = time.Now()

	select {
	case e.eventsCh <- ev:
	default:
		logger.Debug("event feed full, dropping", "type", ev.Type.String())
	}

	if e.cfg.Bus != nil {
		e.cfg.Bus.Publish(e.busEvent(ev))
	}
}

// busEvent maps a feed event onto the shared bus representation.
func (e *Engine) busEvent(ev Event) *events.Event {
	out := &events.Event{
		Type:      events.EventType(ev.Type.String()),
		Timestamp: ev.Timestamp,
		SessionID: e.sessionID,
	}

	switch ev.Type {
	case EventAgentState:
		out.Data = &events.AgentStateData{State: ev.State.String()}
	case EventAudioDelta:
		out.Data = &events.AudioDeltaData{ItemID: ev.ItemID, Bytes: len(ev.Audio)}
	case EventTranscriptDelta, EventTranscriptDone, EventTranscriptReset:
		out.Data = &events.TranscriptData{
			Speaker: string(ev.Speaker),
			ItemID:  ev.ItemID,
			Text:    ev.Text,
		}
	case EventResponseCreated, EventResponseDone:
		out.Data = &events.ResponseData{ResponseID: ev.ResponseID, Status: ev.Status}
	case EventFunctionCall:
		if ev.Call != nil {
			out.Data = &events.FunctionCallData{CallID: ev.Call.CallID, Name: ev.Call.Name}
		}
	case EventError:
		if ev.Err != nil {
			out.Data = &events.ErrorData{Message: ev.Err.Error()}
		}
	case EventDisconnected:
		data := &events.DisconnectedData{Intentional: e.intentional}
		if ev.Err != nil {
			data.Error = ev.Err.Error()
		}
		out.Data = data
	case EventReconnecting:
		out.Data = &events.ReconnectData{Attempt: ev.Attempt, MaxAttempts: reconnectMaxAttempts}
	}
	return out
}
