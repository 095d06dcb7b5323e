package realtime

import "strings"

// Fallback item identifiers used when the upstream omits one and no
// buffer is active for that speaker.
const (
	sentinelUserItemID      = "user_item_pending"
	sentinelAssistantItemID = "assistant_item_pending"
)

// transcriptBuffers accumulates per-speaker, per-utterance transcript text
// keyed by item identifier. At most one buffer is active per speaker; a
// delta for a different item supersedes and discards the previous buffer,
// never merges into it. Not safe for concurrent use; the engine's handler
// goroutine is the only caller.
type transcriptBuffers struct {
	active map[Speaker]string
	text   map[Speaker]*strings.Builder
}

func newTranscriptBuffers() *transcriptBuffers {
	return &transcriptBuffers{
		active: make(map[Speaker]string),
		text:   make(map[Speaker]*strings.Builder),
	}
}

// resolveItemID picks the effective item identifier for an event: the
// event's own ID, else the speaker's active buffer, else the speaker's
// sentinel.
func (t *transcriptBuffers) resolveItemID(speaker Speaker, itemID string) string {
	if itemID != "" {
		return itemID
	}
	if active := t.active[speaker]; active != "" {
		return active
	}
	if speaker == SpeakerAssistant {
		return sentinelAssistantItemID
	}
	return sentinelUserItemID
}

// appendDelta adds delta text to the speaker's buffer, starting a new
// buffer when the item changes. Returns the resolved item identifier.
func (t *transcriptBuffers) appendDelta(speaker Speaker, itemID, delta string) string {
	id := t.resolveItemID(speaker, itemID)

	if t.active[speaker] != id {
		t.active[speaker] = id
		t.text[speaker] = &strings.Builder{}
	}
	if t.text[speaker] == nil {
		t.text[speaker] = &strings.Builder{}
	}
	t.text[speaker].WriteString(delta)
	return id
}

// finalize flushes the speaker's buffer into a finalized transcript. The
// upstream's full text wins over the accumulated deltas when present.
// Whitespace-only transcripts are discarded: ok is false and no message
// should be produced.
func (t *transcriptBuffers) finalize(speaker Speaker, itemID, full string) (id, text string, ok bool) {
	id = t.resolveItemID(speaker, itemID)

	text = full
	if text == "" && t.text[speaker] != nil {
		text = t.text[speaker].String()
	}

	delete(t.active, speaker)
	delete(t.text, speaker)

	if strings.TrimSpace(text) == "" {
		return id, "", false
	}
	return id, text, true
}

// reset discards the speaker's active buffer, returning the discarded
// item identifier when a buffer existed.
func (t *transcriptBuffers) reset(speaker Speaker) (string, bool) {
	id, existed := t.active[speaker]
	delete(t.active, speaker)
	delete(t.text, speaker)
	return id, existed
}

// resetAll discards every active buffer.
func (t *transcriptBuffers) resetAll() {
	t.active = make(map[Speaker]string)
	t.text = make(map[Speaker]*strings.Builder)
}
