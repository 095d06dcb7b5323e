package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranscriptBuffers_SentinelWhenNoItemID(t *testing.T) {
	b := newTranscriptBuffers()

	id := b.appendDelta(SpeakerAssistant, "", "Hello")
	assert.Equal(t, sentinelAssistantItemID, id)

	id = b.appendDelta(SpeakerUser, "", "hi")
	assert.Equal(t, sentinelUserItemID, id)
}

func TestTranscriptBuffers_ActiveItemIDReused(t *testing.T) {
	b := newTranscriptBuffers()

	b.appendDelta(SpeakerAssistant, "item_1", "Hello ")
	id := b.appendDelta(SpeakerAssistant, "", "world")
	assert.Equal(t, "item_1", id)

	id, text, ok := b.finalize(SpeakerAssistant, "", "")
	assert.True(t, ok)
	assert.Equal(t, "item_1", id)
	assert.Equal(t, "Hello world", text)
}

func TestTranscriptBuffers_ItemChangeSupersedes(t *testing.T) {
	b := newTranscriptBuffers()

	b.appendDelta(SpeakerAssistant, "item_1", "first")
	b.appendDelta(SpeakerAssistant, "item_2", "second")

	_, text, ok := b.finalize(SpeakerAssistant, "item_2", "")
	assert.True(t, ok)
	assert.Equal(t, "second", text)
}

func TestTranscriptBuffers_FullTextWins(t *testing.T) {
	b := newTranscriptBuffers()

	b.appendDelta(SpeakerAssistant, "item_1", "partial")
	_, text, ok := b.finalize(SpeakerAssistant, "item_1", "the complete answer")
	assert.True(t, ok)
	assert.Equal(t, "the complete answer", text)
}

func TestTranscriptBuffers_WhitespaceOnlyDiscarded(t *testing.T) {
	b := newTranscriptBuffers()

	_, _, ok := b.finalize(SpeakerUser, "item_1", "   \n\t ")
	assert.False(t, ok)

	b.appendDelta(SpeakerAssistant, "item_2", "  ")
	_, _, ok = b.finalize(SpeakerAssistant, "item_2", "")
	assert.False(t, ok)
}

func TestTranscriptBuffers_Reset(t *testing.T) {
	b := newTranscriptBuffers()

	_, existed := b.reset(SpeakerAssistant)
	assert.False(t, existed)

	b.appendDelta(SpeakerAssistant, "item_1", "partial")
	id, existed := b.reset(SpeakerAssistant)
	assert.True(t, existed)
	assert.Equal(t, "item_1", id)

	// A finalize after reset has nothing buffered.
	_, _, ok := b.finalize(SpeakerAssistant, "item_1", "")
	assert.False(t, ok)
}

func TestTranscriptBuffers_SpeakersIndependent(t *testing.T) {
	b := newTranscriptBuffers()

	b.appendDelta(SpeakerAssistant, "a_1", "assistant text")
	b.appendDelta(SpeakerUser, "u_1", "user text")

	_, text, ok := b.finalize(SpeakerUser, "u_1", "")
	assert.True(t, ok)
	assert.Equal(t, "user text", text)

	_, text, ok = b.finalize(SpeakerAssistant, "a_1", "")
	assert.True(t, ok)
	assert.Equal(t, "assistant text", text)
}
