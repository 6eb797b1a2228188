package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Defaults(t *testing.T) {
	m, ok := Normalize("abc", map[string]any{
		FieldSender:    "p1",
		FieldRecipient: "p2",
	})
	require.True(t, ok)

	assert.Equal(t, "abc", m.ID)
	assert.Equal(t, KindText, m.Kind)
	assert.Equal(t, "", m.Body)
	assert.Equal(t, "", m.AttachURL)
	// no server timestamp yet: display fallback is "now"
	assert.WithinDuration(t, time.Now().UTC(), m.CreatedAt, 2*time.Second)
}

func TestNormalize_DropsMissingParticipants(t *testing.T) {
	_, ok := Normalize("a", map[string]any{FieldSender: "p1"})
	assert.False(t, ok)

	_, ok = Normalize("b", map[string]any{FieldRecipient: "p2"})
	assert.False(t, ok)

	_, ok = Normalize("c", map[string]any{FieldText: "orphan"})
	assert.False(t, ok)
}

func TestNormalize_Image(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m, ok := Normalize("x", map[string]any{
		FieldSender:    "p1",
		FieldRecipient: "p2",
		FieldType:      "1",
		FieldAttachURL: "https://store/x.png",
		FieldTimestamp: ts,
	})
	require.True(t, ok)
	assert.Equal(t, KindImage, m.Kind)
	assert.Equal(t, "https://store/x.png", m.AttachURL)
	assert.Equal(t, ts, m.CreatedAt)
}

func TestKindFromWire_UnrecognizedFallsBackToText(t *testing.T) {
	assert.Equal(t, KindText, KindFromWire(""))
	assert.Equal(t, KindText, KindFromWire("7"))
	assert.Equal(t, KindImage, KindFromWire("1"))
}

func TestMessageFields_Wire(t *testing.T) {
	f := Message{Sender: "p1", Recipient: "p2", Kind: KindImage, AttachURL: "https://store/x.png"}.Fields()
	assert.Equal(t, "1", f[FieldType])
	assert.Equal(t, "", f[FieldText])
	assert.Equal(t, "https://store/x.png", f[FieldAttachURL])
	// zero CreatedAt is omitted so the store assigns the timestamp
	_, hasTS := f[FieldTimestamp]
	assert.False(t, hasTS)
}

func TestConversationKey_Matches(t *testing.T) {
	key := ConversationKey{Local: "a", Peer: "b"}
	assert.True(t, key.Matches("a", "b"))
	assert.True(t, key.Matches("b", "a"))
	assert.False(t, key.Matches("a", "c"))
	assert.False(t, key.Matches("c", "b"))
	assert.False(t, key.Matches("c", "d"))
}

func TestConversationKey_Valid(t *testing.T) {
	assert.True(t, ConversationKey{Local: "a", Peer: "b"}.Valid())
	assert.False(t, ConversationKey{Local: "a"}.Valid())
	assert.False(t, ConversationKey{Peer: "b"}.Valid())
	assert.False(t, ConversationKey{Local: "a", Peer: "a"}.Valid())
}
