package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Wire field names and kind values for the persisted message record.
const (
	FieldSender    = "sender"
	FieldRecipient = "recipient"
	FieldType      = "type"
	FieldText      = "messageText"
	FieldAttachURL = "attachUrl"
	FieldTimestamp = "timestamp"

	wireText  = "0"
	wireImage = "1"
)

// Kind is the closed message kind; the string-typed wire values exist only
// at the serialization boundary.
type Kind int

const (
	KindText Kind = iota
	KindImage
)

func (k Kind) Wire() string {
	if k == KindImage {
		return wireImage
	}
	return wireText
}

// KindFromWire maps a wire type string to a Kind. Unrecognized or missing
// values fall back to text.
func KindFromWire(s string) Kind {
	if s == wireImage {
		return KindImage
	}
	return KindText
}

type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Kind      Kind      `json:"kind"`
	Body      string    `json:"body"`
	AttachURL string    `json:"attach_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Fields encodes the message into the wire field-bag appended to the store.
// A zero CreatedAt is omitted so the store assigns its own timestamp.
func (m Message) Fields() map[string]any {
	f := map[string]any{
		FieldSender:    m.Sender,
		FieldRecipient: m.Recipient,
		FieldType:      m.Kind.Wire(),
		FieldText:      m.Body,
		FieldAttachURL: m.AttachURL,
	}
	if !m.CreatedAt.IsZero() {
		f[FieldTimestamp] = m.CreatedAt.UTC()
	}
	return f
}

// Normalize converts a raw record into a typed Message with safe defaults.
// Records without a sender or recipient are dropped: the second return is
// false and the message must not be rendered.
func Normalize(id string, fields map[string]any) (Message, bool) {
	sender := stringField(fields, FieldSender)
	recipient := stringField(fields, FieldRecipient)
	if sender == "" || recipient == "" {
		return Message{}, false
	}

	m := Message{
		ID:        id,
		Sender:    sender,
		Recipient: recipient,
		Kind:      KindFromWire(stringField(fields, FieldType)),
		Body:      stringField(fields, FieldText),
		AttachURL: stringField(fields, FieldAttachURL),
		CreatedAt: timeField(fields, FieldTimestamp),
	}
	if m.CreatedAt.IsZero() {
		// Server timestamp not assigned yet; display fallback only, never
		// used as an ordering key before arrival.
		m.CreatedAt = time.Now().UTC()
	}
	return m, true
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func timeField(fields map[string]any, key string) time.Time {
	switch v := fields[key].(type) {
	case time.Time:
		return v.UTC()
	case primitive.DateTime:
		return v.Time().UTC()
	case int64:
		return time.UnixMilli(v).UTC()
	default:
		return time.Time{}
	}
}
