package store

import (
	"context"
	"errors"

	"github.com/yourorg/convosync/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidFilter = errors.New("invalid pair filter")
	ErrClosed        = errors.New("subscription closed")
)

// Record is a raw store document: an opaque id plus an untyped field-bag.
type Record struct {
	ID     string
	Fields map[string]any
}

// Subscription is a live view over all records matching a pair filter. The
// store delivers full-snapshot batches, not deltas: each batch is the
// authoritative, timestamp-ordered set of matching records at that moment.
type Subscription interface {
	// Batches yields snapshot batches until the subscription is closed.
	Batches() <-chan []Record
	// Err yields stream-level failures. The subscription does not retry;
	// after an error no further batches are delivered.
	Err() <-chan error
	Close() error
}

// RecordStore is the shared append-only message record store.
type RecordStore interface {
	Subscribe(ctx context.Context, filter PairFilter) (Subscription, error)
	// Append writes a record and returns its assigned id. The store assigns
	// the timestamp field when the caller left it unset.
	Append(ctx context.Context, fields map[string]any) (string, error)
	// Delete removes a record by id. Deleting a missing id is a silent
	// success.
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (map[string]any, error)
}

// PairFilter selects the bidirectional message set for one conversation:
// (sender=local AND recipient=peer) OR (sender=peer AND recipient=local).
// A one-directional filter would silently drop half the conversation.
type PairFilter struct {
	Local string
	Peer  string
}

func (f PairFilter) Valid() bool {
	return f.Local != "" && f.Peer != "" && f.Local != f.Peer
}

func (f PairFilter) Key() models.ConversationKey {
	return models.ConversationKey{Local: f.Local, Peer: f.Peer}
}

// Matches evaluates the filter against a raw field-bag.
func (f PairFilter) Matches(fields map[string]any) bool {
	sender, _ := fields[models.FieldSender].(string)
	recipient, _ := fields[models.FieldRecipient].(string)
	return (sender == f.Local && recipient == f.Peer) ||
		(sender == f.Peer && recipient == f.Local)
}
