package stream

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/yourorg/convosync/internal/models"
	"github.com/yourorg/convosync/internal/store"
)

// Manager owns the live subscription for one conversation key. It is a
// single-slot resource: Open with a changed key tears the previous
// subscription down synchronously before establishing the new one, so two
// subscriptions for overlapping keys can never interleave batches into the
// same timeline.
type Manager struct {
	store store.RecordStore
	log   *zap.SugaredLogger

	onUpdate func([]models.Message)
	onError  func(error)

	mu       sync.Mutex
	key      models.ConversationKey
	sub      store.Subscription
	pumpDone chan struct{}
	gen      uint64
	timeline []models.Message
}

type Option func(*Manager)

// OnUpdate registers the callback invoked with the full replacement
// timeline after every snapshot batch.
func OnUpdate(fn func([]models.Message)) Option {
	return func(m *Manager) { m.onUpdate = fn }
}

// OnError registers the callback for stream-level failures. The manager
// does not retry; reconnection is the caller's decision.
func OnError(fn func(error)) Option {
	return func(m *Manager) { m.onError = fn }
}

func NewManager(rs store.RecordStore, log *zap.SugaredLogger, opts ...Option) *Manager {
	m := &Manager{store: rs, log: log}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open subscribes to the bidirectional message set for key. An existing
// subscription for a different key is closed first and its pump drained
// before the new one starts.
func (m *Manager) Open(ctx context.Context, key models.ConversationKey) error {
	if !key.Valid() {
		return store.ErrInvalidFilter
	}

	m.mu.Lock()
	if m.sub != nil && m.key == key {
		m.mu.Unlock()
		return nil
	}
	m.teardownLocked()
	gen := m.gen
	m.mu.Unlock()

	sub, err := m.store.Subscribe(ctx, store.PairFilter{Local: key.Local, Peer: key.Peer})
	if err != nil {
		return err
	}

	done := make(chan struct{})
	m.mu.Lock()
	if m.gen != gen {
		// a concurrent Open/Close won the slot
		m.mu.Unlock()
		_ = sub.Close()
		close(done)
		return nil
	}
	m.key = key
	m.sub = sub
	m.pumpDone = done
	m.gen++
	pumpGen := m.gen
	m.mu.Unlock()

	go m.pump(sub, pumpGen, done)
	return nil
}

// Close tears down the active subscription, waiting for its pump to stop.
func (m *Manager) Close() {
	m.mu.Lock()
	m.teardownLocked()
	m.mu.Unlock()
}

// Timeline returns the current ordered timeline.
func (m *Manager) Timeline() []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Message, len(m.timeline))
	copy(out, m.timeline)
	return out
}

// Key returns the currently open conversation key, zero when idle.
func (m *Manager) Key() models.ConversationKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.key
}

// teardownLocked closes the live subscription and waits for its pump to
// exit. Callers hold m.mu; the wait releases it so the pump can finish an
// in-flight batch.
func (m *Manager) teardownLocked() {
	if m.sub == nil {
		return
	}
	sub, done := m.sub, m.pumpDone
	m.sub = nil
	m.pumpDone = nil
	m.key = models.ConversationKey{}
	m.timeline = nil
	m.gen++

	m.mu.Unlock()
	_ = sub.Close()
	<-done
	m.mu.Lock()
}

func (m *Manager) pump(sub store.Subscription, gen uint64, done chan struct{}) {
	defer close(done)
	for {
		select {
		case batch, ok := <-sub.Batches():
			if !ok {
				// channel closed; a pending failure may have raced the close
				select {
				case err := <-sub.Err():
					m.reportError(err)
				default:
				}
				return
			}
			m.applyBatch(gen, batch)
		case err := <-sub.Err():
			m.reportError(err)
			return
		}
	}
}

func (m *Manager) reportError(err error) {
	if m.log != nil {
		m.log.Errorw("conversation stream failed", "error", err)
	}
	if m.onError != nil {
		m.onError(err)
	}
}

// applyBatch replaces the whole timeline with the normalized batch. No
// merge logic: the store delivers full snapshots. Malformed records are
// dropped, ordering is by createdAt ascending with batch arrival order
// breaking ties (stable sort).
func (m *Manager) applyBatch(gen uint64, batch []store.Record) {
	timeline := make([]models.Message, 0, len(batch))
	for _, rec := range batch {
		msg, ok := models.Normalize(rec.ID, rec.Fields)
		if !ok {
			continue
		}
		timeline = append(timeline, msg)
	}
	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].CreatedAt.Before(timeline[j].CreatedAt)
	})

	m.mu.Lock()
	if m.gen != gen {
		// stale batch from a superseded subscription
		m.mu.Unlock()
		return
	}
	m.timeline = timeline
	onUpdate := m.onUpdate
	m.mu.Unlock()

	if onUpdate != nil {
		onUpdate(timeline)
	}
}
