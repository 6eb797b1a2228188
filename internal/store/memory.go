package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yourorg/convosync/internal/models"
)

// MemoryStore is an in-process RecordStore used by tests and local runs.
// It mirrors the hosted store's semantics: server-assigned timestamps,
// full-snapshot delivery on every change, idempotent delete.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
	subs    map[*memorySub]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[*memorySub]struct{})}
}

type memorySub struct {
	store   *MemoryStore
	filter  PairFilter
	batches chan []Record
	errs    chan error
	once    sync.Once
}

func (s *memorySub) Batches() <-chan []Record { return s.batches }
func (s *memorySub) Err() <-chan error        { return s.errs }

// Close unregisters the subscription and closes its batch channel. Both
// delivery and close happen under the store mutex, so no send can race the
// close.
func (s *memorySub) Close() error {
	s.once.Do(func() {
		s.store.mu.Lock()
		delete(s.store.subs, s)
		close(s.batches)
		s.store.mu.Unlock()
	})
	return nil
}

func (ms *MemoryStore) Subscribe(ctx context.Context, filter PairFilter) (Subscription, error) {
	if !filter.Valid() {
		return nil, ErrInvalidFilter
	}
	sub := &memorySub{
		store:   ms,
		filter:  filter,
		batches: make(chan []Record, 64),
		errs:    make(chan error, 1),
	}
	ms.mu.Lock()
	ms.subs[sub] = struct{}{}
	sub.deliver(ms.snapshotLocked(filter))
	ms.mu.Unlock()

	return sub, nil
}

func (ms *MemoryStore) Append(ctx context.Context, fields map[string]any) (string, error) {
	cp := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		cp[k] = v
	}
	if _, ok := cp[models.FieldTimestamp]; !ok {
		cp[models.FieldTimestamp] = time.Now().UTC()
	}
	rec := Record{ID: uuid.NewString(), Fields: cp}

	ms.mu.Lock()
	ms.records = append(ms.records, rec)
	ms.notifyLocked()
	ms.mu.Unlock()
	return rec.ID, nil
}

func (ms *MemoryStore) Delete(ctx context.Context, id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for i, r := range ms.records {
		if r.ID == id {
			ms.records = append(ms.records[:i], ms.records[i+1:]...)
			ms.notifyLocked()
			return nil
		}
	}
	// missing id: idempotent
	return nil
}

func (ms *MemoryStore) Get(ctx context.Context, id string) (map[string]any, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for _, r := range ms.records {
		if r.ID == id {
			cp := make(map[string]any, len(r.Fields))
			for k, v := range r.Fields {
				cp[k] = v
			}
			return cp, nil
		}
	}
	return nil, ErrNotFound
}

// snapshotLocked returns all matching records ordered by timestamp
// ascending; insertion order breaks ties.
func (ms *MemoryStore) snapshotLocked(filter PairFilter) []Record {
	var out []Record
	for _, r := range ms.records {
		if filter.Matches(r.Fields) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, _ := out[i].Fields[models.FieldTimestamp].(time.Time)
		tj, _ := out[j].Fields[models.FieldTimestamp].(time.Time)
		return ti.Before(tj)
	})
	return out
}

func (ms *MemoryStore) notifyLocked() {
	for sub := range ms.subs {
		sub.deliver(ms.snapshotLocked(sub.filter))
	}
}

// deliver is always called with the store mutex held.
func (s *memorySub) deliver(batch []Record) {
	select {
	case s.batches <- batch:
	default:
		// slow consumer: drop the oldest snapshot, the new one supersedes it
		select {
		case <-s.batches:
		default:
		}
		select {
		case s.batches <- batch:
		default:
		}
	}
}
