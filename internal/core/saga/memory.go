package saga

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
	"github.com/ibrahimkeyboad/gosettle/internal/core/messaging"
)

// MemoryJournal backs the in-memory stores. Writes go through a MemoryTx
// and only become visible on Commit.
type MemoryJournal struct {
	mu        sync.Mutex
	processed map[string]struct{}
	instances map[uuid.UUID]Instance
	outbox    []*memoryOutboxEntry
}

type memoryOutboxEntry struct {
	record OutboxRecord
	status OutboxStatus
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		processed: make(map[string]struct{}),
		instances: make(map[uuid.UUID]Instance),
	}
}

func (m *MemoryJournal) Begin() *MemoryTx {
	return &MemoryTx{
		parent:    m,
		processed: make(map[string]struct{}),
	}
}

func (m *MemoryJournal) Instance(_ context.Context, id uuid.UUID) (Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[id]
	if !ok {
		return Instance{}, fmt.Errorf("%w: saga %s", domain.ErrNotFound, id)
	}
	return inst, nil
}

// Pending lists queued envelopes that have not been sent yet.
func (m *MemoryJournal) Pending() []messaging.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []messaging.Envelope
	for _, e := range m.outbox {
		if e.status == OutboxPending {
			out = append(out, e.record.Envelope)
		}
	}
	return out
}

func (m *MemoryJournal) ClaimPending(_ context.Context, now time.Time, lease time.Duration, limit int) ([]OutboxRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var claimed []OutboxRecord
	for _, e := range m.outbox {
		if len(claimed) == limit {
			break
		}
		if e.status != OutboxPending || e.record.NextRunAt.After(now) {
			continue
		}
		e.record.NextRunAt = now.Add(lease)
		claimed = append(claimed, e.record)
	}
	return claimed, nil
}

func (m *MemoryJournal) MarkSent(_ context.Context, id uuid.UUID) error {
	return m.update(id, func(e *memoryOutboxEntry) { e.status = OutboxSent })
}

func (m *MemoryJournal) MarkRetry(_ context.Context, id uuid.UUID, nextRunAt time.Time) error {
	return m.update(id, func(e *memoryOutboxEntry) {
		e.record.Attempts++
		e.record.NextRunAt = nextRunAt
	})
}

func (m *MemoryJournal) MarkFailed(_ context.Context, id uuid.UUID) error {
	return m.update(id, func(e *memoryOutboxEntry) {
		e.record.Attempts++
		e.status = OutboxFailed
	})
}

func (m *MemoryJournal) update(id uuid.UUID, fn func(*memoryOutboxEntry)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.outbox {
		if e.record.Envelope.ID == id {
			fn(e)
			return nil
		}
	}
	return fmt.Errorf("%w: outbox message %s", domain.ErrNotFound, id)
}

// MemoryTx stages journal writes for one store transaction.
type MemoryTx struct {
	parent    *MemoryJournal
	processed map[string]struct{}
	enqueued  []messaging.Envelope
	recorded  []Instance
}

func (t *MemoryTx) MarkProcessed(_ context.Context, key string) (bool, error) {
	if _, ok := t.processed[key]; ok {
		return true, nil
	}
	t.parent.mu.Lock()
	_, ok := t.parent.processed[key]
	t.parent.mu.Unlock()
	if ok {
		return true, nil
	}
	t.processed[key] = struct{}{}
	return false, nil
}

func (t *MemoryTx) Enqueue(_ context.Context, env messaging.Envelope) error {
	t.enqueued = append(t.enqueued, env)
	return nil
}

func (t *MemoryTx) Record(_ context.Context, inst Instance) error {
	t.recorded = append(t.recorded, inst)
	return nil
}

func (t *MemoryTx) Commit() {
	m := t.parent
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range t.processed {
		m.processed[key] = struct{}{}
	}
	for _, env := range t.enqueued {
		m.outbox = append(m.outbox, &memoryOutboxEntry{
			record: OutboxRecord{Envelope: env},
			status: OutboxPending,
		})
	}
	for _, inst := range t.recorded {
		m.instances[inst.ID] = inst
	}
}
