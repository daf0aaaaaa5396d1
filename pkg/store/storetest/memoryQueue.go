// Package storetest provides an in-memory queue repository with the same
// claim semantics as the Postgres one.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zoff-tech/reviewbot/pkg/store"
	"github.com/zoff-tech/reviewbot/schema"
)

type MemoryQueue[E schema.Entry] struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]E
	keys  map[string]uuid.UUID
	clone func(E) E

	// Hooks run without the lock held.
	BeforeClaim func(id uuid.UUID)
	BeforeSave  func(entry E) error

	FindClaimableErr error
	ClaimCalls       int
	SaveCalls        int
}

var _ store.QueueRepository[*schema.OutboxEntry] = (*MemoryQueue[*schema.OutboxEntry])(nil)

func NewMemoryQueue[E schema.Entry](clone func(E) E) *MemoryQueue[E] {
	return &MemoryQueue[E]{
		rows:  make(map[uuid.UUID]E),
		keys:  make(map[string]uuid.UUID),
		clone: clone,
	}
}

func NewOutboxQueue() *MemoryQueue[*schema.OutboxEntry] {
	return NewMemoryQueue(func(e *schema.OutboxEntry) *schema.OutboxEntry {
		c := *e
		return &c
	})
}

func NewInboxQueue() *MemoryQueue[*schema.InboxEntry] {
	return NewMemoryQueue(func(e *schema.InboxEntry) *schema.InboxEntry {
		c := *e
		return &c
	})
}

func (m *MemoryQueue[E]) Insert(_ context.Context, entry E) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := entry.State()
	if _, ok := m.keys[d.IdempotencyKey]; ok {
		return false, nil
	}
	m.keys[d.IdempotencyKey] = d.ID
	m.rows[d.ID] = m.clone(entry)
	return true, nil
}

func (m *MemoryQueue[E]) FindClaimable(_ context.Context, limit int, staleBefore time.Time) ([]E, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FindClaimableErr != nil {
		return nil, m.FindClaimableErr
	}

	var out []E
	for _, e := range m.rows {
		if claimable(e.State(), staleBefore) {
			out = append(out, m.clone(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].State().CreatedAt.Before(out[j].State().CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryQueue[E]) Claim(_ context.Context, id uuid.UUID, now, staleBefore time.Time) (bool, error) {
	if m.BeforeClaim != nil {
		m.BeforeClaim(id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.ClaimCalls++
	e, ok := m.rows[id]
	if !ok || !claimable(e.State(), staleBefore) {
		return false, nil
	}
	d := e.State()
	d.Status = schema.StatusProcessing
	d.ProcessingAttempt++
	d.ProcessingStartedAt = &now
	d.UpdatedAt = now
	return true, nil
}

func (m *MemoryQueue[E]) FindByID(_ context.Context, id uuid.UUID) (E, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.rows[id]
	if !ok {
		var zero E
		return zero, store.ErrNotFound
	}
	return m.clone(e), nil
}

func (m *MemoryQueue[E]) Save(_ context.Context, entry E) error {
	if m.BeforeSave != nil {
		if err := m.BeforeSave(entry); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveCalls++
	d := entry.State()
	current, ok := m.rows[d.ID]
	if !ok || current.State().Status != schema.StatusProcessing || current.State().ProcessingAttempt != d.ProcessingAttempt {
		return store.ErrClaimLost
	}
	m.rows[d.ID] = m.clone(entry)
	return nil
}

func (m *MemoryQueue[E]) RecoverStale(_ context.Context, staleBefore, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, e := range m.rows {
		d := e.State()
		if d.Status == schema.StatusProcessing && d.ProcessingStartedAt != nil && d.ProcessingStartedAt.Before(staleBefore) {
			d.Status = schema.StatusRetryPending
			d.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// Put stores entry as is, bypassing idempotency checks.
func (m *MemoryQueue[E]) Put(entry E) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := entry.State()
	m.keys[d.IdempotencyKey] = d.ID
	m.rows[d.ID] = m.clone(entry)
}

// Get returns a copy of the stored entry.
func (m *MemoryQueue[E]) Get(id uuid.UUID) (E, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok {
		return e, false
	}
	return m.clone(e), true
}

// All returns copies of every stored entry, oldest first.
func (m *MemoryQueue[E]) All() []E {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]E, 0, len(m.rows))
	for _, e := range m.rows {
		out = append(out, m.clone(e))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].State().CreatedAt.Before(out[j].State().CreatedAt)
	})
	return out
}

func claimable(d *schema.Delivery, staleBefore time.Time) bool {
	if d.Status.IsClaimable() {
		return true
	}
	return d.Status == schema.StatusProcessing && d.ProcessingStartedAt != nil && d.ProcessingStartedAt.Before(staleBefore)
}
