package database

import (
	"bytes"
	"context"
	"slices"
	"sync"
	"time"
)

// Memory is an in-process Repository. The zero value is not usable; call NewMemory.
type Memory struct {
	mu   sync.RWMutex
	docs map[Kind]map[string]Document
	seq  map[Kind]map[string]uint64
	next uint64
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		docs: make(map[Kind]map[string]Document),
		seq:  make(map[Kind]map[string]uint64),
		now:  time.Now,
	}
}

func (m *Memory) Put(_ context.Context, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.docs[doc.Kind] == nil {
		m.docs[doc.Kind] = make(map[string]Document)
		m.seq[doc.Kind] = make(map[string]uint64)
	}

	now := m.now().UTC()
	if existing, ok := m.docs[doc.Kind][doc.ID]; ok {
		doc.CreatedAt = existing.CreatedAt
	} else {
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
		m.next++
		m.seq[doc.Kind][doc.ID] = m.next
	}
	doc.UpdatedAt = now
	doc.Data = bytes.Clone(doc.Data)

	m.docs[doc.Kind][doc.ID] = doc
	return nil
}

func (m *Memory) Get(_ context.Context, kind Kind, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[kind][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	doc.Data = bytes.Clone(doc.Data)
	return doc, nil
}

func (m *Memory) List(_ context.Context, kind Kind) ([]Document, error) {
	return m.list(kind, func(Document) bool { return true }), nil
}

func (m *Memory) ListByParent(_ context.Context, kind Kind, parentID string) ([]Document, error) {
	return m.list(kind, func(d Document) bool { return d.ParentID == parentID }), nil
}

func (m *Memory) list(kind Kind, keep func(Document) bool) []Document {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Document, 0, len(m.docs[kind]))
	for _, doc := range m.docs[kind] {
		if keep(doc) {
			doc.Data = bytes.Clone(doc.Data)
			out = append(out, doc)
		}
	}

	// newest first; insertion order breaks ties
	seq := m.seq[kind]
	slices.SortFunc(out, func(a, b Document) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case seq[a.ID] > seq[b.ID]:
			return -1
		case seq[a.ID] < seq[b.ID]:
			return 1
		}
		return 0
	})
	return out
}

func (m *Memory) Delete(_ context.Context, kind Kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[kind][id]; !ok {
		return ErrNotFound
	}
	delete(m.docs[kind], id)
	delete(m.seq[kind], id)
	return nil
}

func (m *Memory) Count(_ context.Context, kind Kind) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs[kind]), nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() {}
