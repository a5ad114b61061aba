// Package docstore is the load/save boundary for patched documents.
//
// Stores never interpret document content. Filesystem errors are returned
// wrapped, so callers can still test them with errors.Is(err, fs.ErrNotExist)
// or errors.Is(err, fs.ErrPermission).
package docstore

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"sync"
)

// Store loads and saves whole documents by locator.
type Store interface {
	Load(ctx context.Context, locator string) (string, error)
	Save(ctx context.Context, locator string, doc string) error
}

// MemStore is an in-memory Store. It is safe for concurrent use.
type MemStore struct {
	mu    sync.Mutex
	docs  map[string]string
	saves int
}

// NewMemStore creates a MemStore seeded with the given documents.
func NewMemStore(docs map[string]string) *MemStore {
	m := &MemStore{docs: make(map[string]string, len(docs))}
	for k, v := range docs {
		m.docs[k] = v
	}
	return m
}

// Load returns the document stored under locator.
func (m *MemStore) Load(ctx context.Context, locator string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[locator]
	if !ok {
		return "", fmt.Errorf("load %s: %w", locator, fs.ErrNotExist)
	}
	return doc, nil
}

// Save stores doc under locator.
func (m *MemStore) Save(ctx context.Context, locator string, doc string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[locator] = doc
	m.saves++
	return nil
}

// Saves returns how many times Save has succeeded.
func (m *MemStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Locators returns the stored locators in sorted order.
func (m *MemStore) Locators() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.docs))
	for k := range m.docs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
