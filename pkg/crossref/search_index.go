package crossref

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SearchIndex is the full-text/search half of the three-store write
// protocol. A production build would point this at Elasticsearch; that
// backend is out of scope here, so MemorySearchIndex stands in for it.
type SearchIndex interface {
	Create(ctx context.Context, entityType, primaryID string) (searchID string, err error)
	Delete(ctx context.Context, searchID string) error
	Exists(ctx context.Context, searchID string) (bool, error)
}

// MemorySearchIndex is an in-process SearchIndex good enough to exercise
// crossref's protocol without a real search cluster.
type MemorySearchIndex struct {
	mu      sync.Mutex
	entries map[string]string // searchID -> primaryID
}

// NewMemorySearchIndex builds an empty MemorySearchIndex.
func NewMemorySearchIndex() *MemorySearchIndex {
	return &MemorySearchIndex{entries: make(map[string]string)}
}

func (s *MemorySearchIndex) Create(_ context.Context, _ string, primaryID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.entries[id] = primaryID
	return id, nil
}

func (s *MemorySearchIndex) Delete(_ context.Context, searchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, searchID)
	return nil
}

func (s *MemorySearchIndex) Exists(_ context.Context, searchID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[searchID]
	return ok, nil
}

// FailingSearchIndex always fails Create; used to exercise Create's
// compensating-delete path (graph id already allocated, search fails) in
// tests.
type FailingSearchIndex struct{}

func (FailingSearchIndex) Create(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("search index unavailable")
}
func (FailingSearchIndex) Delete(context.Context, string) error        { return nil }
func (FailingSearchIndex) Exists(context.Context, string) (bool, error) { return false, nil }
