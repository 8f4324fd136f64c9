package crossref

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// GraphStore is the graph-database half of the three-store write protocol.
// A production build would point this at Neo4j; that backend is out of
// scope here, so MemoryGraphStore below stands in for it end to end.
type GraphStore interface {
	Create(ctx context.Context, entityType, primaryID string) (graphID string, err error)
	Delete(ctx context.Context, graphID string) error
	Exists(ctx context.Context, graphID string) (bool, error)
}

// MemoryGraphStore is an in-process GraphStore good enough to exercise
// crossref's create/validate/orphan/cleanup protocol in tests and in a
// single-process deployment without a real graph database.
type MemoryGraphStore struct {
	mu    sync.Mutex
	nodes map[string]string // graphID -> primaryID, for Exists/Delete
}

// NewMemoryGraphStore builds an empty MemoryGraphStore.
func NewMemoryGraphStore() *MemoryGraphStore {
	return &MemoryGraphStore{nodes: make(map[string]string)}
}

func (s *MemoryGraphStore) Create(_ context.Context, _ string, primaryID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.nodes[id] = primaryID
	return id, nil
}

func (s *MemoryGraphStore) Delete(_ context.Context, graphID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, graphID)
	return nil
}

func (s *MemoryGraphStore) Exists(_ context.Context, graphID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.nodes[graphID]
	return ok, nil
}

// FailingGraphStore always fails Create; used to exercise Create's
// compensating-delete path in tests.
type FailingGraphStore struct{}

func (FailingGraphStore) Create(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("graph store unavailable")
}
func (FailingGraphStore) Delete(context.Context, string) error        { return nil }
func (FailingGraphStore) Exists(context.Context, string) (bool, error) { return false, nil }
