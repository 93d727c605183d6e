// Package inmem provides a process-local peer store, used for
// single-unit deployments and tests.
package inmem

import (
	"context"
	"strings"
	"sync"

	"github.com/canonical/grafana-k8s-operator/domain"
	"github.com/canonical/grafana-k8s-operator/domain/model"
)

// Store is a thread-safe in-memory peer store with per-key revisions.
type Store struct {
	mu    sync.RWMutex
	items map[string]domain.PeerEntry
}

func NewStore() *Store {
	return &Store{items: make(map[string]domain.PeerEntry)}
}

func (s *Store) Get(_ context.Context, key string) (*domain.PeerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[key]
	if !ok {
		return nil, model.ErrPeerKeyNotFound
	}
	cp := e
	return &cp, nil
}

func (s *Store) Put(_ context.Context, key, value string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rev := s.items[key].Revision + 1
	s.items[key] = domain.PeerEntry{Value: value, Revision: rev}
	return rev, nil
}

func (s *Store) List(_ context.Context, prefix string) (map[string]domain.PeerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.PeerEntry)
	for k, e := range s.items {
		if strings.HasPrefix(k, prefix) {
			out[k] = e
		}
	}
	return out, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

var _ domain.PeerStore = (*Store)(nil)
