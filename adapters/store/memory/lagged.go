// Package memory provides a peer store wrapper with deferred visibility.
// Writes go to the backing store immediately but readers keep seeing the
// snapshot taken at the last Sync. Tests use it to exercise the
// eventual-consistency behavior of real deployments, where a unit can
// observe peer state that is one or more rounds stale.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/canonical/grafana-k8s-operator/domain"
	"github.com/canonical/grafana-k8s-operator/domain/model"
)

// Lagged wraps a peer store and serves reads from a frozen snapshot.
type Lagged struct {
	backing domain.PeerStore

	mu   sync.RWMutex
	view map[string]domain.PeerEntry
}

// NewLagged returns a wrapper whose initial read view is empty.
func NewLagged(backing domain.PeerStore) *Lagged {
	return &Lagged{backing: backing, view: make(map[string]domain.PeerEntry)}
}

// Sync advances the read view to the backing store's current state.
func (l *Lagged) Sync(ctx context.Context) error {
	entries, err := l.backing.List(ctx, "")
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.view = entries
	return nil
}

func (l *Lagged) Get(_ context.Context, key string) (*domain.PeerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.view[key]
	if !ok {
		return nil, model.ErrPeerKeyNotFound
	}
	cp := e
	return &cp, nil
}

func (l *Lagged) Put(ctx context.Context, key, value string) (int64, error) {
	return l.backing.Put(ctx, key, value)
}

func (l *Lagged) List(_ context.Context, prefix string) (map[string]domain.PeerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]domain.PeerEntry)
	for k, e := range l.view {
		if strings.HasPrefix(k, prefix) {
			out[k] = e
		}
	}
	return out, nil
}

func (l *Lagged) Delete(ctx context.Context, key string) error {
	return l.backing.Delete(ctx, key)
}

var _ domain.PeerStore = (*Lagged)(nil)
