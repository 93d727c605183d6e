package domain

import (
	"context"
)

// PeerEntry is one versioned value in the peer store. Revision increases
// on every write of the key and lets readers detect staleness.
type PeerEntry struct {
	Value    string
	Revision int64
}

// PeerStore is the shared, eventually-consistent key/value namespace
// visible to all units of the deployment group. Readers may observe
// snapshots that are one or more rounds stale; writers own disjoint key
// ranges (only the leader writes primary/* keys, each unit writes its own
// units/<id>/* keys).
type PeerStore interface {
	// Get returns the latest visible entry, or model.ErrPeerKeyNotFound.
	Get(ctx context.Context, key string) (*PeerEntry, error)

	// Put stores value under key and returns the new revision.
	Put(ctx context.Context, key, value string) (int64, error)

	// List returns all visible entries whose key starts with prefix.
	List(ctx context.Context, prefix string) (map[string]PeerEntry, error)

	// Delete removes a key; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
