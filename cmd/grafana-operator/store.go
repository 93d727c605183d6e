package main

import (
	"fmt"
	"strings"

	"github.com/canonical/grafana-k8s-operator/adapters/store/inmem"
	"github.com/canonical/grafana-k8s-operator/adapters/store/rdb"
	"github.com/canonical/grafana-k8s-operator/domain"
)

// openPeerStore builds the peer store named by the config's
// peer_store_url (memory: | sqlite:/path/to.db).
func openPeerStore(storeURL string) (domain.PeerStore, error) {
	switch {
	case storeURL == "memory:" || storeURL == "memory":
		return inmem.NewStore(), nil
	case strings.HasPrefix(storeURL, "sqlite"):
		db, err := rdb.OpenFromURL(storeURL)
		if err != nil {
			return nil, err
		}
		if err := rdb.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("migrate peer store: %w", err)
		}
		return rdb.NewPeerStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported peer store url: %s", storeURL)
	}
}
