package peer

import (
	"context"
	"fmt"

	"github.com/canonical/grafana-k8s-operator/domain"
	"github.com/canonical/grafana-k8s-operator/domain/model"
	"github.com/canonical/grafana-k8s-operator/internal/logging"
	"github.com/canonical/grafana-k8s-operator/internal/secrets"
)

const keyAdminPassword = "credentials/admin-password"

// EnsureAdminPassword returns the group-wide admin credential. The
// leader generates it once and publishes it; every later call, on any
// unit, returns the same value. Non-leaders get ErrCredentialNotReady
// until the leader has published.
func EnsureAdminPassword(ctx context.Context, store domain.PeerStore, isLeader bool) (string, error) {
	entry, err := store.Get(ctx, keyAdminPassword)
	if err == nil {
		return entry.Value, nil
	}
	if err != model.ErrPeerKeyNotFound {
		return "", fmt.Errorf("read admin credential: %w", err)
	}
	if !isLeader {
		return "", model.ErrCredentialNotReady
	}

	password, err := secrets.GeneratePassword()
	if err != nil {
		return "", fmt.Errorf("generate admin credential: %w", err)
	}
	if _, err := store.Put(ctx, keyAdminPassword, password); err != nil {
		return "", fmt.Errorf("publish admin credential: %w", err)
	}
	logging.FromContext(ctx).Info(ctx, "admin credential generated")
	return password, nil
}
