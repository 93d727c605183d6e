package peer

import (
	"context"
	"testing"

	"github.com/canonical/grafana-k8s-operator/adapters/store/inmem"
	"github.com/canonical/grafana-k8s-operator/domain/model"
)

func TestEnsureAdminPassword(t *testing.T) {
	ctx := context.Background()
	store := inmem.NewStore()

	if _, err := EnsureAdminPassword(ctx, store, false); err != model.ErrCredentialNotReady {
		t.Fatalf("non-leader before generation: err = %v", err)
	}

	first, err := EnsureAdminPassword(ctx, store, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 12 {
		t.Fatalf("password length = %d, want 12", len(first))
	}

	second, err := EnsureAdminPassword(ctx, store, true)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Fatal("credential must be generated once and reused")
	}

	replica, err := EnsureAdminPassword(ctx, store, false)
	if err != nil {
		t.Fatal(err)
	}
	if replica != first {
		t.Fatal("all units must see the same credential")
	}
}
