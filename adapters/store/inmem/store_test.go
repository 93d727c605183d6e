package inmem

import (
	"context"
	"testing"

	"github.com/canonical/grafana-k8s-operator/domain/model"
)

func TestStoreRevisions(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if _, err := s.Get(ctx, "primary/record"); err != model.ErrPeerKeyNotFound {
		t.Fatalf("missing key error = %v, want ErrPeerKeyNotFound", err)
	}

	rev, err := s.Put(ctx, "primary/record", "a")
	if err != nil || rev != 1 {
		t.Fatalf("first put rev = %d, err = %v", rev, err)
	}
	rev, _ = s.Put(ctx, "primary/record", "b")
	if rev != 2 {
		t.Fatalf("second put rev = %d, want 2", rev)
	}

	e, err := s.Get(ctx, "primary/record")
	if err != nil {
		t.Fatal(err)
	}
	if e.Value != "b" || e.Revision != 2 {
		t.Fatalf("entry = %+v", e)
	}
}

func TestStoreListPrefix(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_, _ = s.Put(ctx, "units/grafana/0/address", "10.0.0.1")
	_, _ = s.Put(ctx, "units/grafana/1/address", "10.0.0.2")
	_, _ = s.Put(ctx, "primary/record", "x")

	entries, err := s.List(ctx, "units/")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %v", len(entries), entries)
	}
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_, _ = s.Put(ctx, "k", "v")
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("deleting absent key must not fail: %v", err)
	}
	if _, err := s.Get(ctx, "k"); err != model.ErrPeerKeyNotFound {
		t.Fatalf("get after delete = %v", err)
	}
}
