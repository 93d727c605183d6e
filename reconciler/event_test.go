package reconciler

import (
	"testing"

	"github.com/canonical/grafana-k8s-operator/domain/model"
)

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"kind":"relation-changed","relation":{"relation_kind":"grafana-source","relation_id":"rel-1","unit_id":"prom/0","fields":{"url":"http://prom:9090"}}}`))
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != EventRelationChanged || ev.Relation.Kind != model.RelationDatasource {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Relation.Fields["url"] != "http://prom:9090" {
		t.Fatalf("fields = %v", ev.Relation.Fields)
	}
}

func TestDecodeEventErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not json", `{`},
		{"unknown kind", `{"kind":"pebble-ready"}`},
		{"relation event without payload", `{"kind":"relation-broken"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeEvent([]byte(tt.in)); err == nil {
				t.Fatalf("input %q must be rejected", tt.in)
			}
		})
	}
}
