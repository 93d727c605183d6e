package reconciler

import (
	"encoding/json"
	"fmt"

	"github.com/canonical/grafana-k8s-operator/domain/model"
)

// EventKind tags a lifecycle notification from the hosting platform.
type EventKind string

const (
	EventStart           EventKind = "start"
	EventStop            EventKind = "stop"
	EventConfigChanged   EventKind = "config-changed"
	EventRelationChanged EventKind = "relation-changed"
	EventRelationBroken  EventKind = "relation-broken"
	EventLeaderElected   EventKind = "leader-elected"
	EventUpdateStatus    EventKind = "update-status"
)

// Event is one notification. Relation payload is present for the
// relation-changed and relation-broken kinds.
type Event struct {
	Kind     EventKind      `json:"kind"`
	Relation *RelationEvent `json:"relation,omitempty"`
}

// RelationEvent carries the raw record of a relation notification.
type RelationEvent struct {
	Kind       model.RelationKind `json:"relation_kind"`
	RelationID string             `json:"relation_id"`
	UnitID     string             `json:"unit_id"`
	Fields     map[string]string  `json:"fields,omitempty"`
}

var knownKinds = map[EventKind]bool{
	EventStart:           true,
	EventStop:            true,
	EventConfigChanged:   true,
	EventRelationChanged: true,
	EventRelationBroken:  true,
	EventLeaderElected:   true,
	EventUpdateStatus:    true,
}

// DecodeEvent parses one JSON-encoded event.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if !knownKinds[ev.Kind] {
		return Event{}, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	if ev.Kind == EventRelationChanged || ev.Kind == EventRelationBroken {
		if ev.Relation == nil {
			return Event{}, fmt.Errorf("%s event without relation payload", ev.Kind)
		}
	}
	return ev, nil
}
