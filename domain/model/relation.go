package model

import "time"

// RelationKind identifies the typed channel a record arrived on.
type RelationKind string

const (
	RelationDatasource RelationKind = "grafana-source"
	RelationDashboard  RelationKind = "grafana-dashboard"
	RelationAuth       RelationKind = "oauth"
	RelationCerts      RelationKind = "certificates"
	RelationIngress    RelationKind = "ingress"
	RelationTracing    RelationKind = "tracing"
)

// Provider-side channels this operator publishes on.
const (
	RelationMetricsEndpoint RelationKind = "metrics-endpoint"
	RelationMetadata        RelationKind = "grafana-metadata"
)

// SchemaVersionField carries the sender's declared record schema version.
// Records without it are treated as version 1.
const SchemaVersionField = "schema-version"

// RelationRecord is a raw record as delivered by the platform. Field
// semantics are relation-kind specific and validated lazily by the
// aggregator.
type RelationRecord struct {
	Kind       RelationKind
	RelationID string
	UnitID     string
	Fields     map[string]string
	ReceivedAt time.Time
}

// InstanceKey identifies a relation instance: the latest record per
// (relation, unit) pair wins, regardless of delivery order.
type InstanceKey struct {
	RelationID string
	UnitID     string
}

// Key returns the record's instance identity.
func (r RelationRecord) Key() InstanceKey {
	return InstanceKey{RelationID: r.RelationID, UnitID: r.UnitID}
}
