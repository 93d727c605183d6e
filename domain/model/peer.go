package model

// PeerRole is the replication role a unit holds in the HA topology.
type PeerRole string

const (
	PeerRolePrimary PeerRole = "primary"
	PeerRoleReplica PeerRole = "replica"
	PeerRoleUnknown PeerRole = "unknown"
)

// PeerRecord is the group-wide primary assignment persisted in the peer
// store. Only the current leader writes it, and only on leadership
// transitions. Generation increases strictly across the group's lifetime
// and fences stale primaries.
type PeerRecord struct {
	UnitID       string   `json:"unit_id"`
	Role         PeerRole `json:"role"`
	Generation   int64    `json:"generation"`
	Address      string   `json:"address"`
	TLSBundleRef string   `json:"tls_bundle_ref"`
}

// Valid reports whether the record is complete enough to act on. An
// incomplete record keeps observers in standby rather than triggering a
// destructive promotion or demotion.
func (p PeerRecord) Valid() bool {
	return p.UnitID != "" && p.Role == PeerRolePrimary && p.Generation > 0 && p.TLSBundleRef != ""
}
