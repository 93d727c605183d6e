// Package peer coordinates the replication topology of a multi-unit
// deployment through a shared versioned key/value store. The elected
// leader assigns the primary; every unit observes the assignment and
// configures its replication sidecar accordingly. Generation numbers
// fence stale primaries after partitions.
package peer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/canonical/grafana-k8s-operator/domain"
	"github.com/canonical/grafana-k8s-operator/domain/model"
	"github.com/canonical/grafana-k8s-operator/internal/logging"
)

// Peer store key layout. The leader owns primary/* and credentials/*;
// each unit owns its units/<id>/* keys.
const (
	keyPrimaryRecord = "primary/record"
	keyGeneration    = "primary/generation"
	bundlePrefix     = "bundles/"
	unitPrefix       = "units/"
)

// State is the unit's position in the replication topology.
type State string

const (
	// StateUninitialized means no primary assignment has been observed yet.
	StateUninitialized State = "uninitialized"

	// StateStandby means the unit saw no valid assignment, or was fenced,
	// and must not serve or follow anything.
	StateStandby State = "standby"

	// StatePrimary means this unit holds the current assignment.
	StatePrimary State = "primary"

	// StateReplica means the unit follows the assigned primary.
	StateReplica State = "replica"
)

// Coordinator tracks this unit's replication state against the shared
// peer store. It is not safe for concurrent use; the reconciliation loop
// is its only caller.
type Coordinator struct {
	store   domain.PeerStore
	unitID  string
	address string

	state       State
	believedGen int64
	primary     model.PeerRecord
}

// NewCoordinator returns a coordinator in the uninitialized state.
func NewCoordinator(store domain.PeerStore, unitID, address string) *Coordinator {
	return &Coordinator{
		store:   store,
		unitID:  unitID,
		address: address,
		state:   StateUninitialized,
	}
}

// State returns the current topology state.
func (c *Coordinator) State() State { return c.state }

// Primary returns the last observed valid primary assignment. Only
// meaningful in the primary or replica states.
func (c *Coordinator) Primary() model.PeerRecord { return c.primary }

// PublishAddress advertises this unit's routable address to the group.
func (c *Coordinator) PublishAddress(ctx context.Context) error {
	_, err := c.store.Put(ctx, unitPrefix+c.unitID+"/address", c.address)
	if err != nil {
		return fmt.Errorf("publish address: %w", err)
	}
	return nil
}

// PromoteSelf is called on leadership acquisition. It mints a fresh
// replication TLS bundle, publishes it, and writes a primary assignment
// naming this unit with a strictly increased generation. Replicas pick
// the change up on their next observation.
//
// The generation is reserved through the store's per-key write revision,
// which is transactional even when reads lag. Deriving it from a read of
// the current record would let a leader with a stale view mint a
// generation already in force, and the old primary would dismiss the new
// assignment as a stale read instead of being fenced.
func (c *Coordinator) PromoteSelf(ctx context.Context) (*model.PeerRecord, error) {
	logger := logging.FromContext(ctx)

	gen, err := c.store.Put(ctx, keyGeneration, c.unitID)
	if err != nil {
		return nil, fmt.Errorf("reserve generation: %w", err)
	}

	bundle, ref, err := newReplicationBundle(c.unitID, c.address)
	if err != nil {
		return nil, fmt.Errorf("mint replication bundle: %w", err)
	}
	if err := c.putBundle(ctx, ref, bundle); err != nil {
		return nil, err
	}

	rec := model.PeerRecord{
		UnitID:       c.unitID,
		Role:         model.PeerRolePrimary,
		Generation:   gen,
		Address:      c.address,
		TLSBundleRef: ref,
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode primary record: %w", err)
	}
	if _, err := c.store.Put(ctx, keyPrimaryRecord, string(raw)); err != nil {
		return nil, fmt.Errorf("write primary record: %w", err)
	}

	c.state = StatePrimary
	c.believedGen = rec.Generation
	c.primary = rec
	logger.Info(ctx, "promoted to primary", "generation", rec.Generation, "bundle", ref)
	return &rec, nil
}

// Observe reads the current primary assignment and updates the unit's
// state. The store is eventually consistent, so records older than the
// believed generation are ignored rather than acted on. A valid record
// naming another unit with a newer generation fences a unit that still
// believes itself primary: the state drops to standby and a FencingError
// is returned.
func (c *Coordinator) Observe(ctx context.Context) (model.PeerRecord, error) {
	logger := logging.FromContext(ctx)

	rec, err := c.readRecord(ctx)
	if err == model.ErrPeerKeyNotFound {
		if c.state == StateUninitialized {
			c.state = StateStandby
		}
		return model.PeerRecord{}, nil
	}
	if err != nil {
		return model.PeerRecord{}, err
	}
	if !rec.Valid() {
		// Incomplete assignments never trigger promotion or demotion.
		logger.Warn(ctx, "incomplete primary record, staying put", "record", rec.UnitID)
		if c.state == StateUninitialized {
			c.state = StateStandby
		}
		return rec, nil
	}

	if rec.Generation < c.believedGen {
		// Stale read from a lagging store replica.
		return rec, nil
	}

	if rec.UnitID == c.unitID {
		c.state = StatePrimary
		c.believedGen = rec.Generation
		c.primary = rec
		return rec, nil
	}

	if c.state == StatePrimary && rec.Generation > c.believedGen {
		c.state = StateStandby
		ferr := &model.FencingError{Observed: rec.Generation, Believed: c.believedGen}
		c.believedGen = rec.Generation
		logger.Warn(ctx, "fenced by newer primary", "primary", rec.UnitID, "generation", rec.Generation)
		return rec, ferr
	}

	c.state = StateReplica
	c.believedGen = rec.Generation
	c.primary = rec
	return rec, nil
}

// Bundle fetches the replication TLS bundle the primary published.
func (c *Coordinator) Bundle(ctx context.Context, ref string) (*model.TLSMaterial, error) {
	entry, err := c.store.Get(ctx, bundlePrefix+ref)
	if err != nil {
		return nil, fmt.Errorf("fetch bundle %s: %w", ref, err)
	}
	var b model.TLSMaterial
	if err := json.Unmarshal([]byte(entry.Value), &b); err != nil {
		return nil, fmt.Errorf("decode bundle %s: %w", ref, err)
	}
	return &b, nil
}

func (c *Coordinator) putBundle(ctx context.Context, ref string, b *model.TLSMaterial) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	if _, err := c.store.Put(ctx, bundlePrefix+ref, string(raw)); err != nil {
		return fmt.Errorf("publish bundle: %w", err)
	}
	return nil
}

func (c *Coordinator) readRecord(ctx context.Context) (model.PeerRecord, error) {
	entry, err := c.store.Get(ctx, keyPrimaryRecord)
	if err != nil {
		return model.PeerRecord{}, err
	}
	var rec model.PeerRecord
	if err := json.Unmarshal([]byte(entry.Value), &rec); err != nil {
		return model.PeerRecord{}, fmt.Errorf("decode primary record: %w", err)
	}
	return rec, nil
}
