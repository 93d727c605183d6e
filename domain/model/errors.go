package model

import (
	"errors"
	"fmt"
)

var (
	// ErrPeerKeyNotFound is returned by PeerStore lookups for absent keys.
	ErrPeerKeyNotFound = errors.New("peer store key not found")

	// ErrNoPrimary is the fatal condition: no viable replication primary
	// could be determined after retries. Surfaced as a blocked status;
	// the shared database must never be silently lost in this state.
	ErrNoPrimary = errors.New("no viable replication primary determinable")

	// ErrCredentialNotReady indicates the admin credential has not been
	// generated by the leader yet.
	ErrCredentialNotReady = errors.New("admin credential not generated yet")
)

// ValidationError marks a malformed or incomplete relation record. The
// record is skipped and logged; aggregation continues.
type ValidationError struct {
	Kind       RelationKind
	RelationID string
	UnitID     string
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s record from %s/%s: %s", e.Kind, e.RelationID, e.UnitID, e.Reason)
}

// DecodeError marks an undecodable dashboard payload. The bundle is
// excluded; other bundles proceed.
type DecodeError struct {
	OwnerApp string
	Reason   string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode dashboard from %q: %s", e.OwnerApp, e.Reason)
}

// FencingError is raised when a unit observes a peer generation newer than
// the one it believes itself to hold. The unit must downgrade to standby
// and never act as primary.
type FencingError struct {
	Observed int64
	Believed int64
}

func (e *FencingError) Error() string {
	return fmt.Sprintf("fenced: observed generation %d exceeds believed %d", e.Observed, e.Believed)
}

// ApplyError marks a failed write of synthesized configuration to the
// workload. The reconciliation pass ends in a retryable failure state.
type ApplyError struct {
	Artifact string
	Err      error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply %s: %v", e.Artifact, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }
