package naming

// Package naming centralizes generation of deterministic names and short
// hashes used for provisioning artifacts. Keeping the logic here allows
// future changes (length/algorithm) without touching call sites.

import (
	"crypto/sha256"
	"fmt"
)

// defaultLength defines the hex length of short hashes.
const defaultLength = 7

// ShortHash returns the hex SHA256 prefix of length n (clamped to digest
// size).
func ShortHash(data []byte, n int) string {
	sum := sha256.Sum256(data)
	h := fmt.Sprintf("%x", sum)
	if n > len(h) {
		n = len(h)
	}
	return h[:n]
}

// DashboardFileName returns the provisioned file name for a dashboard
// delivered over a relation:
//
//	provided_<ownerApp>_<contentHASH>.json
//
// The owner namespace prevents identifier collisions between apps; the
// content hash makes updates visible as new file content at a stable path
// per (owner, content) pair.
func DashboardFileName(ownerApp string, content []byte) string {
	return fmt.Sprintf("provided_%s_%s.json", ownerApp, ShortHash(content, defaultLength))
}

// DashboardFilePrefix is the prefix shared by all relation-provided
// dashboard files; stale-file cleanup only ever touches these.
const DashboardFilePrefix = "provided_"

// DatasourceFallbackName returns the safe default name used when a
// datasource record carries no name or the name is already taken:
//
//	<ownerApp>_<relationId>
func DatasourceFallbackName(ownerApp, relationID string) string {
	return fmt.Sprintf("%s_%s", ownerApp, relationID)
}

// TLSBundleRef returns the peer store reference for a replication TLS
// bundle, derived from its content so a rewritten bundle gets a new ref.
func TLSBundleRef(caPEM, certPEM []byte) string {
	return "tls-" + ShortHash(append(append([]byte{}, caPEM...), certPEM...), defaultLength)
}
