package model

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// DesiredConfig is the full synthesized runtime configuration for the
// workload. It is a pure function of the aggregated relation snapshot and
// the operator configuration: never persisted, recomputed every
// reconciliation, and byte-identical for identical input sets.
type DesiredConfig struct {
	// ConfigINI is the base configuration file (database, tracing,
	// analytics sections).
	ConfigINI string

	// Datasources is the datasource provisioning document (YAML).
	Datasources string

	// DashboardProvisioning is the dashboard provider document (YAML).
	DashboardProvisioning string

	// Dashboards are the decoded dashboard documents, in canonical order.
	// Dashboard updates do not require a workload restart.
	Dashboards []Dashboard

	// Environment is the workload process environment (GF_* variables,
	// including the auth fragment and optional role-attribute-path).
	Environment map[string]string

	// RoleAttributePath is the derived group-to-role expression; empty
	// when no group mapping is configured.
	RoleAttributePath string

	// TLS is the server certificate material; nil when no certificates
	// relation is present.
	TLS *TLSMaterial

	// TrustedCA is an extra CA chain to install into the workload trust
	// store; empty when absent.
	TrustedCA string
}

// Checksum returns a structural digest of the config. Two configs with
// equal checksums apply identically.
func (c *DesiredConfig) Checksum() string {
	h := sha256.New()
	fmt.Fprintf(h, "ini:%s\n", c.ConfigINI)
	fmt.Fprintf(h, "ds:%s\n", c.Datasources)
	fmt.Fprintf(h, "dp:%s\n", c.DashboardProvisioning)
	for _, d := range c.Dashboards {
		fmt.Fprintf(h, "dash:%s:%x\n", d.OwnerApp, sha256.Sum256(d.Content))
	}
	keys := make([]string, 0, len(c.Environment))
	for k := range c.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "env:%s=%s\n", k, c.Environment[k])
	}
	if c.TLS != nil {
		fmt.Fprintf(h, "tls:%s:%s:%s\n", c.TLS.Cert, c.TLS.Key, c.TLS.CAChain)
	}
	fmt.Fprintf(h, "ca:%s\n", c.TrustedCA)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// RestartChecksum digests only the fields whose change requires a workload
// restart. Dashboard content is deliberately excluded: the workload picks
// up dashboard files without restarting.
func (c *DesiredConfig) RestartChecksum() string {
	h := sha256.New()
	fmt.Fprintf(h, "ini:%s\n", c.ConfigINI)
	fmt.Fprintf(h, "ds:%s\n", c.Datasources)
	keys := make([]string, 0, len(c.Environment))
	for k := range c.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "env:%s=%s\n", k, c.Environment[k])
	}
	if c.TLS != nil {
		fmt.Fprintf(h, "tls:%s:%s:%s\n", c.TLS.Cert, c.TLS.Key, c.TLS.CAChain)
	}
	fmt.Fprintf(h, "ca:%s\n", c.TrustedCA)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// SynthesisNote is a non-fatal observation surfaced while synthesizing
// (duplicate datasources, undecodable dashboards, ignored legacy fields).
type SynthesisNote struct {
	Component string
	Message   string
}

func (n SynthesisNote) String() string {
	return strings.TrimSpace(n.Component + ": " + n.Message)
}
