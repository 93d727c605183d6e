package operatorcfg

import (
	"fmt"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate performs semantic validation on the configuration tree.
func (c *Config) Validate() error {
	if c.Unit.AppName == "" {
		return fmt.Errorf("unit: app_name is required")
	}
	if c.Unit.UnitID == "" {
		return fmt.Errorf("unit: unit_id is required")
	}
	if err := c.Workload.validate(); err != nil {
		return fmt.Errorf("workload: %w", err)
	}
	if c.PeerStoreURL == "" {
		return fmt.Errorf("peer_store_url is required")
	}
	return nil
}

func (w *Workload) validate() error {
	if !validLogLevels[w.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of debug, info, warn, error", w.LogLevel)
	}
	if w.AdminUser == "" {
		return fmt.Errorf("admin_user must not be empty")
	}
	if w.QueryTimeout <= 0 {
		return fmt.Errorf("query_timeout must be a positive number of seconds, got %d", w.QueryTimeout)
	}
	if w.Port <= 0 || w.Port > 65535 {
		return fmt.Errorf("port %d out of range", w.Port)
	}
	if w.ExternalURL != "" && !strings.Contains(w.ExternalURL, "://") {
		return fmt.Errorf("external_url %q must include a scheme", w.ExternalURL)
	}
	return nil
}
