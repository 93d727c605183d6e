package peer

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/canonical/grafana-k8s-operator/domain/model"
)

// ReplicationPort is the streaming endpoint the primary's sidecar serves
// and replicas connect to.
const ReplicationPort = 9876

type sidecarUpstream struct {
	URL string `yaml:"url"`
}

type sidecarDB struct {
	Path     string           `yaml:"path"`
	Upstream *sidecarUpstream `yaml:"upstream,omitempty"`
}

type sidecarConfig struct {
	Addr string      `yaml:"addr,omitempty"`
	DBs  []sidecarDB `yaml:"dbs"`
}

// RenderSidecarConfig builds the replication sidecar configuration for
// the unit's current role. The primary serves the database on the
// replication port; a replica follows the primary's endpoint. Standby
// units run the sidecar idle with no databases.
func RenderSidecarConfig(state State, primary model.PeerRecord, dbPath string) (string, error) {
	var cfg sidecarConfig
	switch state {
	case StatePrimary:
		cfg = sidecarConfig{
			Addr: fmt.Sprintf(":%d", ReplicationPort),
			DBs:  []sidecarDB{{Path: dbPath}},
		}
	case StateReplica:
		cfg = sidecarConfig{
			DBs: []sidecarDB{{
				Path: dbPath,
				Upstream: &sidecarUpstream{
					URL: fmt.Sprintf("https://%s:%d", primary.Address, ReplicationPort),
				},
			}},
		}
	default:
		cfg = sidecarConfig{DBs: []sidecarDB{}}
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("render sidecar config: %w", err)
	}
	return string(out), nil
}
