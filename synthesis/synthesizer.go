// Package synthesis computes the desired workload configuration from an
// aggregated relation snapshot. Synthesis is pure: for a given snapshot
// and operator configuration the output is byte-identical, regardless of
// how many times or on which unit it runs.
package synthesis

import (
	"context"
	"strconv"

	"github.com/canonical/grafana-k8s-operator/config/operatorcfg"
	"github.com/canonical/grafana-k8s-operator/domain/model"
	"github.com/canonical/grafana-k8s-operator/relation"
)

// DBConfig points the workload at an external database instead of the
// embedded one.
type DBConfig struct {
	Type     string
	Host     string
	Name     string
	User     string
	Password string
}

// Inputs carries the non-relation inputs to synthesis.
type Inputs struct {
	Config operatorcfg.Config

	// IsLeader gates leader-only output (admin credentials).
	IsLeader bool

	// AdminPassword is the generated admin credential; set on the leader
	// only.
	AdminPassword string

	// ExternalDB switches persistence to an external database when set.
	ExternalDB *DBConfig

	// TracingSampleRate is the trace sampling probability; zero means the
	// built-in default.
	TracingSampleRate float64
}

const defaultTracingSampleRate = 0.01

// Synthesize computes the full desired configuration. Notes report
// non-fatal oddities (duplicates, rejected dashboards, superseded
// options) for the caller to log and surface in status.
func Synthesize(ctx context.Context, snap *relation.Snapshot, in Inputs) (*model.DesiredConfig, []model.SynthesisNote) {
	var notes []model.SynthesisNote

	specs, dsNotes := mergeDatasources(snap.Datasources, in.Config.Workload.QueryTimeout)
	notes = append(notes, dsNotes...)
	dsDoc, err := renderDatasourceDoc(specs, snap.DatasourcesToDelete)
	if err != nil {
		notes = append(notes, model.SynthesisNote{Component: "datasources", Message: err.Error()})
	}

	dashboards, dashNotes := decodeDashboards(ctx, snap.Dashboards)
	notes = append(notes, dashNotes...)
	dashDoc, err := renderDashboardProvisioning()
	if err != nil {
		notes = append(notes, model.SynthesisNote{Component: "dashboards", Message: err.Error()})
	}

	externalURL, urlNotes := resolveExternalURL(in.Config, snap.IngressURL)
	notes = append(notes, urlNotes...)

	rolePath := ""
	if snap.Auth != nil {
		rolePath = RoleAttributePath(snap.Roles)
	}

	adminPassword := ""
	if in.IsLeader {
		adminPassword = in.AdminPassword
	}

	cfg := &model.DesiredConfig{
		ConfigINI:             renderConfigINI(snap, in),
		Datasources:           dsDoc,
		DashboardProvisioning: dashDoc,
		Dashboards:            dashboards,
		RoleAttributePath:     rolePath,
		Environment: buildEnvironment(envInputs{
			Config:        in.Config,
			ExternalURL:   externalURL,
			Auth:          snap.Auth,
			RolePath:      rolePath,
			TLS:           snap.TLS,
			AdminPassword: adminPassword,
		}),
	}
	if snap.TLS != nil && snap.TLS.Complete() {
		cfg.TLS = snap.TLS
		cfg.TrustedCA = snap.TLS.CAChain
	}
	return cfg, notes
}

// renderConfigINI assembles the base configuration file: persistence,
// then tracing when a collector is related, then analytics when
// reporting is disabled.
func renderConfigINI(snap *relation.Snapshot, in Inputs) string {
	var sections []iniSection

	if db := in.ExternalDB; db != nil {
		sections = append(sections, iniSection{
			Name: "database",
			Keys: []iniKV{
				{"type", db.Type},
				{"host", db.Host},
				{"name", db.Name},
				{"user", db.User},
				{"password", db.Password},
			},
		})
	} else {
		sections = append(sections, iniSection{
			Name: "database",
			Keys: []iniKV{
				{"type", "sqlite3"},
				{"path", DatabasePath},
			},
		})
	}

	if snap.TracingEndpoint != "" {
		rate := in.TracingSampleRate
		if rate == 0 {
			rate = defaultTracingSampleRate
		}
		sections = append(sections,
			iniSection{
				Name: "tracing.opentelemetry",
				Keys: []iniKV{
					{"sampler_type", "probabilistic"},
					{"sampler_param", formatRate(rate)},
				},
			},
			iniSection{
				Name: "tracing.opentelemetry.otlp",
				Keys: []iniKV{
					{"address", snap.TracingEndpoint},
				},
			},
		)
	}

	if !in.Config.Workload.EnableReporting {
		sections = append(sections, iniSection{
			Name: "analytics",
			Keys: []iniKV{
				{"reporting_enabled", "false"},
				{"check_for_updates", "false"},
			},
		})
	}

	return renderINI(sections)
}

func formatRate(r float64) string {
	return strconv.FormatFloat(r, 'g', -1, 64)
}
