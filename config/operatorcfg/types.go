// Package operatorcfg defines the declared configuration surface of the
// operator (structs for YAML deserialization). Loading helpers and
// validations are implemented separately.
package operatorcfg

// Config is the root of the operator configuration file.
type Config struct {
	// Unit identifies this unit within the deployment group.
	Unit Unit `yaml:"unit"`

	// Workload tunes the managed visualization service.
	Workload Workload `yaml:"workload"`

	// Resources sets process resource ceilings.
	Resources Resources `yaml:"resources,omitempty"`

	// PeerStoreURL locates the shared peer store
	// (sqlite:/path/to.db | memory:).
	PeerStoreURL string `yaml:"peer_store_url"`
}

// Unit identifies this unit and its deployment group.
type Unit struct {
	AppName string `yaml:"app_name"` // deployment group name, e.g. "grafana"
	UnitID  string `yaml:"unit_id"`  // e.g. "grafana/0"
	Address string `yaml:"address"`  // routable address of this unit
}

// Workload holds the enumerated workload options.
type Workload struct {
	// AllowAnonymousAccess enables unauthenticated read access.
	AllowAnonymousAccess bool `yaml:"allow_anonymous_access"`

	// AllowEmbedding permits embedding dashboards in iframes.
	AllowEmbedding bool `yaml:"allow_embedding"`

	// LogLevel is the workload process log level (debug|info|warn|error).
	LogLevel string `yaml:"log_level"`

	// AdminUser is the initial admin account name.
	AdminUser string `yaml:"admin_user"`

	// QueryTimeout is the minimum datasource query timeout in seconds;
	// datasources declaring a lower timeout are raised to it.
	QueryTimeout int `yaml:"query_timeout"`

	// EnableReporting toggles anonymous usage reporting.
	EnableReporting bool `yaml:"enable_reporting"`

	// ExternalURL is the legacy externally reachable URL. An ingress
	// relation supersedes it.
	ExternalURL string `yaml:"external_url,omitempty"`

	// Port is the HTTP port the workload listens on.
	Port int `yaml:"port"`
}

// Resources sets CPU/memory ceilings for the workload process.
type Resources struct {
	CPULimit    string `yaml:"cpu_limit,omitempty"`    // e.g. "500m"
	MemoryLimit string `yaml:"memory_limit,omitempty"` // e.g. "512Mi"
}

// Defaults returns a Config populated with the documented defaults;
// loaded files override individual fields.
func Defaults() Config {
	return Config{
		Workload: Workload{
			LogLevel:        "info",
			AdminUser:       "admin",
			QueryTimeout:    300,
			EnableReporting: true,
			Port:            3000,
		},
		PeerStoreURL: "memory:",
	}
}
