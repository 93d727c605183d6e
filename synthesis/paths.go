package synthesis

// Workload filesystem layout. Provisioned artifacts are written under
// these paths; the workload watches the dashboards directory so dashboard
// changes take effect without a restart.
const (
	ConfigINIPath    = "/etc/grafana/grafana-config.ini"
	ProvisioningDir  = "/etc/grafana/provisioning"
	DatasourcesPath  = ProvisioningDir + "/datasources/datasources.yaml"
	DashboardsConfig = ProvisioningDir + "/dashboards/default.yaml"
	DashboardsDir    = ProvisioningDir + "/dashboards"
	DatabasePath     = "/var/lib/grafana/grafana.db"

	TLSCertPath     = "/etc/grafana/grafana.crt"
	TLSKeyPath      = "/etc/grafana/grafana.key"
	TrustedCAPath   = "/usr/local/share/ca-certificates/trusted-ca-cert.crt"
	WorkloadService = "grafana"
)
