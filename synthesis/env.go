package synthesis

import (
	"fmt"
	"strconv"

	"github.com/canonical/grafana-k8s-operator/config/operatorcfg"
	"github.com/canonical/grafana-k8s-operator/domain/model"
)

// resolveExternalURL picks the advertised URL. An ingress relation wins
// over the legacy external_url option; with neither, the unit serves on
// its own address.
func resolveExternalURL(cfg operatorcfg.Config, ingressURL string) (string, []model.SynthesisNote) {
	var notes []model.SynthesisNote
	legacy := cfg.Workload.ExternalURL
	if ingressURL != "" {
		if legacy != "" && legacy != ingressURL {
			notes = append(notes, model.SynthesisNote{
				Component: "server",
				Message:   fmt.Sprintf("external_url %q is superseded by the ingress url %q", legacy, ingressURL),
			})
		}
		return ingressURL, notes
	}
	if legacy != "" {
		return legacy, notes
	}
	host := cfg.Unit.Address
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.Workload.Port), notes
}

type envInputs struct {
	Config        operatorcfg.Config
	ExternalURL   string
	Auth          *model.OAuthProviderInfo
	RolePath      string
	TLS           *model.TLSMaterial
	AdminPassword string
}

// buildEnvironment assembles the workload process environment.
func buildEnvironment(in envInputs) map[string]string {
	w := in.Config.Workload
	env := map[string]string{
		"GF_SERVER_HTTP_PORT":           strconv.Itoa(w.Port),
		"GF_LOG_LEVEL":                  w.LogLevel,
		"GF_PATHS_PROVISIONING":         ProvisioningDir,
		"GF_SECURITY_ALLOW_EMBEDDING":   strconv.FormatBool(w.AllowEmbedding),
		"GF_AUTH_ANONYMOUS_ENABLED":     strconv.FormatBool(w.AllowAnonymousAccess),
		"GF_USERS_AUTO_ASSIGN_ORG":      "true",
		"GF_SERVER_ROOT_URL":            in.ExternalURL,
		"GF_SERVER_SERVE_FROM_SUB_PATH": "true",
		"GF_SERVER_ENFORCE_DOMAIN":      "false",
	}

	if in.TLS != nil && in.TLS.Complete() {
		env["GF_SERVER_PROTOCOL"] = "https"
		env["GF_SERVER_CERT_FILE"] = TLSCertPath
		env["GF_SERVER_CERT_KEY"] = TLSKeyPath
	} else {
		env["GF_SERVER_PROTOCOL"] = "http"
	}

	if in.Auth != nil {
		env["GF_AUTH_GENERIC_OAUTH_ENABLED"] = "true"
		env["GF_AUTH_GENERIC_OAUTH_NAME"] = "external identity provider"
		env["GF_AUTH_GENERIC_OAUTH_CLIENT_ID"] = in.Auth.ClientID
		env["GF_AUTH_GENERIC_OAUTH_CLIENT_SECRET"] = in.Auth.ClientSecret
		env["GF_AUTH_GENERIC_OAUTH_SCOPES"] = model.OAuthScopes
		env["GF_AUTH_GENERIC_OAUTH_AUTH_URL"] = in.Auth.AuthorizationEndpoint
		env["GF_AUTH_GENERIC_OAUTH_TOKEN_URL"] = in.Auth.TokenEndpoint
		env["GF_AUTH_GENERIC_OAUTH_API_URL"] = in.Auth.UserinfoEndpoint
		env["GF_AUTH_GENERIC_OAUTH_USE_REFRESH_TOKEN"] = "true"
		if in.RolePath != "" {
			env["GF_AUTH_GENERIC_OAUTH_ROLE_ATTRIBUTE_PATH"] = in.RolePath
		}
	}

	// Admin credentials are set on the leader only; replicas inherit the
	// database state through replication.
	if in.AdminPassword != "" {
		env["GF_SECURITY_ADMIN_USER"] = w.AdminUser
		env["GF_SECURITY_ADMIN_PASSWORD"] = in.AdminPassword
	}
	return env
}
