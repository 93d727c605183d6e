package synthesis

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/canonical/grafana-k8s-operator/config/operatorcfg"
	"github.com/canonical/grafana-k8s-operator/domain/model"
	"github.com/canonical/grafana-k8s-operator/relation"
)

func encodeDashboard(t *testing.T, content string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func testInputs() Inputs {
	return Inputs{Config: operatorcfg.Defaults()}
}

func TestMergeDatasourcesDedup(t *testing.T) {
	specs := []model.DatasourceSpec{
		{Name: "prom-a", Type: "prometheus", URL: "http://prom:9090", RelationID: "rel-1"},
		{Name: "prom-b", Type: "prometheus", URL: "http://prom:9090", RelationID: "rel-2"},
		{Name: "loki", Type: "loki", URL: "http://loki:3100", RelationID: "rel-3"},
	}
	merged, notes := mergeDatasources(specs, 300)
	if len(merged) != 2 {
		t.Fatalf("got %d specs, want 2: %+v", len(merged), merged)
	}
	// Canonical input order puts the smallest relation id first, so the
	// keeper for the duplicate pair is rel-1.
	if merged[0].Name != "prom-a" {
		t.Errorf("kept %q, want prom-a from rel-1", merged[0].Name)
	}
	if len(notes) != 1 || !strings.Contains(notes[0].Message, "duplicate") {
		t.Errorf("expected one duplicate note, got %v", notes)
	}
}

func TestMergeDatasourcesNameCollision(t *testing.T) {
	specs := []model.DatasourceSpec{
		{Name: "prom", Type: "prometheus", URL: "http://a:9090", RelationID: "rel-1"},
		{Name: "prom", Type: "prometheus", URL: "http://b:9090", RelationID: "rel-2"},
	}
	merged, _ := mergeDatasources(specs, 300)
	if len(merged) != 2 {
		t.Fatalf("distinct urls must both survive: %+v", merged)
	}
	if merged[1].Name != "prom_rel-2" {
		t.Errorf("colliding name = %q, want prom_rel-2", merged[1].Name)
	}
}

func TestMergeDatasourcesTimeoutFloor(t *testing.T) {
	specs := []model.DatasourceSpec{
		{Name: "low", Type: "prometheus", URL: "http://a", RelationID: "rel-1",
			JSONData: map[string]string{"timeout": "60"}},
		{Name: "high", Type: "loki", URL: "http://b", RelationID: "rel-2",
			JSONData: map[string]string{"timeout": "900"}},
		{Name: "unset", Type: "tempo", URL: "http://c", RelationID: "rel-3"},
	}
	merged, _ := mergeDatasources(specs, 300)
	if got := merged[0].JSONData["timeout"]; got != "300" {
		t.Errorf("low timeout not raised: %q", got)
	}
	if got := merged[1].JSONData["timeout"]; got != "900" {
		t.Errorf("high timeout must be untouched: %q", got)
	}
	if got := merged[2].JSONData["timeout"]; got != "300" {
		t.Errorf("unset timeout not defaulted: %q", got)
	}
	if specs[0].JSONData["timeout"] != "60" {
		t.Error("input map was mutated")
	}
}

func TestMergeDatasourcesDefaultElection(t *testing.T) {
	merged, _ := mergeDatasources([]model.DatasourceSpec{
		{Name: "a", Type: "prometheus", URL: "http://a", RelationID: "rel-1"},
		{Name: "b", Type: "loki", URL: "http://b", RelationID: "rel-2"},
	}, 300)
	if !merged[0].IsDefault || merged[1].IsDefault {
		t.Errorf("first spec must become the default: %+v", merged)
	}

	merged, notes := mergeDatasources([]model.DatasourceSpec{
		{Name: "a", Type: "prometheus", URL: "http://a", RelationID: "rel-1", IsDefault: true},
		{Name: "b", Type: "loki", URL: "http://b", RelationID: "rel-2", IsDefault: true},
	}, 300)
	if !merged[0].IsDefault || merged[1].IsDefault {
		t.Errorf("exactly one default expected: %+v", merged)
	}
	if len(notes) != 1 {
		t.Errorf("second default claim should be noted: %v", notes)
	}
}

func TestDecodeDashboardsIsolation(t *testing.T) {
	ctx := context.Background()
	bundles := []model.DashboardBundle{
		{OwnerApp: "loki", ContentBlob: encodeDashboard(t, `{"title":"loki"}`)},
		{OwnerApp: "broken", ContentBlob: base64.StdEncoding.EncodeToString([]byte{0x1f, 0x8b, 0xff})},
		{OwnerApp: "prom", ContentBlob: encodeDashboard(t, `{"title":"prom"}`)},
	}
	dashboards, notes := decodeDashboards(ctx, bundles)
	if len(dashboards) != 2 {
		t.Fatalf("got %d dashboards, want 2", len(dashboards))
	}
	if dashboards[0].OwnerApp != "loki" || dashboards[1].OwnerApp != "prom" {
		t.Errorf("unexpected owners: %+v", dashboards)
	}
	if len(notes) != 1 || !strings.Contains(notes[0].Message, "broken") {
		t.Errorf("expected one decode note naming the owner, got %v", notes)
	}
}

func TestDecodeDashboardsPlainJSON(t *testing.T) {
	// Uncompressed payloads are accepted as long as they are JSON.
	blob := base64.StdEncoding.EncodeToString([]byte(`{"title":"plain"}`))
	dashboards, notes := decodeDashboards(context.Background(), []model.DashboardBundle{
		{OwnerApp: "plain", ContentBlob: blob},
	})
	if len(notes) != 0 || len(dashboards) != 1 {
		t.Fatalf("plain JSON rejected: dashboards=%v notes=%v", dashboards, notes)
	}
}

func TestSynthesizeDeterministic(t *testing.T) {
	ctx := context.Background()
	snap := &relation.Snapshot{
		Datasources: []model.DatasourceSpec{
			{Name: "prom", Type: "prometheus", URL: "http://prom:9090", Access: "proxy", RelationID: "rel-1", UID: "u1"},
		},
		Auth: &model.OAuthProviderInfo{
			ClientID:              "grafana",
			ClientSecret:          "s3cret",
			IssuerURL:             "https://idp",
			AuthorizationEndpoint: "https://idp/oauth2/auth",
			TokenEndpoint:         "https://idp/oauth2/token",
			UserinfoEndpoint:      "https://idp/userinfo",
		},
		Roles:           model.OAuthRoleConfig{AdminGroups: []string{"ops"}},
		TracingEndpoint: "tempo:4317",
	}

	first, _ := Synthesize(ctx, snap, testInputs())
	second, _ := Synthesize(ctx, snap, testInputs())
	if first.Checksum() != second.Checksum() {
		t.Fatal("synthesis is not deterministic for identical inputs")
	}

	if !strings.Contains(first.ConfigINI, "[tracing.opentelemetry.otlp]") ||
		!strings.Contains(first.ConfigINI, "address = tempo:4317") {
		t.Errorf("tracing section missing:\n%s", first.ConfigINI)
	}
	if !strings.Contains(first.ConfigINI, "type = sqlite3") {
		t.Errorf("embedded database section missing:\n%s", first.ConfigINI)
	}
	if got := first.Environment["GF_AUTH_GENERIC_OAUTH_SCOPES"]; got != "openid email offline_access" {
		t.Errorf("oauth scopes = %q", got)
	}
	if first.Environment["GF_AUTH_GENERIC_OAUTH_ROLE_ATTRIBUTE_PATH"] == "" {
		t.Error("role attribute path missing from environment")
	}
	if !strings.Contains(first.Datasources, "name: prom") {
		t.Errorf("datasource doc missing entry:\n%s", first.Datasources)
	}
}

func TestSynthesizeAdminCredentialsLeaderOnly(t *testing.T) {
	ctx := context.Background()
	snap := &relation.Snapshot{}

	in := testInputs()
	in.IsLeader = true
	in.AdminPassword = "abcDEF123456"
	leader, _ := Synthesize(ctx, snap, in)
	if leader.Environment["GF_SECURITY_ADMIN_PASSWORD"] != "abcDEF123456" {
		t.Error("leader must carry the admin credential")
	}

	in.IsLeader = false
	replica, _ := Synthesize(ctx, snap, in)
	if _, ok := replica.Environment["GF_SECURITY_ADMIN_PASSWORD"]; ok {
		t.Error("replica must not carry the admin credential")
	}
}

func TestSynthesizeIngressSupersedesExternalURL(t *testing.T) {
	ctx := context.Background()
	in := testInputs()
	in.Config.Workload.ExternalURL = "http://legacy.example.com"

	cfg, notes := Synthesize(ctx, &relation.Snapshot{IngressURL: "http://ingress.example.com"}, in)
	if got := cfg.Environment["GF_SERVER_ROOT_URL"]; got != "http://ingress.example.com" {
		t.Errorf("root url = %q, want the ingress url", got)
	}
	found := false
	for _, n := range notes {
		if strings.Contains(n.Message, "superseded") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a superseded note, got %v", notes)
	}
}

func TestSynthesizeReportingDisabled(t *testing.T) {
	in := testInputs()
	in.Config.Workload.EnableReporting = false
	cfg, _ := Synthesize(context.Background(), &relation.Snapshot{}, in)
	if !strings.Contains(cfg.ConfigINI, "[analytics]") ||
		!strings.Contains(cfg.ConfigINI, "reporting_enabled = false") {
		t.Errorf("analytics section missing:\n%s", cfg.ConfigINI)
	}
}

func TestDashboardChangeDoesNotTouchRestartChecksum(t *testing.T) {
	ctx := context.Background()
	base := &relation.Snapshot{}
	withDash := &relation.Snapshot{
		Dashboards: []model.DashboardBundle{
			{OwnerApp: "loki", ContentBlob: encodeDashboard(t, `{"title":"loki"}`)},
		},
	}

	a, _ := Synthesize(ctx, base, testInputs())
	b, _ := Synthesize(ctx, withDash, testInputs())
	if a.Checksum() == b.Checksum() {
		t.Error("dashboard addition must change the full checksum")
	}
	if a.RestartChecksum() != b.RestartChecksum() {
		t.Error("dashboard addition must not change the restart checksum")
	}
}
