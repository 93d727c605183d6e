package reconciler

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/canonical/grafana-k8s-operator/adapters/store/inmem"
	"github.com/canonical/grafana-k8s-operator/config/operatorcfg"
	"github.com/canonical/grafana-k8s-operator/domain/model"
)

type fakeWorkload struct {
	files    map[string][]byte
	secrets  map[string]bool
	env      map[string]string
	cpu      string
	memory   string
	writes   int
	restarts int
	failPath string
}

func newFakeWorkload() *fakeWorkload {
	return &fakeWorkload{files: map[string][]byte{}, secrets: map[string]bool{}}
}

func (f *fakeWorkload) WriteFile(_ context.Context, file model.WorkloadFile) (bool, error) {
	if file.Path == f.failPath {
		return false, errors.New("injected write failure")
	}
	if bytes.Equal(f.files[file.Path], file.Content) {
		return false, nil
	}
	f.files[file.Path] = append([]byte{}, file.Content...)
	f.secrets[file.Path] = file.Secret
	f.writes++
	return true, nil
}

func (f *fakeWorkload) RemoveFile(_ context.Context, path string) error {
	delete(f.files, path)
	delete(f.secrets, path)
	return nil
}

func (f *fakeWorkload) ListFiles(_ context.Context, dir string) ([]string, error) {
	prefix := strings.TrimRight(dir, "/") + "/"
	var out []string
	for p := range f.files {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeWorkload) SetEnvironment(_ context.Context, _ string, env map[string]string) (bool, error) {
	if fmt.Sprint(f.env) == fmt.Sprint(env) {
		return false, nil
	}
	f.env = env
	return true, nil
}

func (f *fakeWorkload) SetResources(_ context.Context, _ string, cpu, memory string) (bool, error) {
	changed := f.cpu != cpu || f.memory != memory
	f.cpu, f.memory = cpu, memory
	return changed, nil
}

func (f *fakeWorkload) Restart(_ context.Context, _ string) error {
	f.restarts++
	return nil
}

type fakePublisher struct {
	published map[model.RelationKind]map[string]string
}

func (p *fakePublisher) Publish(_ context.Context, kind model.RelationKind, fields map[string]string) error {
	if p.published == nil {
		p.published = map[model.RelationKind]map[string]string{}
	}
	p.published[kind] = fields
	return nil
}

func testConfig() operatorcfg.Config {
	cfg := operatorcfg.Defaults()
	cfg.Unit.AppName = "grafana"
	cfg.Unit.UnitID = "grafana/0"
	cfg.Unit.Address = "10.0.0.1"
	return cfg
}

func newTestLoop(leader bool) (*Loop, *fakeWorkload, *fakePublisher) {
	w := newFakeWorkload()
	p := &fakePublisher{}
	l := New(testConfig(), inmem.NewStore(), w, p, func() bool { return leader }, nil)
	return l, w, p
}

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

func datasourceEvent(relID, unitID, name, url string) Event {
	return Event{
		Kind: EventRelationChanged,
		Relation: &RelationEvent{
			Kind:       model.RelationDatasource,
			RelationID: relID,
			UnitID:     unitID,
			Fields: map[string]string{
				"source-name": name,
				"source-type": "prometheus",
				"url":         url,
			},
		},
	}
}

func TestReconcileLeaderHappyPath(t *testing.T) {
	ctx := context.Background()
	l, w, p := newTestLoop(true)

	status, err := l.HandleEvent(ctx, Event{Kind: EventStart})
	if err != nil {
		t.Fatal(err)
	}
	if status.Kind != model.StatusActive {
		t.Fatalf("status = %+v, want active", status)
	}
	if w.restarts != 1 {
		t.Fatalf("restarts = %d, want 1 (initial start)", w.restarts)
	}
	if _, ok := w.files["/etc/grafana/grafana-config.ini"]; !ok {
		t.Fatal("config file not written")
	}
	if w.env["GF_SECURITY_ADMIN_PASSWORD"] == "" {
		t.Fatal("leader must provision the admin credential")
	}
	if p.published[model.RelationMetricsEndpoint]["port"] != "3000" {
		t.Fatalf("metrics endpoint not published: %+v", p.published)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l, w, _ := newTestLoop(true)

	if _, err := l.HandleEvent(ctx, datasourceEvent("rel-1", "prom/0", "prom", "http://prom:9090")); err != nil {
		t.Fatal(err)
	}
	writes, restarts := w.writes, w.restarts

	status, err := l.Reconcile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status.Kind != model.StatusActive {
		t.Fatalf("status = %+v", status)
	}
	if w.writes != writes || w.restarts != restarts {
		t.Fatalf("second pass performed writes: writes %d→%d restarts %d→%d",
			writes, w.writes, restarts, w.restarts)
	}
}

func TestDashboardChangeDoesNotRestart(t *testing.T) {
	ctx := context.Background()
	l, w, _ := newTestLoop(true)

	if _, err := l.HandleEvent(ctx, Event{Kind: EventStart}); err != nil {
		t.Fatal(err)
	}
	restarts := w.restarts

	_, err := l.HandleEvent(ctx, Event{
		Kind: EventRelationChanged,
		Relation: &RelationEvent{
			Kind:       model.RelationDashboard,
			RelationID: "rel-5",
			UnitID:     "loki/0",
			Fields: map[string]string{
				"owner-app": "loki",
				"content":   encodeDashboard(t, `{"title":"loki"}`),
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if w.restarts != restarts {
		t.Fatalf("dashboard change caused a restart: %d → %d", restarts, w.restarts)
	}

	found := false
	for path := range w.files {
		if strings.Contains(path, "provided_loki_") {
			found = true
		}
	}
	if !found {
		t.Fatalf("dashboard file not written: %v", keys(w.files))
	}
}

func TestMalformedRecordIsIsolated(t *testing.T) {
	ctx := context.Background()
	l, w, _ := newTestLoop(true)

	// Invalid base64 content is rejected at ingestion.
	status, err := l.HandleEvent(ctx, Event{
		Kind: EventRelationChanged,
		Relation: &RelationEvent{
			Kind:       model.RelationDashboard,
			RelationID: "rel-9",
			UnitID:     "bad/0",
			Fields:     map[string]string{"owner-app": "bad", "content": "%%%"},
		},
	})
	if err != nil {
		t.Fatalf("malformed record must not fail the pass: %v", err)
	}
	if status.Kind != model.StatusActive {
		t.Fatalf("status = %+v", status)
	}

	if _, err := l.HandleEvent(ctx, datasourceEvent("rel-1", "prom/0", "prom", "http://prom:9090")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(w.files["/etc/grafana/provisioning/datasources/datasources.yaml"]), "prom") {
		t.Fatal("valid datasource must still provision")
	}
}

func TestRelationBrokenSchedulesDeletion(t *testing.T) {
	ctx := context.Background()
	l, w, _ := newTestLoop(true)

	if _, err := l.HandleEvent(ctx, datasourceEvent("rel-1", "prom/0", "prom", "http://prom:9090")); err != nil {
		t.Fatal(err)
	}
	_, err := l.HandleEvent(ctx, Event{
		Kind: EventRelationBroken,
		Relation: &RelationEvent{
			Kind:       model.RelationDatasource,
			RelationID: "rel-1",
			UnitID:     "prom/0",
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	doc := string(w.files["/etc/grafana/provisioning/datasources/datasources.yaml"])
	if !strings.Contains(doc, "deleteDatasources") || !strings.Contains(doc, "prom") {
		t.Fatalf("departed datasource not scheduled for deletion:\n%s", doc)
	}
}

func TestConfigChangedTakesEffect(t *testing.T) {
	ctx := context.Background()
	w := newFakeWorkload()
	updated := testConfig()
	updated.Workload.Port = 3001
	l := New(testConfig(), inmem.NewStore(), w, nil, func() bool { return true },
		func() (*operatorcfg.Config, error) { return &updated, nil })

	if _, err := l.HandleEvent(ctx, Event{Kind: EventStart}); err != nil {
		t.Fatal(err)
	}
	if w.env["GF_SERVER_HTTP_PORT"] != "3000" {
		t.Fatalf("initial port = %q, want 3000", w.env["GF_SERVER_HTTP_PORT"])
	}

	status, err := l.HandleEvent(ctx, Event{Kind: EventConfigChanged})
	if err != nil {
		t.Fatal(err)
	}
	if status.Kind != model.StatusActive {
		t.Fatalf("status = %+v", status)
	}
	if w.env["GF_SERVER_HTTP_PORT"] != "3001" {
		t.Fatalf("port after config change = %q, want 3001", w.env["GF_SERVER_HTTP_PORT"])
	}
}

func TestConfigChangedRejectsInvalidConfig(t *testing.T) {
	ctx := context.Background()
	w := newFakeWorkload()
	l := New(testConfig(), inmem.NewStore(), w, nil, func() bool { return true },
		func() (*operatorcfg.Config, error) { return nil, errors.New("port 0 out of range") })

	if _, err := l.HandleEvent(ctx, Event{Kind: EventStart}); err != nil {
		t.Fatal(err)
	}
	env := fmt.Sprint(w.env)

	status, err := l.HandleEvent(ctx, Event{Kind: EventConfigChanged})
	if err == nil {
		t.Fatal("invalid configuration must fail the event")
	}
	if status.Kind != model.StatusBlocked {
		t.Fatalf("status = %+v, want blocked", status)
	}
	if fmt.Sprint(w.env) != env {
		t.Fatal("rejected configuration must not reach the workload")
	}
}

func TestNonLeaderWithoutPrimaryBlocks(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLoop(false)

	for i := 0; i < noPrimaryLimit-1; i++ {
		status, err := l.Reconcile(ctx)
		if err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
		if status.Kind != model.StatusWaiting {
			t.Fatalf("pass %d status = %+v, want waiting", i, status)
		}
	}

	status, err := l.Reconcile(ctx)
	if err != model.ErrNoPrimary {
		t.Fatalf("err = %v, want ErrNoPrimary", err)
	}
	if status.Kind != model.StatusBlocked {
		t.Fatalf("status = %+v, want blocked", status)
	}
}

func TestApplyFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	l, w, _ := newTestLoop(true)
	w.failPath = "/etc/grafana/provisioning/datasources/datasources.yaml"

	status, err := l.Reconcile(ctx)
	var aerr *model.ApplyError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected ApplyError, got %v", err)
	}
	if status.Kind != model.StatusMaintenance {
		t.Fatalf("status = %+v, want maintenance", status)
	}

	w.failPath = ""
	status, err = l.Reconcile(ctx)
	if err != nil {
		t.Fatalf("retry after clearing the fault: %v", err)
	}
	if status.Kind != model.StatusActive {
		t.Fatalf("status after retry = %+v", status)
	}
}

func keys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
