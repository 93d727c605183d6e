package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/canonical/grafana-k8s-operator/adapters/store/inmem"
	"github.com/canonical/grafana-k8s-operator/config/operatorcfg"
	"github.com/canonical/grafana-k8s-operator/domain/model"
	"github.com/canonical/grafana-k8s-operator/reconciler"
)

type stubWorkload struct {
	files map[string][]byte
	env   map[string]string
}

func newStubWorkload() *stubWorkload {
	return &stubWorkload{files: map[string][]byte{}}
}

func (s *stubWorkload) WriteFile(_ context.Context, f model.WorkloadFile) (bool, error) {
	changed := !bytes.Equal(s.files[f.Path], f.Content)
	s.files[f.Path] = append([]byte{}, f.Content...)
	return changed, nil
}

func (s *stubWorkload) RemoveFile(_ context.Context, path string) error {
	delete(s.files, path)
	return nil
}

func (s *stubWorkload) ListFiles(context.Context, string) ([]string, error) { return nil, nil }

func (s *stubWorkload) SetEnvironment(_ context.Context, _ string, env map[string]string) (bool, error) {
	s.env = env
	return true, nil
}

func (s *stubWorkload) SetResources(context.Context, string, string, string) (bool, error) {
	return false, nil
}

func (s *stubWorkload) Restart(context.Context, string) error { return nil }

func TestRunAgentProcessesEventsUntilStop(t *testing.T) {
	cfg := operatorcfg.Defaults()
	cfg.Unit.AppName = "grafana"
	cfg.Unit.UnitID = "grafana/0"
	cfg.Unit.Address = "10.0.0.1"

	loop := reconciler.New(cfg, inmem.NewStore(), newStubWorkload(), nil,
		func() bool { return true }, nil)

	// A start event, a garbage line that must be skipped, then stop.
	in := strings.NewReader(`{"kind":"start"}` + "\n" +
		"not json\n" +
		`{"kind":"stop"}` + "\n")
	var out bytes.Buffer

	err := runAgent(context.Background(), loop, in, json.NewEncoder(&out), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `"status":"active"`) {
		t.Fatalf("no active status reported:\n%s", out.String())
	}
	if loop.Status().Kind != model.StatusActive {
		t.Fatalf("final status = %+v", loop.Status())
	}
}
