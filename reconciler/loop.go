// Package reconciler drives the aggregate, synthesize, diff, apply
// pipeline. Every event funnels into the same full pass, so a pass after
// an unchanged event is a no-op against the workload.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/canonical/grafana-k8s-operator/config/operatorcfg"
	"github.com/canonical/grafana-k8s-operator/domain"
	"github.com/canonical/grafana-k8s-operator/domain/model"
	"github.com/canonical/grafana-k8s-operator/internal/logging"
	"github.com/canonical/grafana-k8s-operator/internal/naming"
	"github.com/canonical/grafana-k8s-operator/peer"
	"github.com/canonical/grafana-k8s-operator/relation"
	"github.com/canonical/grafana-k8s-operator/synthesis"
)

// Replication sidecar artifacts.
const (
	replicationConfigPath = "/etc/replication/replication.yaml"
	replicationCertPath   = "/etc/replication/replication.crt"
	replicationKeyPath    = "/etc/replication/replication.key"
	replicationCAPath     = "/etc/replication/replication-ca.crt"
)

// noPrimaryLimit is the number of consecutive passes without a viable
// primary before the unit reports the blocked condition.
const noPrimaryLimit = 3

// Loop owns the unit's reconciliation state.
type Loop struct {
	cfg       operatorcfg.Config
	reload    func() (*operatorcfg.Config, error)
	agg       *relation.Aggregator
	coord     *peer.Coordinator
	store     domain.PeerStore
	workload  model.WorkloadPort
	publisher model.RelationPublisher
	isLeader  func() bool

	lastApplied     string
	lastRestart     string
	noPrimaryRounds int
	status          model.UnitStatus
}

// New wires a loop. publisher may be nil when the deployment has no
// downstream relations; reload may be nil when the configuration cannot
// change over the process lifetime.
func New(cfg operatorcfg.Config, store domain.PeerStore, workload model.WorkloadPort, publisher model.RelationPublisher, isLeader func() bool, reload func() (*operatorcfg.Config, error)) *Loop {
	return &Loop{
		cfg:       cfg,
		reload:    reload,
		agg:       relation.NewAggregator(),
		coord:     peer.NewCoordinator(store, cfg.Unit.UnitID, cfg.Unit.Address),
		store:     store,
		workload:  workload,
		publisher: publisher,
		isLeader:  isLeader,
		status:    model.Waiting("waiting for first reconciliation"),
	}
}

// Status returns the status reported after the last pass.
func (l *Loop) Status() model.UnitStatus { return l.status }

// HandleEvent folds one event into aggregation state and runs a full
// reconciliation pass.
func (l *Loop) HandleEvent(ctx context.Context, ev Event) (model.UnitStatus, error) {
	logger := logging.FromContext(ctx)

	switch ev.Kind {
	case EventStop:
		return l.status, nil
	case EventRelationChanged:
		rec := model.RelationRecord{
			Kind:       ev.Relation.Kind,
			RelationID: ev.Relation.RelationID,
			UnitID:     ev.Relation.UnitID,
			Fields:     ev.Relation.Fields,
			ReceivedAt: time.Now(),
		}
		if err := l.agg.Ingest(ctx, rec); err != nil {
			var verr *model.ValidationError
			if !errors.As(err, &verr) {
				return l.status, err
			}
			// Malformed records are excluded; everything else proceeds.
			logger.Warn(ctx, "relation record rejected", "error", verr)
		}
	case EventRelationBroken:
		l.agg.Remove(ctx, model.InstanceKey{
			RelationID: ev.Relation.RelationID,
			UnitID:     ev.Relation.UnitID,
		}, ev.Relation.Kind)
	case EventConfigChanged:
		if l.reload != nil {
			cfg, err := l.reload()
			if err != nil {
				l.status = model.Blocked("invalid configuration: " + err.Error())
				return l.status, err
			}
			l.cfg = *cfg
		}
	case EventLeaderElected:
		if _, err := l.coord.PromoteSelf(ctx); err != nil {
			l.status = model.Maintenance("promotion failed: " + err.Error())
			return l.status, err
		}
	}

	return l.Reconcile(ctx)
}

// Reconcile runs one full pass: aggregate, synthesize, diff, apply,
// coordinate peers, republish facts. Reconciling twice with no input
// change performs zero workload writes.
func (l *Loop) Reconcile(ctx context.Context) (model.UnitStatus, error) {
	logger := logging.FromContext(ctx)

	if err := l.coord.PublishAddress(ctx); err != nil {
		l.status = model.Maintenance("peer store unavailable: " + err.Error())
		return l.status, err
	}

	if _, err := l.coord.Observe(ctx); err != nil {
		var ferr *model.FencingError
		if !errors.As(err, &ferr) {
			l.status = model.Maintenance("peer observation failed: " + err.Error())
			return l.status, err
		}
		logger.Warn(ctx, "demoted to standby", "error", ferr)
	}

	// The leader owns the primary assignment; claim it when it does not
	// already name this unit.
	if l.isLeader() && l.coord.State() != peer.StatePrimary {
		if _, err := l.coord.PromoteSelf(ctx); err != nil {
			l.status = model.Maintenance("promotion failed: " + err.Error())
			return l.status, err
		}
	}

	state := l.coord.State()
	if state != peer.StatePrimary && state != peer.StateReplica {
		l.noPrimaryRounds++
		if l.noPrimaryRounds >= noPrimaryLimit {
			l.status = model.Blocked(model.ErrNoPrimary.Error())
			return l.status, model.ErrNoPrimary
		}
		l.status = model.Waiting("waiting for primary assignment")
		return l.status, nil
	}
	l.noPrimaryRounds = 0

	password, err := peer.EnsureAdminPassword(ctx, l.store, l.isLeader())
	if err == model.ErrCredentialNotReady {
		l.status = model.Waiting("waiting for admin credential")
		return l.status, nil
	}
	if err != nil {
		l.status = model.Maintenance("credential setup failed: " + err.Error())
		return l.status, err
	}

	snap := l.agg.Snapshot(ctx)
	desired, notes := synthesis.Synthesize(ctx, snap, synthesis.Inputs{
		Config:        l.cfg,
		IsLeader:      l.isLeader(),
		AdminPassword: password,
	})
	for _, n := range notes {
		logger.Warn(ctx, "synthesis note", "component", n.Component, "message", n.Message)
	}

	sidecar, err := peer.RenderSidecarConfig(state, l.coord.Primary(), synthesis.DatabasePath)
	if err != nil {
		l.status = model.Maintenance(err.Error())
		return l.status, err
	}

	applyKey := fmt.Sprintf("%s:%s:%s", desired.Checksum(), naming.ShortHash([]byte(sidecar), 7), state)
	if applyKey == l.lastApplied {
		l.publishFacts(ctx, desired)
		l.status = model.Active()
		return l.status, nil
	}

	if err := l.apply(ctx, desired, sidecar, state); err != nil {
		l.status = model.Maintenance("apply failed, will retry: " + err.Error())
		return l.status, err
	}

	// Dashboard-only changes reach the workload through the provisioning
	// watcher; everything else needs a restart.
	if rc := desired.RestartChecksum(); rc != l.lastRestart {
		if err := l.workload.Restart(ctx, synthesis.WorkloadService); err != nil {
			aerr := &model.ApplyError{Artifact: "restart", Err: err}
			l.status = model.Maintenance("apply failed, will retry: " + aerr.Error())
			return l.status, aerr
		}
		l.lastRestart = rc
	}

	l.lastApplied = applyKey
	l.publishFacts(ctx, desired)
	l.status = model.Active()
	return l.status, nil
}

func (l *Loop) apply(ctx context.Context, desired *model.DesiredConfig, sidecar string, state peer.State) error {
	write := func(artifact, path string, content []byte, secret bool) error {
		if _, err := l.workload.WriteFile(ctx, model.WorkloadFile{Path: path, Content: content, Secret: secret}); err != nil {
			return &model.ApplyError{Artifact: artifact, Err: err}
		}
		return nil
	}

	if err := write("config-ini", synthesis.ConfigINIPath, []byte(desired.ConfigINI), false); err != nil {
		return err
	}
	if err := write("datasources", synthesis.DatasourcesPath, []byte(desired.Datasources), false); err != nil {
		return err
	}
	if err := write("dashboard-provisioning", synthesis.DashboardsConfig, []byte(desired.DashboardProvisioning), false); err != nil {
		return err
	}
	if err := l.applyDashboards(ctx, desired.Dashboards); err != nil {
		return err
	}
	if err := l.applyTLS(ctx, desired, write); err != nil {
		return err
	}
	if err := l.applyReplication(ctx, sidecar, state, write); err != nil {
		return err
	}

	if _, err := l.workload.SetEnvironment(ctx, synthesis.WorkloadService, desired.Environment); err != nil {
		return &model.ApplyError{Artifact: "environment", Err: err}
	}
	if _, err := l.workload.SetResources(ctx, synthesis.WorkloadService,
		l.cfg.Resources.CPULimit, l.cfg.Resources.MemoryLimit); err != nil {
		return &model.ApplyError{Artifact: "resources", Err: err}
	}
	return nil
}

// applyDashboards writes the desired dashboard files and removes stale
// relation-provided files no longer desired. Files outside the managed
// prefix are left alone.
func (l *Loop) applyDashboards(ctx context.Context, dashboards []model.Dashboard) error {
	desired := make(map[string]bool, len(dashboards))
	for _, d := range dashboards {
		path := synthesis.DashboardsDir + "/" + naming.DashboardFileName(d.OwnerApp, d.Content)
		desired[path] = true
		if _, err := l.workload.WriteFile(ctx, model.WorkloadFile{Path: path, Content: d.Content}); err != nil {
			return &model.ApplyError{Artifact: "dashboard " + d.OwnerApp, Err: err}
		}
	}

	existing, err := l.workload.ListFiles(ctx, synthesis.DashboardsDir)
	if err != nil {
		return &model.ApplyError{Artifact: "dashboards", Err: err}
	}
	prefix := synthesis.DashboardsDir + "/" + naming.DashboardFilePrefix
	for _, path := range existing {
		if !desired[path] && len(path) > len(prefix) && path[:len(prefix)] == prefix {
			if err := l.workload.RemoveFile(ctx, path); err != nil {
				return &model.ApplyError{Artifact: "dashboard cleanup", Err: err}
			}
		}
	}
	return nil
}

func (l *Loop) applyTLS(ctx context.Context, desired *model.DesiredConfig, write func(string, string, []byte, bool) error) error {
	if desired.TLS == nil {
		for _, path := range []string{synthesis.TLSCertPath, synthesis.TLSKeyPath, synthesis.TrustedCAPath} {
			if err := l.workload.RemoveFile(ctx, path); err != nil {
				return &model.ApplyError{Artifact: "tls cleanup", Err: err}
			}
		}
		return nil
	}
	if err := write("tls-cert", synthesis.TLSCertPath, []byte(desired.TLS.Cert), false); err != nil {
		return err
	}
	if err := write("tls-key", synthesis.TLSKeyPath, []byte(desired.TLS.Key), true); err != nil {
		return err
	}
	if desired.TrustedCA != "" {
		return write("trusted-ca", synthesis.TrustedCAPath, []byte(desired.TrustedCA), false)
	}
	return nil
}

func (l *Loop) applyReplication(ctx context.Context, sidecar string, state peer.State, write func(string, string, []byte, bool) error) error {
	if err := write("replication-config", replicationConfigPath, []byte(sidecar), false); err != nil {
		return err
	}
	bundle, err := l.coord.Bundle(ctx, l.coord.Primary().TLSBundleRef)
	if err != nil {
		return &model.ApplyError{Artifact: "replication-bundle", Err: err}
	}
	if err := write("replication-ca", replicationCAPath, []byte(bundle.CAChain), false); err != nil {
		return err
	}
	if state == peer.StatePrimary {
		if err := write("replication-cert", replicationCertPath, []byte(bundle.Cert), false); err != nil {
			return err
		}
		return write("replication-key", replicationKeyPath, []byte(bundle.Key), true)
	}
	return nil
}
