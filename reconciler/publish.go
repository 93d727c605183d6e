package reconciler

import (
	"context"
	"strconv"

	"github.com/canonical/grafana-k8s-operator/domain/model"
	"github.com/canonical/grafana-k8s-operator/internal/logging"
)

// publishFacts republishes derived facts downstream: the scrape target
// for the metrics endpoint and the service identity. Publishing is best
// effort; a failure never fails the pass.
func (l *Loop) publishFacts(ctx context.Context, desired *model.DesiredConfig) {
	if l.publisher == nil {
		return
	}
	logger := logging.FromContext(ctx)

	if err := l.publisher.Publish(ctx, model.RelationMetricsEndpoint, map[string]string{
		"hostname": l.cfg.Unit.Address,
		"port":     strconv.Itoa(l.cfg.Workload.Port),
		"path":     "/metrics",
	}); err != nil {
		logger.Warn(ctx, "metrics endpoint publish failed", "error", err)
	}

	if err := l.publisher.Publish(ctx, model.RelationMetadata, map[string]string{
		"name": l.cfg.Unit.AppName,
		"url":  desired.Environment["GF_SERVER_ROOT_URL"],
	}); err != nil {
		logger.Warn(ctx, "metadata publish failed", "error", err)
	}
}
