package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/canonical/grafana-k8s-operator/adapters/workload/kube"
	"github.com/canonical/grafana-k8s-operator/config/operatorcfg"
	"github.com/canonical/grafana-k8s-operator/domain/model"
	"github.com/canonical/grafana-k8s-operator/internal/logging"
	"github.com/canonical/grafana-k8s-operator/reconciler"
)

// newCmdAgent returns the long-running agent command. It consumes
// JSON-encoded lifecycle events on stdin (one per line), runs a periodic
// resync, and emits status and publication lines on stdout.
func newCmdAgent() *cobra.Command {
	var (
		kubeconfig   string
		namespace    string
		leader       bool
		logOutput    string
		logDir       string
		syncInterval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the reconciliation agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			path, _ := cmd.Flags().GetString("config")
			cfg, err := operatorcfg.Load(path)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			lf, err := logging.NewLogFile(logOutput, logDir)
			if err != nil {
				return err
			}
			defer lf.Close()
			if err := logging.CleanupOldLogFiles(logDir, 7); err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("log-format")
			level, err := logging.ParseLevel(cfg.Workload.LogLevel)
			if err != nil {
				return err
			}
			logger, err := logging.NewWithWriter(format, level, lf.Writer())
			if err != nil {
				return err
			}
			ctx = logging.WithLogger(ctx, logger.With("unit", cfg.Unit.UnitID))

			store, err := openPeerStore(cfg.PeerStoreURL)
			if err != nil {
				return err
			}

			quietKlog()
			var client *kube.Client
			if kubeconfig != "" {
				client, err = kube.NewClientFromKubeconfigPath(ctx, kubeconfig, nil)
			} else {
				client, err = kube.NewClientInCluster(nil)
			}
			if err != nil {
				return err
			}
			workload := kube.NewWorkload(client, namespace, cfg.Unit.AppName)

			reload := func() (*operatorcfg.Config, error) {
				cfg, err := operatorcfg.Load(path)
				if err != nil {
					return nil, err
				}
				if err := cfg.Validate(); err != nil {
					return nil, err
				}
				return cfg, nil
			}

			out := json.NewEncoder(cmd.OutOrStdout())
			loop := reconciler.New(*cfg, store, workload, &linePublisher{enc: out},
				func() bool { return leader }, reload)

			return runAgent(ctx, loop, cmd.InOrStdin(), out, syncInterval)
		},
	}
	cmd.Flags().StringVar(&kubeconfig, "kubeconfig", "", "Kubeconfig path (default: in-cluster)")
	cmd.Flags().StringVar(&namespace, "namespace", "default", "Namespace of the workload deployment")
	cmd.Flags().BoolVar(&leader, "leader", false, "This unit currently holds group leadership")
	cmd.Flags().StringVar(&logOutput, "log-output", "-", "Log output (-|none|path)")
	cmd.Flags().StringVar(&logDir, "log-dir", "/var/log/grafana-operator", "Directory for agent log files")
	cmd.Flags().DurationVar(&syncInterval, "sync-interval", 5*time.Minute, "Periodic resync interval")
	return cmd
}

// statusLine is one stdout record reporting the unit status after a pass.
type statusLine struct {
	Type    string           `json:"type"`
	Status  model.StatusKind `json:"status"`
	Message string           `json:"message,omitempty"`
}

// publishLine is one stdout record carrying facts for a downstream
// relation.
type publishLine struct {
	Type   string             `json:"type"`
	Kind   model.RelationKind `json:"relation_kind"`
	Fields map[string]string  `json:"fields"`
}

// linePublisher forwards derived facts to the hosting platform as stdout
// lines.
type linePublisher struct{ enc *json.Encoder }

func (p *linePublisher) Publish(_ context.Context, kind model.RelationKind, fields map[string]string) error {
	return p.enc.Encode(publishLine{Type: "publish", Kind: kind, Fields: fields})
}

func runAgent(ctx context.Context, loop *reconciler.Loop, in io.Reader, out *json.Encoder, syncInterval time.Duration) error {
	logger := logging.FromContext(ctx)

	// Buffered so the scanner goroutine is not left blocked on send when
	// a stop event or cancellation ends the loop early.
	events := make(chan reconciler.Event, 1)
	errs := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			ev, err := reconciler.DecodeEvent(line)
			if err != nil {
				logger.Warn(ctx, "bad event line", "error", err)
				continue
			}
			events <- ev
		}
		errs <- scanner.Err()
	}()

	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	report := func(status model.UnitStatus) {
		if err := out.Encode(statusLine{Type: "status", Status: status.Kind, Message: status.Message}); err != nil {
			logger.Warn(ctx, "status report failed", "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			if err != nil {
				return fmt.Errorf("read events: %w", err)
			}
			return nil
		case ev := <-events:
			status, err := loop.HandleEvent(ctx, ev)
			if err != nil {
				logger.Error(ctx, "reconciliation failed", "event", ev.Kind, "error", err)
			}
			report(status)
			if ev.Kind == reconciler.EventStop {
				return nil
			}
		case <-ticker.C:
			status, err := loop.Reconcile(ctx)
			if err != nil {
				logger.Error(ctx, "periodic resync failed", "error", err)
			}
			report(status)
		}
	}
}
