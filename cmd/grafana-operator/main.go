package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/canonical/grafana-k8s-operator/internal/logging"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "grafana-operator",
		Short:   "Operator for a replicated Grafana deployment",
		Long:    "Operator for a replicated Grafana deployment",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Show help by default when no subcommand is provided.
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultConfig := os.Getenv("GRAFANA_OPERATOR_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "grafana-operator.yml"
	}
	cmd.PersistentFlags().String("config", defaultConfig, "Operator config file (env GRAFANA_OPERATOR_CONFIG)")
	cmd.PersistentFlags().String("log-format", "text", "Log format (text|json) (env GRAFANA_OPERATOR_LOG_FORMAT)")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug|info|warn|error)")

	cmd.PersistentPreRunE = func(c *cobra.Command, _ []string) error {
		format, _ := c.Flags().GetString("log-format")
		if env := os.Getenv("GRAFANA_OPERATOR_LOG_FORMAT"); env != "" { // env overrides flag
			format = env
		}
		levelStr, _ := c.Flags().GetString("log-level")
		level, err := logging.ParseLevel(levelStr)
		if err != nil {
			return err
		}
		l, err := logging.New(format, level)
		if err != nil {
			return err
		}
		ctx := logging.WithLogger(c.Context(), l)
		c.SetContext(ctx)
		return nil
	}

	cmd.AddCommand(newCmdVersion())
	cmd.AddCommand(newCmdConfig())
	cmd.AddCommand(newCmdAgent())
	cmd.AddCommand(newCmdGetAdminPassword())
	return cmd
}

func main() {
	root := newRootCmd()
	root.SetContext(context.Background())
	executed, err := root.ExecuteC()
	if err != nil {
		ctx := root.Context()
		if executed != nil {
			ctx = executed.Context()
		}
		logging.FromContext(ctx).Errorf(ctx, "Failed: %s", err)
		os.Exit(1)
	}
}
