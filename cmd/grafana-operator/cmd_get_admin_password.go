package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/canonical/grafana-k8s-operator/adapters/workload/api"
	"github.com/canonical/grafana-k8s-operator/config/operatorcfg"
	"github.com/canonical/grafana-k8s-operator/domain/model"
	"github.com/canonical/grafana-k8s-operator/peer"
)

// newCmdGetAdminPassword prints the dashboard URL and the provisioned
// admin credential. When someone has changed the password through the
// UI, a notice is printed instead of the stale value.
func newCmdGetAdminPassword() *cobra.Command {
	var workloadURL string
	cmd := &cobra.Command{
		Use:   "get-admin-password",
		Short: "Print the dashboard URL and admin credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			path, _ := cmd.Flags().GetString("config")
			cfg, err := operatorcfg.Load(path)
			if err != nil {
				return err
			}
			store, err := openPeerStore(cfg.PeerStoreURL)
			if err != nil {
				return err
			}

			password, err := peer.EnsureAdminPassword(ctx, store, false)
			if err == model.ErrCredentialNotReady {
				fmt.Fprintln(cmd.OutOrStdout(), "Admin credential has not been generated yet; try again shortly.")
				return nil
			}
			if err != nil {
				return err
			}

			accessURL := cfg.Workload.ExternalURL
			if accessURL == "" {
				accessURL = fmt.Sprintf("http://%s:%d", cfg.Unit.Address, cfg.Workload.Port)
			}
			if workloadURL == "" {
				workloadURL = fmt.Sprintf("http://localhost:%d", cfg.Workload.Port)
			}

			changed, err := api.NewClient(workloadURL).PasswordHasBeenChanged(ctx, cfg.Workload.AdminUser, password)
			if err == nil && changed {
				fmt.Fprintf(cmd.OutOrStdout(), "URL: %s\n", accessURL)
				fmt.Fprintln(cmd.OutOrStdout(), "The admin password has been changed by an administrator; the provisioned credential is no longer valid.")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "URL: %s\n", accessURL)
			fmt.Fprintf(cmd.OutOrStdout(), "User: %s\n", cfg.Workload.AdminUser)
			fmt.Fprintf(cmd.OutOrStdout(), "Password: %s\n", password)
			return nil
		},
	}
	cmd.Flags().StringVar(&workloadURL, "workload-url", "", "Workload API base URL for the credential probe (default http://localhost:<port>)")
	return cmd
}
