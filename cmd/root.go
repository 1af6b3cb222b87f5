// Package cmd defines and implements the CLI commands for the harvester
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hempwatch/harvester/internal/app"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It's a variable so tests can
// replace it with a factory that returns a stubbed container.
var newApp = func(ctx context.Context) (*app.App, error) {
	return app.New(ctx, cfgFile)
}

// newRootCmd creates and configures the root command. Services are built
// in PersistentPreRunE, injected via the command context, and closed in
// PersistentPostRun.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Harvests the latest National Hemp Report into durable storage",
		Long: `harvester checks the USDA My Market News site for a newly published
National Hemp Report, resolves its PDF, and archives it exactly once into
durable storage, reconciling against a persisted last-seen marker.`,

		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(*app.App); ok && a != nil {
				a.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; env vars with HARVESTER_ prefix also apply)")

	cmd.AddCommand(newHarvestCmd())
	cmd.AddCommand(newIndexCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	a, ok := ctx.Value(appKey).(*app.App)
	if !ok || a == nil {
		return nil, errors.New("application services not initialized")
	}
	return a, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
