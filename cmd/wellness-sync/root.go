package main

import (
	"github.com/Sternrassler/wellness-sync/pkg/config"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

func newRootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:           "wellness-sync",
		Short:         "Sync client for the wellness platform backend",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}

			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return err
			}
			if flags.BaseURL != "" {
				cfg.API.BaseURL = flags.BaseURL
			}
			if flags.LogLevel != "" {
				cfg.Log.Level = flags.LogLevel
			}
			if flags.Pretty {
				cfg.Log.Pretty = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			a, err := newApp(cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cmd.SetContext(withApp(cmd.Context(), a))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a, err := appFrom(cmd); err == nil {
				a.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&flags.BaseURL, "base-url", "", "Backend base URL (overrides config)")
	cmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&flags.Pretty, "pretty", false, "Human-readable log output")

	cmd.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newDashboardCmd(),
		newPatientsCmd(),
		newSlotsCmd(),
		newAppointmentsCmd(),
		newForumCmd(),
		newServeCmd(),
	)
	return cmd
}
