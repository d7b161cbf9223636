package main

import (
	"fmt"

	dialog "github.com/goliatone/go-auth-dialog"
	"github.com/goliatone/go-auth-dialog/internal/config"
	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or change the local authentication settings",
	}
	cmd.AddCommand(newSettingsSetCmd(), newSettingsShowCmd())
	return cmd
}

func newSettingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "set <key> <value>",
		Short:   "Upsert a single setting",
		Example: "  auth-dialog settings set security:passport-github:isEnabled true",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			src, cleanup, err := openSettings(cmd.Context(), cfg.GetSQLiteDSN())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := src.Put(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			// read back so invalid values are reported right away
			if _, err := src.Fetch(cmd.Context()); err != nil {
				return fmt.Errorf("setting stored but configuration is invalid: %w", err)
			}
			return nil
		},
	}
}

func newSettingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the configuration the dialog would render",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			src, cleanup, err := openSettings(cmd.Context(), cfg.GetSQLiteDSN())
			if err != nil {
				return err
			}
			defer cleanup()

			authCfg, err := src.Fetch(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), print.MaybePrettyJSON(dialog.NewConfigPayload(authCfg)))
			return nil
		},
	}
}
