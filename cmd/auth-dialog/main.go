package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "auth-dialog",
		Short: "Login and registration dialog server",
		Long: "auth-dialog renders the login/registration dialog from the authentication " +
			"configuration served by a backend or stored in a local settings table.",
		Example: "  auth-dialog serve --config auth-dialog.yaml\n" +
			"  auth-dialog settings set security:registrationMode Restricted\n" +
			"  auth-dialog settings show",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	root.AddCommand(newServeCmd())
	root.AddCommand(newSettingsCmd())
	return root
}
