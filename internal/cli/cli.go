package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CMiddleton3/vmrestcli/internal/config"
)

// Execute runs the Cobra-based CLI entry point.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vmrestcli",
		Short: "VMware Workstation REST command-line interface",
		Long:  "vmrestcli talks to a local vmrest management server: list VMs, query and change power state, inspect networks, and start or stop the server process itself.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringP("api", "a", envOrDefault("VMREST_BASE_URL", ""), "vmrest base URL (overrides config file)")
	cmd.PersistentFlags().StringP("config", "c", config.DefaultFile, "configuration file path")
	cmd.PersistentFlags().Bool("go-live", false, "start the management server before running the command")
	cmd.PersistentFlags().Bool("go-off", false, "stop the management server after running the command")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newVMsCmd())
	cmd.AddCommand(newNetworksCmd())
	cmd.AddCommand(newServerCmd())
	cmd.AddCommand(newConfigureCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the vmrestcli version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "vmrestcli (development)")
		},
	}
}
