package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage the vmrest management server process",
	}
	cmd.AddCommand(newServerStartCmd())
	cmd.AddCommand(newServerStopCmd())
	cmd.AddCommand(newServerStatusCmd())
	return cmd
}

func newServerStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the management server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromCmd(cmd)
			if err != nil {
				return err
			}
			handle, err := handleFromConfig(cmd, cfg)
			if err != nil {
				return err
			}
			if !handle.Start(cmd.Context()) {
				return fmt.Errorf("management server did not start")
			}
			return nil
		},
	}
}

func newServerStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the management server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromCmd(cmd)
			if err != nil {
				return err
			}
			handle, err := handleFromConfig(cmd, cfg)
			if err != nil {
				return err
			}
			if !handle.Stop(cmd.Context()) {
				return fmt.Errorf("management server did not stop")
			}
			return nil
		},
	}
}

func newServerStatusCmd() *cobra.Command {
	var checkRest bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether the management server is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromCmd(cmd)
			if err != nil {
				return err
			}
			handle, err := handleFromConfig(cmd, cfg)
			if err != nil {
				return err
			}
			if handle.IsRunning(cmd.Context(), checkRest) {
				fmt.Fprintln(cmd.OutOrStdout(), "Management server is running.")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Management server is not running.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkRest, "check-rest", true, "Also probe the REST endpoint")
	return cmd
}
