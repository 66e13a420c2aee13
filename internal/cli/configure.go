package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CMiddleton3/vmrestcli/internal/config"
)

func newConfigureCmd() *cobra.Command {
	var credentials bool

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Write the configuration file interactively",
		Long:  "Prompts for the base URL, credentials and vmrest path and writes them to the configuration file. With --credentials, additionally runs `vmrest -C` to set up the server's own username and password.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil || path == "" {
				path = config.DefaultFile
			}

			defaults := config.Default()
			out := cmd.OutOrStdout()
			in := bufio.NewScanner(cmd.InOrStdin())

			fmt.Fprintf(out, "Configure %s:\n", path)
			cfg := defaults
			cfg.BaseURL = prompt(in, out, fmt.Sprintf("Enter base URL (Enter for Default: %s): ", defaults.BaseURL), defaults.BaseURL)
			cfg.Username = prompt(in, out, "Enter username: ", "")
			cfg.Password = prompt(in, out, "Enter password: ", "")
			cfg.VMRestPath = prompt(in, out, fmt.Sprintf("Enter path to vmrest (Enter for Default: %s): ", defaults.VMRestPath), defaults.VMRestPath)

			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(out, "Configuration saved to %s\n", path)

			if credentials {
				return runCredentialSetup(cmd, cfg.VMRestPath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&credentials, "credentials", false, "Also run `vmrest -C` to configure server credentials")
	return cmd
}

func prompt(in *bufio.Scanner, out io.Writer, label, fallback string) string {
	fmt.Fprint(out, label)
	if !in.Scan() {
		return fallback
	}
	if v := strings.TrimSpace(in.Text()); v != "" {
		return v
	}
	return fallback
}

// runCredentialSetup runs the server executable's own credential dialog
// attached to our terminal. The vmrest binary stores those credentials
// itself; we only hand control over.
func runCredentialSetup(cmd *cobra.Command, exePath string) error {
	if _, err := os.Stat(exePath); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Error: server executable not found: %s\n", exePath)
		return fmt.Errorf("server executable not found: %s", exePath)
	}
	setup := exec.CommandContext(cmd.Context(), exePath, "-C")
	setup.Stdin = os.Stdin
	setup.Stdout = os.Stdout
	setup.Stderr = os.Stderr
	if err := setup.Run(); err != nil {
		return fmt.Errorf("credential setup: %w", err)
	}
	return nil
}
