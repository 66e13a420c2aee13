package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/CMiddleton3/vmrestcli/internal/client"
	"github.com/CMiddleton3/vmrestcli/internal/config"
	"github.com/CMiddleton3/vmrestcli/internal/shared/logging"
	"github.com/CMiddleton3/vmrestcli/internal/supervisor"
)

// serverProcessName matches the vmrest entry in the OS process table.
const serverProcessName = "vmrest.exe"

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func configFromCmd(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil || path == "" {
		path = config.DefaultFile
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if api, err := cmd.Root().PersistentFlags().GetString("api"); err == nil && api != "" {
		cfg.BaseURL = api
	}
	return cfg, nil
}

func clientFromCmd(cmd *cobra.Command) (*client.Client, config.Config, error) {
	cfg, err := configFromCmd(cmd)
	if err != nil {
		return nil, config.Config{}, err
	}
	api, err := client.New(cfg.BaseURL, cfg.Username, cfg.Password, cfg.RequestTimeout)
	if err != nil {
		return nil, config.Config{}, err
	}
	return api, cfg, nil
}

func handleFromConfig(cmd *cobra.Command, cfg config.Config) (*supervisor.Handle, error) {
	return supervisor.New(cmd.Context(), supervisor.Params{
		ExecutablePath: cfg.VMRestPath,
		ProcessName:    serverProcessName,
		BaseURL:        cfg.BaseURL,
		Table:          supervisor.NewOSProcessTable(),
		Launcher:       supervisor.NewExecLauncher(),
		Probe:          supervisor.NewHTTPProbe(),
		ProbeTimeout:   cfg.ProbeTimeout,
		StartupTimeout: cfg.StartupTimeout,
		ShutdownSettle: cfg.ShutdownSettle,
		Logger:         logging.New("supervisor"),
		Out:            cmd.OutOrStdout(),
	})
}

// runBracketed wraps a command body with the optional --go-live / --go-off
// server start/stop pair.
func runBracketed(cmd *cobra.Command, cfg config.Config, body func() error) error {
	goLive, _ := cmd.Root().PersistentFlags().GetBool("go-live")
	goOff, _ := cmd.Root().PersistentFlags().GetBool("go-off")

	var handle *supervisor.Handle
	if goLive || goOff {
		var err error
		handle, err = handleFromConfig(cmd, cfg)
		if err != nil {
			return err
		}
	}

	if goLive {
		if !handle.Start(cmd.Context()) {
			return fmt.Errorf("management server did not start")
		}
	}

	bodyErr := body()

	if goOff {
		if !handle.Stop(cmd.Context()) && bodyErr == nil {
			bodyErr = fmt.Errorf("management server did not stop")
		}
	}
	return bodyErr
}
