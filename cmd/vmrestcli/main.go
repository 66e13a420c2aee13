package main

import (
	"fmt"
	"os"

	"github.com/CMiddleton3/vmrestcli/internal/cli"
	"github.com/CMiddleton3/vmrestcli/internal/cli/tui"
	"github.com/CMiddleton3/vmrestcli/internal/config"
)

func main() {
	if len(os.Args) == 1 {
		cfg, err := config.Load(config.DefaultFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
			os.Exit(1)
		}
		if err := tui.Run(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "command error: %v\n", err)
		os.Exit(1)
	}
}
