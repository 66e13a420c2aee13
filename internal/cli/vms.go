package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/CMiddleton3/vmrestcli/internal/client"
)

// detailParams are the VMX parameters shown with --all-info, mirroring the
// detail block of the interactive listing.
var detailParams = []string{"guestOS", "displayName", "workingDir", "guestInfo.detailed.data"}

const maxParamOutput = 120

func newVMsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vms",
		Short: "Manage virtual machines",
	}

	cmd.AddCommand(newVMsListCmd())
	cmd.AddCommand(newVMsIDsCmd())
	cmd.AddCommand(newVMsPowerCmd())
	cmd.AddCommand(newVMsPowerActionCmd("on", "Power on a VM"))
	cmd.AddCommand(newVMsPowerActionCmd("off", "Power off a VM"))
	return cmd
}

func newVMsListCmd() *cobra.Command {
	var allInfo bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List VMs with power state and guest details",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, cfg, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			return runBracketed(cmd, cfg, func() error {
				vms, err := api.ListVMs(cmd.Context())
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Error fetching VMs: %v\n", err)
					return nil
				}
				displayVMs(cmd.Context(), cmd.OutOrStdout(), api, vms, allInfo)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&allInfo, "all-info", false, "Also show guest OS, display name and working directory")
	return cmd
}

func newVMsIDsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ids",
		Short: "List VM names, paths and ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, cfg, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			return runBracketed(cmd, cfg, func() error {
				vms, err := api.ListVMs(cmd.Context())
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Error fetching VMs: %v\n", err)
					return nil
				}
				for _, vm := range vms {
					fmt.Fprintf(cmd.OutOrStdout(), "VM Name %s VM Path: %s, VM ID: %s\n", vm.DisplayName(), vm.Path, vm.ID)
				}
				return nil
			})
		},
	}
}

func newVMsPowerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "power <id>",
		Short: "Show the power state of a VM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, cfg, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			return runBracketed(cmd, cfg, func() error {
				state := powerStateOrUnknown(cmd.Context(), cmd.OutOrStdout(), api, args[0])
				name, _ := api.VMName(cmd.Context(), args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "Power state of %s VM %s: %s\n", name, args[0], state)
				return nil
			})
		},
	}
}

func newVMsPowerActionCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, cfg, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			return runBracketed(cmd, cfg, func() error {
				changePower(cmd.Context(), cmd.OutOrStdout(), api, args[0], action)
				return nil
			})
		},
	}
}

// changePower drives SetPower and reports the outcome, including the no-op
// path when the VM is already in the requested state.
func changePower(ctx context.Context, out io.Writer, api *client.Client, id, action string) {
	name, _ := api.VMName(ctx, id)
	state, err := api.SetPower(ctx, id, action)
	switch {
	case errors.Is(err, client.ErrAlreadyInState):
		if action == "on" {
			fmt.Fprintf(out, "VM %s %s is Already Powered On!\n", name, id)
		} else {
			fmt.Fprintf(out, "VM %s %s is Already Powered Off!\n", name, id)
		}
	case err != nil:
		fmt.Fprintf(out, "Error changing power state for VM %s: %v\n", id, err)
	default:
		fmt.Fprintf(out, "VM %s %s is now %s.\n", name, id, state)
	}
}

func displayVMs(ctx context.Context, out io.Writer, api *client.Client, vms []client.VM, allInfo bool) {
	if len(vms) == 0 {
		fmt.Fprintln(out, "No VMs available.")
		return
	}

	for i, vm := range vms {
		fmt.Fprintf(out, "\n%d. VM Name: %s\n", i+1, vm.DisplayName())
		fmt.Fprintf(out, "   VM Path: %s\n", vm.Path)
		fmt.Fprintf(out, "   VM ID: %s\n", vm.ID)

		state := powerStateOrUnknown(ctx, out, api, vm.ID)
		fmt.Fprintf(out, "   Power State: %s\n", state)

		if state == client.PoweredOn {
			displayGuestDetails(ctx, out, api, vm.ID)
		}
		if allInfo {
			displayParams(ctx, out, api, vm.ID)
		}
	}
}

func displayGuestDetails(ctx context.Context, out io.Writer, api *client.Client, id string) {
	if ip, err := api.IP(ctx, id); err != nil {
		fmt.Fprintf(out, "Error fetching IP address for VM %s: %v\n", id, err)
	} else {
		fmt.Fprintf(out, "   IP Address: %s\n", orUnknown(ip))
	}

	if nics, err := api.NICs(ctx, id); err != nil {
		fmt.Fprintf(out, "Error fetching MAC address for VM %s: %v\n", id, err)
	} else {
		for _, nic := range nics {
			fmt.Fprintf(out, "   MAC Address (NIC %d): %s\n", nic.Index, orUnknown(nic.MACAddress))
		}
	}

	if settings, err := api.GetSettings(ctx, id); err != nil {
		fmt.Fprintf(out, "Error fetching settings for VM %s: %v\n", id, err)
	} else {
		fmt.Fprintf(out, "   Processors: %d\n", settings.CPU.Processors)
		fmt.Fprintf(out, "   Memory: %d MB\n", settings.MemoryMB)
	}
}

func displayParams(ctx context.Context, out io.Writer, api *client.Client, id string) {
	for _, param := range detailParams {
		value, err := api.Param(ctx, id, param)
		if err != nil {
			fmt.Fprintf(out, "Error fetching config param %s for %s: %v\n", param, id, err)
			continue
		}
		if len(value) > maxParamOutput {
			value = value[:maxParamOutput]
		}
		fmt.Fprintf(out, "   %s : %s\n", param, orUnknown(value))
	}
}

func powerStateOrUnknown(ctx context.Context, out io.Writer, api *client.Client, id string) string {
	state, err := api.PowerState(ctx, id)
	if err != nil {
		fmt.Fprintf(out, "Error fetching power state for VM %s: %v\n", id, err)
		return "Unknown"
	}
	return orUnknown(state)
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
