package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/CMiddleton3/vmrestcli/internal/client"
)

func newNetworksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "networks",
		Short: "Inspect host virtual networks",
	}
	cmd.AddCommand(newNetworksListCmd())
	return cmd
}

func newNetworksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List host virtual networks",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, cfg, err := clientFromCmd(cmd)
			if err != nil {
				return err
			}
			return runBracketed(cmd, cfg, func() error {
				networks, err := api.ListNetworks(cmd.Context())
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Error fetching networks: %v\n", err)
					return nil
				}
				displayNetworks(cmd.OutOrStdout(), networks)
				return nil
			})
		},
	}
}

func displayNetworks(out io.Writer, networks []client.Network) {
	if len(networks) == 0 {
		fmt.Fprintln(out, "No networks available.")
		return
	}
	for i, net := range networks {
		fmt.Fprintf(out, "\n%d. Network Name: %s\n", i+1, orUnknown(net.Name))
		fmt.Fprintf(out, "   Type: %s\n", orUnknown(net.Type))
		fmt.Fprintf(out, "   DHCP: %s\n", orUnknown(net.DHCP))
		fmt.Fprintf(out, "   Subnet: %s\n", orUnknown(net.Subnet))
		fmt.Fprintf(out, "   Mask: %s\n", orUnknown(net.Mask))
	}
}
