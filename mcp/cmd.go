package mcp

import (
	"github.com/spf13/cobra"
)

// GatewayFactory builds the gateway once the command line has been parsed
type GatewayFactory func(cmd *cobra.Command) (Gateway, error)

// Command returns the MCP server command
func Command(factory GatewayFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := factory(cmd)
			if err != nil {
				return err
			}
			return NewServer(gw).Run()
		},
	}
}
