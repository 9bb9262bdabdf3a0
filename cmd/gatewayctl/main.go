package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/upb/crm-gateway/cmd/gatewayctl/internal/token"
)

func NewGatewayctlCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "gatewayctl",
		Short:        "Operator tooling for the CRM gateway",
		Example:      "gatewayctl token issue --user-id u-123 --role admin",
		SilenceUsage: true,
	}

	cmd.AddCommand(
		token.NewTokenCommand(),
	)

	return cmd
}

func main() {
	cmd := NewGatewayctlCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
