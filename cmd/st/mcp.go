package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tanatools/supertag/internal/rpc"
)

var mcpCmd = &cobra.Command{
	Use:     "mcp",
	Short:   "Serve JSON-RPC tools over stdio",
	GroupID: "admin",
	Long: `Speak newline-delimited JSON-RPC 2.0 on stdin/stdout for AI tool
integration. Tools: search, tagged, stats, supertags, node, create,
sync. Diagnostics go to stderr so stdout stays protocol-clean.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		return rpc.NewServer(reg, os.Stdin, os.Stdout).Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
