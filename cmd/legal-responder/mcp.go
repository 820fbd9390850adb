// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"

	"github.com/pdiddy/legal-responder/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the engine as MCP tools over stdio",
	Long: `MCP starts a Model Context Protocol server on stdin/stdout exposing
the tools process_document, generate_response, search, get_document,
delete_document and get_stats, and the legal://documents resources.
Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		srv, err := mcpserver.NewServer(eng, version, logger)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
