// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/legal-responder/internal/engine"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export documents and responses to YAML or JSON",
	Long: `Export writes every document with its generated responses (or only
the document named by --document) to stdout or to the --output file.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("format", engine.FormatYAML, "output format: yaml or json")
	exportCmd.Flags().String("document", "", "export only this document")
	exportCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	docID, _ := cmd.Flags().GetString("document")
	output, _ := cmd.Flags().GetString("output")

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	if output == "" {
		return eng.Export(cmd.Context(), format, docID, cmd.OutOrStdout())
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	if err := eng.Export(cmd.Context(), format, docID, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Exported to %s\n", output)
	return nil
}
