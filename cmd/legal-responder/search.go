// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/legal-responder/internal/knowledge"
	"github.com/pdiddy/legal-responder/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find stored passages similar to a query",
	Long: `Search embeds the query and returns the most similar chunks across
all processed documents, best first. Filters restrict the result to one
document or one document kind.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntP("max-results", "n", 5, "maximum number of results to return")
	searchCmd.Flags().String("kind", "", "only chunks of documents of this kind")
	searchCmd.Flags().String("document", "", "only chunks of this document")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	n, _ := cmd.Flags().GetInt("max-results")
	kind, _ := cmd.Flags().GetString("kind")
	docID, _ := cmd.Flags().GetString("document")

	filter := knowledge.Filter{DocumentID: docID}
	if kind != "" {
		k := types.DocumentKind(strings.ToLower(kind))
		if !k.Valid() {
			return fmt.Errorf("unknown kind %q", kind)
		}
		filter.Kind = k
	}

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	results, err := eng.SearchFiltered(cmd.Context(), strings.Join(args, " "), n, filter)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(cmd.OutOrStdout(), results)
	}
	formatSearchOutput(cmd.OutOrStdout(), results)
	return nil
}

func formatSearchOutput(w io.Writer, results []types.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-5s  %-50s  %-24s  %s\n", "Rank", "Score", "Text", "File", "Page")
	fmt.Fprintln(w, strings.Repeat("-", 95))
	for _, r := range results {
		fmt.Fprintf(w, "%-4d  %.3f  %-50s  %-24s  %d\n",
			r.Rank, r.Score, truncate(r.Chunk.Text, 50), truncate(r.Chunk.Metadata.Filename, 24), r.Chunk.Metadata.Page)
	}
	fmt.Fprintf(w, "\n%d results\n", len(results))
}
