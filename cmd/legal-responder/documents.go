// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/legal-responder/pkg/types"
)

var showCmd = &cobra.Command{
	Use:   "show <document-id>",
	Short: "Show a processed document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		doc, err := eng.GetDocument(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		withText, _ := cmd.Flags().GetBool("text")
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			if !withText {
				doc.Text = ""
			}
			return printJSON(cmd.OutOrStdout(), doc)
		}
		printDocument(cmd.OutOrStdout(), doc, withText)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List processed documents, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		docs, err := eng.ListDocuments(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return printJSON(w, docs)
		}
		if len(docs) == 0 {
			fmt.Fprintln(w, "No documents.")
			return nil
		}
		fmt.Fprintf(w, "%-36s  %-9s  %-30s  %6s  %5s\n", "ID", "Kind", "File", "Chunks", "Resp")
		fmt.Fprintln(w, strings.Repeat("-", 95))
		for _, d := range docs {
			fmt.Fprintf(w, "%-36s  %-9s  %-30s  %6d  %5d\n",
				d.ID, d.Kind, truncate(d.Filename, 30), d.ChunkCount, len(d.ResponseIDs))
		}
		fmt.Fprintf(w, "\n%d documents\n", len(docs))
		return nil
	},
}

var responsesCmd = &cobra.Command{
	Use:   "responses [document-id]",
	Short: "List generated responses, or show one with --id",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		w := cmd.OutOrStdout()
		jsonOutput, _ := cmd.Flags().GetBool("json")

		if id, _ := cmd.Flags().GetString("id"); id != "" {
			resp, err := eng.GetResponse(cmd.Context(), id)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(w, resp)
			}
			printResponse(w, resp)
			return nil
		}

		var docID string
		if len(args) == 1 {
			docID = args[0]
		}
		resps, err := eng.ListResponses(cmd.Context(), docID)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(w, resps)
		}
		if len(resps) == 0 {
			fmt.Fprintln(w, "No responses.")
			return nil
		}
		fmt.Fprintf(w, "%-36s  %-36s  %-13s  %5s  %s\n", "ID", "Document", "Type", "Conf", "Created")
		fmt.Fprintln(w, strings.Repeat("-", 120))
		for _, r := range resps {
			fmt.Fprintf(w, "%-36s  %-36s  %-13s  %4.0f%%  %s\n",
				r.ID, r.DocumentID, r.Type, r.Confidence*100, r.CreatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <document-id>...",
	Short: "Delete documents with their chunks and responses",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		var failed int
		for _, id := range args {
			if err := eng.DeleteDocument(cmd.Context(), id); err != nil {
				fmt.Fprintf(os.Stderr, "failed  %s: %v\n", id, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d document(s) could not be deleted", failed)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		st, err := eng.GetStats(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return printJSON(cmd.OutOrStdout(), st)
		}
		printStats(cmd.OutOrStdout(), st)
		return nil
	},
}

func printStats(w io.Writer, st types.Stats) {
	fmt.Fprintf(w, "Documents:  %d\n", st.DocumentCount)
	fmt.Fprintf(w, "Chunks:     %d\n", st.ChunkCount)
	fmt.Fprintf(w, "Responses:  %d\n", st.ResponseCount)
	fmt.Fprintf(w, "Index size: %.1f KiB\n", float64(st.IndexSizeBytes)/1024)
}

func init() {
	showCmd.Flags().Bool("text", false, "include the extracted text")
	showCmd.Flags().Bool("json", false, "output as JSON")
	listCmd.Flags().Bool("json", false, "output as JSON")
	responsesCmd.Flags().String("id", "", "show the response with this id")
	responsesCmd.Flags().Bool("json", false, "output as JSON")
	statsCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(showCmd, listCmd, responsesCmd, deleteCmd, statsCmd)
}
