// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/legal-responder/internal/engine"
	"github.com/pdiddy/legal-responder/pkg/types"
)

var processCmd = &cobra.Command{
	Use:   "process <file-dir-or-url>...",
	Short: "Extract, classify and index legal PDFs",
	Long: `Process reads each PDF, extracts its text layer, splits it into
overlapping chunks, embeds and classifies it, and stores the document with
its chunks. Directories are expanded to the PDFs they contain; http(s)
URLs are downloaded first.

A single file prints the resulting document. Several files are processed
concurrently; one failure does not stop the others and every file gets a
status line. Files whose bytes were already processed are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	paths, err := expandPaths(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no PDF files found in %s", strings.Join(args, ", "))
	}

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, cancel := signalContext()
	defer cancel()

	jsonOutput, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()

	if len(paths) == 1 && len(args) == 1 && !isDir(args[0]) {
		doc, err := eng.ProcessSource(ctx, paths[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			doc.Text = ""
			return printJSON(out, doc)
		}
		printDocument(out, doc, false)
		return nil
	}

	progress := out
	if jsonOutput {
		progress = cmd.ErrOrStderr()
	}
	summary, err := eng.ProcessBatch(ctx, paths, progress)
	if err != nil {
		return err
	}
	if jsonOutput {
		if err := printJSON(out, summary); err != nil {
			return err
		}
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d document(s) failed processing", summary.Failed)
	}
	return nil
}

// expandPaths replaces directories with the PDFs directly inside them.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, a := range args {
		if !isDir(a) {
			paths = append(paths, a)
			continue
		}
		found, err := engine.PDFsInDir(a)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	return paths, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func printDocument(w io.Writer, d types.Document, withText bool) {
	fmt.Fprintf(w, "ID:         %s\n", d.ID)
	fmt.Fprintf(w, "File:       %s\n", d.Filename)
	fmt.Fprintf(w, "Kind:       %s\n", d.Kind)
	fmt.Fprintf(w, "Pages:      %d\n", len(d.Pages))
	fmt.Fprintf(w, "Words:      %d\n", d.WordCount)
	fmt.Fprintf(w, "Chunks:     %d\n", d.ChunkCount)
	fmt.Fprintf(w, "Created:    %s\n", d.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Parties:    %s\n", listOrNone(d.Parties))
	fmt.Fprintf(w, "Dates:      %s\n", listOrNone(d.Dates))
	fmt.Fprintln(w, "Issues:")
	if len(d.Issues) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for i, is := range d.Issues {
		fmt.Fprintf(w, "  %d. %s\n", i+1, is)
	}
	fmt.Fprintf(w, "Summary:    %s\n", d.Summary)
	if len(d.ResponseIDs) > 0 {
		fmt.Fprintf(w, "Responses:  %s\n", strings.Join(d.ResponseIDs, ", "))
	}
	if withText {
		fmt.Fprintf(w, "\n%s\n", d.Text)
	}
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, "; ")
}
