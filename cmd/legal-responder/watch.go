// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/legal-responder/internal/watch"
	"github.com/pdiddy/legal-responder/pkg/types"
)

var watchCmd = &cobra.Command{
	Use:   "watch [inbox-dir]",
	Short: "Process PDFs as they are dropped into an inbox directory",
	Long: `Watch processes the PDFs already in the inbox, then every PDF created
or rewritten there until interrupted. Failures are reported and the watcher
keeps running.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Duration("debounce", 500*time.Millisecond, "how long a file must be unchanged before processing")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := "inbox"
	if len(args) == 1 {
		dir = args[0]
	}
	debounce, _ := cmd.Flags().GetDuration("debounce")

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, cancel := signalContext()
	defer cancel()

	out := cmd.OutOrStdout()
	w := watch.New(dir, eng,
		watch.WithLogger(logger),
		watch.WithDebounce(debounce),
		watch.WithResults(func(path string, doc types.Document, err error) {
			if err != nil {
				fmt.Fprintf(out, "failed    %s: %v\n", path, err)
				return
			}
			fmt.Fprintf(out, "processed %s (%s, %s)\n", path, doc.ID, doc.Kind)
		}),
	)
	return w.Run(ctx)
}
