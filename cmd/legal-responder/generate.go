// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/legal-responder/pkg/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate <document-id>",
	Short: "Draft a response to a processed document",
	Long: `Generate analyzes a classified document, retrieves precedent passages
from other documents, drafts a response in the requested tone and scores
its confidence. The response is stored only when every stage succeeds;
generating again creates a new, independent response.

Tones: professional, formal, conciliatory, assertive.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringP("type", "t", string(types.ResponseProfessional), "response tone")
	generateCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	tone, _ := cmd.Flags().GetString("type")
	rt, err := types.ParseResponseType(tone)
	if err != nil {
		return err
	}

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, cancel := signalContext()
	defer cancel()

	resp, err := eng.GenerateResponse(ctx, args[0], rt)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(cmd.OutOrStdout(), resp)
	}
	printResponse(cmd.OutOrStdout(), resp)
	return nil
}

func printResponse(w io.Writer, r types.Response) {
	fmt.Fprintf(w, "Response %s (%s) for %s\n", r.ID, r.Type, r.DocumentID)
	fmt.Fprintf(w, "Confidence: %.0f%%\n", r.Confidence*100)
	if r.Reasoning != "" {
		fmt.Fprintf(w, "Reasoning:  %s\n", r.Reasoning)
	}
	for _, kp := range r.KeyPoints {
		fmt.Fprintf(w, "  - %s\n", kp)
	}
	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintln(w, r.Text)
	fmt.Fprintln(w, strings.Repeat("-", 72))
	if len(r.Precedents) == 0 {
		fmt.Fprintln(w, "No precedents used.")
		return
	}
	fmt.Fprintln(w, "Precedents:")
	for i, p := range r.Precedents {
		fmt.Fprintf(w, "  %d. %s (%.2f) %s\n", i+1, p.ChunkID, p.Score, p.Rationale)
	}
}
