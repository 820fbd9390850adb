// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the legal-responder CLI. Each
// operation of the engine is a subcommand: process, generate, search, show,
// list, responses, delete, stats and export, plus the long-running watch and
// mcp servers.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/legal-responder/internal/engine"
	"github.com/pdiddy/legal-responder/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// rootCmd is the base command for the legal-responder CLI.
var rootCmd = &cobra.Command{
	Use:   "legal-responder",
	Short: "Classify legal PDFs and draft precedent-backed responses",
	Long: `legal-responder ingests legal PDF documents, classifies them, indexes
their text for similarity search, and drafts responses grounded in precedent
passages retrieved from previously processed documents.

Documents, chunks and responses live in a local SQLite database under the
data directory. Model and embedding providers are selected in
legal-responder.yaml or through LEGAL_RESPONDER_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./legal-responder.yaml or ~/.config/legal-responder/legal-responder.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "directory holding the database (overrides data_dir)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log debug detail to stderr")
	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("legal-responder")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "legal-responder"))
		}
	}

	setDefaults(viper.GetViper(), types.DefaultConfig())
	viper.SetEnvPrefix("LEGAL_RESPONDER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every configuration key so that environment
// variables can override keys absent from the config file.
func setDefaults(v *viper.Viper, d types.Config) {
	defaults := map[string]any{
		"data_dir": d.DataDir,

		"ai.provider":            string(d.AI.Provider),
		"ai.model":               d.AI.Model,
		"ai.api_key":             d.AI.APIKey,
		"ai.base_url":            d.AI.BaseURL,
		"ai.temperature":         d.AI.Temperature,
		"ai.max_tokens":          d.AI.MaxTokens,
		"ai.max_retries":         d.AI.MaxRetries,
		"ai.requests_per_minute": d.AI.RequestsPerMinute,
		"ai.timeout":             d.AI.Timeout,

		"embedding.provider":            string(d.Embedding.Provider),
		"embedding.model":               d.Embedding.Model,
		"embedding.api_key":             d.Embedding.APIKey,
		"embedding.base_url":            d.Embedding.BaseURL,
		"embedding.dimensions":          d.Embedding.Dimensions,
		"embedding.batch_size":          d.Embedding.BatchSize,
		"embedding.requests_per_minute": d.Embedding.RequestsPerMinute,

		"extraction.backend":   string(d.Extraction.Backend),
		"extraction.image":     d.Extraction.Image,
		"extraction.max_bytes": d.Extraction.MaxBytes,

		"chunking.max_chunk_size": d.Chunking.MaxChunkSize,
		"chunking.overlap":        d.Chunking.Overlap,
		"chunking.tolerance":      d.Chunking.Tolerance,

		"classifier.max_input_chars": d.Classifier.MaxInputChars,

		"retrieval.max_results":    d.Retrieval.MaxResults,
		"retrieval.oversample":     d.Retrieval.Oversample,
		"retrieval.max_queries":    d.Retrieval.MaxQueries,
		"retrieval.same_kind_only": d.Retrieval.SameKindOnly,
		"retrieval.min_score":      d.Retrieval.MinScore,

		"generation.max_attempts": d.Generation.MaxAttempts,
		"generation.timeout":      d.Generation.Timeout,

		"fetch.user_agent":  d.Fetch.UserAgent,
		"fetch.timeout":     d.Fetch.Timeout,
		"fetch.max_retries": d.Fetch.MaxRetries,

		"batch.concurrency": d.Batch.Concurrency,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// loadConfig decodes the merged configuration.
func loadConfig(v *viper.Viper) (types.Config, error) {
	cfg := types.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, cfg.Validate()
}

// openEngine builds the engine from the merged configuration. The caller
// must Close it.
func openEngine() (*engine.Engine, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return engine.New(cfg, engine.WithLogger(logger))
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncate collapses whitespace and shortens s to at most n runes, ending
// with "..." when there is room for it.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n <= 3 {
		return string(runes[:max(n, 0)])
	}
	return string(runes[:n-3]) + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
