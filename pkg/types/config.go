// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// AIProvider names the model capability backend.
type AIProvider string

const (
	ProviderHeuristic AIProvider = "heuristic"
	ProviderClaude    AIProvider = "claude"
	ProviderOpenAI    AIProvider = "openai"
)

// AIConfig holds settings for stages that call a generative model.
type AIConfig struct {
	// Provider selects the backend: heuristic, claude, or openai.
	Provider AIProvider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the model identifier (e.g. "claude-sonnet-4-5-20250929", "gpt-4o").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the provider endpoint (OpenAI-compatible servers).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// Temperature is passed to providers that accept it.
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`

	// MaxTokens caps the length of drafted text.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// MaxRetries is the number of classification retries (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// RequestsPerMinute rate-limits model calls. Zero disables limiting.
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute" mapstructure:"requests_per_minute"`

	// Timeout bounds a single model call.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// EmbeddingProvider names the embedding backend.
type EmbeddingProvider string

const (
	EmbeddingHash   EmbeddingProvider = "hash"
	EmbeddingOpenAI EmbeddingProvider = "openai"
)

// EmbeddingConfig holds settings for the embedding function.
type EmbeddingConfig struct {
	Provider   EmbeddingProvider `json:"provider" yaml:"provider" mapstructure:"provider"`
	Model      string            `json:"model" yaml:"model" mapstructure:"model"`
	APIKey     string            `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL    string            `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`
	Dimensions int               `json:"dimensions" yaml:"dimensions" mapstructure:"dimensions"`

	// BatchSize is the number of texts sent per embedding request.
	BatchSize int `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`

	// RequestsPerMinute rate-limits embedding calls. Zero disables limiting.
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// ExtractionBackend identifies the PDF text extraction tool.
type ExtractionBackend string

const (
	ExtractNative    ExtractionBackend = "native"
	ExtractPdftotext ExtractionBackend = "pdftotext"
)

// ExtractionConfig holds settings for the text extractor.
type ExtractionConfig struct {
	// Backend selects native (in-process) or pdftotext (container).
	Backend ExtractionBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Image is the container image used by the pdftotext backend.
	Image string `json:"image" yaml:"image" mapstructure:"image"`

	// MaxBytes rejects PDFs larger than this. Zero disables the check.
	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes" mapstructure:"max_bytes"`
}

// ChunkingConfig holds chunker parameters.
type ChunkingConfig struct {
	// MaxChunkSize is the maximum chunk length in bytes (default 1000).
	MaxChunkSize int `json:"max_chunk_size" yaml:"max_chunk_size" mapstructure:"max_chunk_size"`

	// Overlap is the number of bytes shared by consecutive chunks (default 200).
	Overlap int `json:"overlap" yaml:"overlap" mapstructure:"overlap"`

	// Tolerance is how far before MaxChunkSize the chunker searches for a
	// paragraph or sentence break (default 200).
	Tolerance int `json:"tolerance" yaml:"tolerance" mapstructure:"tolerance"`
}

// ClassifierConfig holds classifier settings.
type ClassifierConfig struct {
	// MaxInputChars truncates the text sent to the model (default 6000).
	MaxInputChars int `json:"max_input_chars" yaml:"max_input_chars" mapstructure:"max_input_chars"`
}

// RetrievalConfig holds retrieval coordinator settings.
type RetrievalConfig struct {
	// MaxResults is the number of precedents attached to a response (default 5).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// Oversample multiplies MaxResults for each index query (default 3).
	Oversample int `json:"oversample" yaml:"oversample" mapstructure:"oversample"`

	// MaxQueries caps the number of query vectors per document (default 4).
	MaxQueries int `json:"max_queries" yaml:"max_queries" mapstructure:"max_queries"`

	// SameKindOnly restricts precedents to documents of the same kind.
	SameKindOnly bool `json:"same_kind_only" yaml:"same_kind_only" mapstructure:"same_kind_only"`

	// MinScore drops candidates below this similarity.
	MinScore float64 `json:"min_score" yaml:"min_score" mapstructure:"min_score"`
}

// GenerationConfig holds response generation settings.
type GenerationConfig struct {
	// MaxAttempts is how many times a failed generation is restarted from
	// scratch (default 1, meaning no retry).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`

	// Timeout bounds a whole generation run. Zero disables it.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// FetchConfig holds settings for downloading PDFs given by URL.
type FetchConfig struct {
	// UserAgent is sent with every download request.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// Timeout bounds a single download, retries included.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxRetries is the number of retries on 429/503 responses.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// BatchConfig holds batch processing settings.
type BatchConfig struct {
	// Concurrency is the number of documents processed at once (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
}

// Config groups every stage configuration.
type Config struct {
	// DataDir holds the SQLite database and exports.
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	AI         AIConfig         `json:"ai" yaml:"ai" mapstructure:"ai"`
	Embedding  EmbeddingConfig  `json:"embedding" yaml:"embedding" mapstructure:"embedding"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
	Chunking   ChunkingConfig   `json:"chunking" yaml:"chunking" mapstructure:"chunking"`
	Classifier ClassifierConfig `json:"classifier" yaml:"classifier" mapstructure:"classifier"`
	Retrieval  RetrievalConfig  `json:"retrieval" yaml:"retrieval" mapstructure:"retrieval"`
	Generation GenerationConfig `json:"generation" yaml:"generation" mapstructure:"generation"`
	Fetch      FetchConfig      `json:"fetch" yaml:"fetch" mapstructure:"fetch"`
	Batch      BatchConfig      `json:"batch" yaml:"batch" mapstructure:"batch"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		DataDir: "data",
		AI: AIConfig{
			Provider:    ProviderHeuristic,
			Temperature: 0.2,
			MaxTokens:   2000,
			MaxRetries:  3,
			Timeout:     2 * time.Minute,
		},
		Embedding: EmbeddingConfig{
			Provider:   EmbeddingHash,
			Model:      "text-embedding-3-small",
			Dimensions: 384,
			BatchSize:  64,
		},
		Extraction: ExtractionConfig{
			Backend:  ExtractNative,
			Image:    "legal-responder/pdftotext:latest",
			MaxBytes: 50 << 20,
		},
		Chunking: ChunkingConfig{
			MaxChunkSize: 1000,
			Overlap:      200,
			Tolerance:    200,
		},
		Classifier: ClassifierConfig{
			MaxInputChars: 6000,
		},
		Retrieval: RetrievalConfig{
			MaxResults: 5,
			Oversample: 3,
			MaxQueries: 4,
		},
		Generation: GenerationConfig{
			MaxAttempts: 1,
		},
		Fetch: FetchConfig{
			UserAgent:  "legal-responder/1.0",
			Timeout:    time.Minute,
			MaxRetries: 3,
		},
		Batch: BatchConfig{
			Concurrency: 4,
		},
	}
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Chunking.MaxChunkSize <= 0 {
		return fmt.Errorf("chunking.max_chunk_size must be positive, got %d", c.Chunking.MaxChunkSize)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.MaxChunkSize {
		return fmt.Errorf("chunking.overlap must be in [0, %d), got %d", c.Chunking.MaxChunkSize, c.Chunking.Overlap)
	}
	if c.Retrieval.MaxResults <= 0 {
		return fmt.Errorf("retrieval.max_results must be positive, got %d", c.Retrieval.MaxResults)
	}
	if c.Retrieval.Oversample < 1 {
		return fmt.Errorf("retrieval.oversample must be at least 1, got %d", c.Retrieval.Oversample)
	}
	switch c.AI.Provider {
	case ProviderHeuristic, ProviderClaude, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown ai.provider %q", c.AI.Provider)
	}
	switch c.Embedding.Provider {
	case EmbeddingHash, EmbeddingOpenAI:
	default:
		return fmt.Errorf("unknown embedding.provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	switch c.Extraction.Backend {
	case ExtractNative, ExtractPdftotext:
	default:
		return fmt.Errorf("unknown extraction.backend %q", c.Extraction.Backend)
	}
	return nil
}
