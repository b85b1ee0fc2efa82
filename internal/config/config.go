// Package config provides configuration loading and structs for the Keiyaku server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Extract   ExtractConfig   `yaml:"extract"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Search    SearchConfig    `yaml:"search"`
	Answer    AnswerConfig    `yaml:"answer"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Inbox     InboxConfig     `yaml:"inbox"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database, raw file blobs, and indices.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	BlobPath        string `yaml:"blob_path"`
	BleveIndexPath  string `yaml:"bleve_index_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
}

// ExtractConfig holds text extraction and OCR fallback settings.
type ExtractConfig struct {
	// OCRProvider selects the OCR backend for image-only pages:
	// "vision" (GCP Vision) or "" (OCR disabled).
	OCRProvider string `yaml:"ocr_provider"`
	// OCRTimeoutSeconds bounds each per-page OCR call.
	OCRTimeoutSeconds int `yaml:"ocr_timeout_seconds"`
	// MinCharDensity is the minimum extracted characters per page below
	// which the page is considered image-only and sent to OCR.
	MinCharDensity int `yaml:"min_char_density"`
}

// OCRTimeout returns the per-page OCR call timeout.
func (c *ExtractConfig) OCRTimeout() time.Duration {
	return time.Duration(c.OCRTimeoutSeconds) * time.Second
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend: "openai" (OpenAI-compatible
	// HTTP API), "onnx" (local model, requires CGO), or "mock".
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	// ModelPath and MaxTokens apply to the onnx provider.
	ModelPath string `yaml:"model_path"`
	MaxTokens int    `yaml:"max_tokens"`
	CacheSize int    `yaml:"cache_size"`
	BatchSize int    `yaml:"batch_size"`
	// Retry policy for transient failures (timeout, 5xx, rate limit).
	MaxAttempts    int `yaml:"max_attempts"`
	BackoffBaseMS  int `yaml:"backoff_base_ms"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the per-call embedding timeout.
func (c *EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BackoffBase returns the base delay for exponential backoff.
func (c *EmbeddingConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMS) * time.Millisecond
}

// LLMConfig holds completion model settings for answer synthesis.
type LLMConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxTokens      int    `yaml:"max_tokens"`
}

// Timeout returns the per-call completion timeout.
func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SearchConfig holds chunking and hybrid retrieval settings.
type SearchConfig struct {
	// ChunkSize and ChunkOverlap are in characters. The overlap exists so
	// a clause boundary at a window edge is fully captured in at least one chunk.
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	// RRFK is the reciprocal rank fusion constant k in 1/(k+rank).
	RRFK int `yaml:"rrf_k"`
	// DistanceThreshold is the maximum cosine distance at which a
	// vector-only result is still considered relevant. Retune when changing
	// the embedding provider; distance scales differ per model.
	DistanceThreshold float64 `yaml:"distance_threshold"`
	// CandidateMultiplier: each index is asked for multiplier*n candidates
	// before fusion.
	CandidateMultiplier int `yaml:"candidate_multiplier"`
	DefaultLimit        int `yaml:"default_limit"`
	MaxLimit            int `yaml:"max_limit"`
}

// AnswerConfig holds answer synthesis settings.
type AnswerConfig struct {
	// MaxContextChars bounds the total context block sent to the model.
	MaxContextChars int `yaml:"max_context_chars"`
	TopK            int `yaml:"top_k"`
}

// IngestConfig holds the background worker pool settings.
type IngestConfig struct {
	// Workers bounds concurrent document processing (and therefore
	// embedding-API concurrency and OCR load).
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// InboxConfig holds drop-directory ingestion settings.
type InboxConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BlobPath = expandPath(cfg.Storage.BlobPath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	for i := range cfg.Inbox.Directories {
		cfg.Inbox.Directories[i] = expandPath(cfg.Inbox.Directories[i], configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative
// to configDir; other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
