package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"ragcore/internal/domain"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL        string `yaml:"base_url" toml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env" toml:"api_key_env"`
	Model          string `yaml:"model" toml:"model"`
	SendDimensions bool   `yaml:"send_dimensions" toml:"send_dimensions"`
	TimeoutSecs    int    `yaml:"timeout_secs" toml:"timeout_secs"`
	MaxRetries     int    `yaml:"max_retries" toml:"max_retries"`
}

// OllamaEmbedderConfig holds configuration for a local Ollama daemon.
type OllamaEmbedderConfig struct {
	Host              string  `yaml:"host" toml:"host"`
	Model             string  `yaml:"model" toml:"model"`
	BatchSize         int     `yaml:"batch_size" toml:"batch_size"`
	MaxRetries        int     `yaml:"max_retries" toml:"max_retries"`
	TimeoutSecs       int     `yaml:"timeout_secs" toml:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
}

// EmbedderConfig selects and configures the text embedder implementation.
// Dimension must match the model and the existing collection.
type EmbedderConfig struct {
	Type      string                `yaml:"type" toml:"type"`
	Dimension int                   `yaml:"dimension" toml:"dimension"`
	Ollama    *OllamaEmbedderConfig `yaml:"ollama,omitempty" toml:"ollama,omitempty"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty" toml:"openai,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type         string `yaml:"type" toml:"type"`
	Splitter     string `yaml:"splitter" toml:"splitter"`
	MaxChunkSize int    `yaml:"max_chunk_size" toml:"max_chunk_size"`
	WindowSize   int    `yaml:"window_size" toml:"window_size"`
	Overlap      int    `yaml:"overlap" toml:"overlap"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type       string          `yaml:"type" toml:"type"`
	Collection string          `yaml:"collection" toml:"collection"`
	Qdrant     *QdrantConfig   `yaml:"qdrant,omitempty" toml:"qdrant,omitempty"`
	PGVector   *PGVectorConfig `yaml:"pgvector,omitempty" toml:"pgvector,omitempty"`
	SQLite     *SQLiteConfig   `yaml:"sqlite,omitempty" toml:"sqlite,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url" toml:"url"`
	APIKey      string `yaml:"api_key" toml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs" toml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" toml:"max_retries"`
}

// PGVectorConfig contains connection details for PostgreSQL with pgvector.
type PGVectorConfig struct {
	DSN         string `yaml:"dsn" toml:"dsn"`
	DSNEnv      string `yaml:"dsn_env" toml:"dsn_env"`
	TimeoutSecs int    `yaml:"timeout_secs" toml:"timeout_secs"`
}

// SQLiteConfig points at a single-file database shared by the vector index
// and the document store.
type SQLiteConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// DocStoreConfig selects where extracted document text is kept. A sqlite
// store defaults to the vector store's database file when that is sqlite too.
type DocStoreConfig struct {
	Type string `yaml:"type" toml:"type"`
	Path string `yaml:"path,omitempty" toml:"path,omitempty"`
}

// TEIConfig points at a text-embeddings-inference rerank endpoint.
type TEIConfig struct {
	URL         string `yaml:"url" toml:"url"`
	Model       string `yaml:"model" toml:"model"`
	BatchSize   int    `yaml:"batch_size" toml:"batch_size"`
	TimeoutSecs int    `yaml:"timeout_secs" toml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" toml:"max_retries"`
}

// RerankerConfig selects the cross scorer and sizes its candidate pool.
type RerankerConfig struct {
	Type               string     `yaml:"type" toml:"type"`
	Overfetch          int        `yaml:"overfetch" toml:"overfetch"`
	IncludeKeywordHits bool       `yaml:"include_keyword_hits" toml:"include_keyword_hits"`
	TEI                *TEIConfig `yaml:"tei,omitempty" toml:"tei,omitempty"`
}

// RetrievalConfig holds query defaults.
type RetrievalConfig struct {
	TopK           int     `yaml:"top_k" toml:"top_k"`
	ScoreThreshold float64 `yaml:"score_threshold" toml:"score_threshold"`
	KeywordSearch  bool    `yaml:"keyword_search" toml:"keyword_search"`
	TimeoutSecs    int     `yaml:"timeout_secs" toml:"timeout_secs"`
}

// GeneratorConfig selects the answer generator.
type GeneratorConfig struct {
	Type         string                 `yaml:"type" toml:"type"`
	MaxSentences int                    `yaml:"max_sentences" toml:"max_sentences"`
	Ollama       *OllamaGeneratorConfig `yaml:"ollama,omitempty" toml:"ollama,omitempty"`
	OpenAI       *OpenAIGeneratorConfig `yaml:"openai,omitempty" toml:"openai,omitempty"`
}

type OllamaGeneratorConfig struct {
	Host        string  `yaml:"host" toml:"host"`
	Model       string  `yaml:"model" toml:"model"`
	Temperature float64 `yaml:"temperature" toml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" toml:"max_tokens"`
}

type OpenAIGeneratorConfig struct {
	BaseURL     string  `yaml:"base_url" toml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env" toml:"api_key_env"`
	Model       string  `yaml:"model" toml:"model"`
	Temperature float64 `yaml:"temperature" toml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" toml:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs" toml:"timeout_secs"`
}

// IngestConfig tunes batch ingestion.
type IngestConfig struct {
	Workers    int      `yaml:"workers" toml:"workers"`
	Extensions []string `yaml:"extensions" toml:"extensions"`
	Source     string   `yaml:"source" toml:"source"`
}

type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder" toml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker" toml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store" toml:"vector_store"`
	DocStore    DocStoreConfig    `yaml:"doc_store" toml:"doc_store"`
	Reranker    RerankerConfig    `yaml:"reranker" toml:"reranker"`
	Retrieval   RetrievalConfig   `yaml:"retrieval" toml:"retrieval"`
	Generator   GeneratorConfig   `yaml:"generator" toml:"generator"`
	Ingest      IngestConfig      `yaml:"ingest" toml:"ingest"`
	Log         LogConfig         `yaml:"log" toml:"log"`
}

// StageTimeout is the per-stage deadline, zero when unset.
func (c *AppConfig) StageTimeout() time.Duration {
	return Seconds(c.Retrieval.TimeoutSecs)
}

// Seconds converts a *_secs setting to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Files ending in .toml are decoded as TOML, everything else as YAML.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	cfg := baseConfig()
	if isTOML(path) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", domain.ErrInvalidInput, path, err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragcore/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragcore/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragcore", "config.yaml"), nil
}

// defaultDBPath is relative to the working directory.
const defaultDBPath = "ragcore.db"

func defaultConfig() *AppConfig {
	cfg := baseConfig()
	applyConfigDefaults(cfg)
	return cfg
}

// baseConfig leaves backend-dependent values unset so that decoding a file
// and applyConfigDefaults can fill them for the chosen backend.
func baseConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "hashing"},
		Chunker:     ChunkerConfig{Type: "sentence", Splitter: "regex", MaxChunkSize: 512, WindowSize: 500, Overlap: 50},
		VectorStore: VectorStoreConfig{Type: "sqlite", Collection: "documents"},
		Reranker:    RerankerConfig{Type: "lexical", Overfetch: 2},
		Retrieval:   RetrievalConfig{TopK: 5, ScoreThreshold: 0.2, KeywordSearch: true, TimeoutSecs: 60},
		Generator:   GeneratorConfig{Type: "extractive", MaxSentences: 3},
		Ingest:      IngestConfig{Workers: 4, Source: "Batch Upload"},
		Log:         LogConfig{Level: "info"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Chunker.MaxChunkSize == 0 {
		cfg.Chunker.MaxChunkSize = 512
	}
	if cfg.Chunker.WindowSize == 0 {
		cfg.Chunker.WindowSize = 500
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "documents"
	}
	if cfg.Reranker.Overfetch == 0 {
		cfg.Reranker.Overfetch = 2
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 4
	}
	switch cfg.Embedder.Type {
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
		if cfg.Embedder.Dimension == 0 {
			cfg.Embedder.Dimension = 1536
		}
	case "ollama":
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaEmbedderConfig{}
		}
		if cfg.Embedder.Ollama.Model == "" {
			cfg.Embedder.Ollama.Model = "all-minilm"
		}
		if cfg.Embedder.Ollama.BatchSize == 0 {
			cfg.Embedder.Ollama.BatchSize = 32
		}
		if cfg.Embedder.Dimension == 0 {
			cfg.Embedder.Dimension = 384
		}
	default:
		if cfg.Embedder.Dimension == 0 {
			cfg.Embedder.Dimension = 384
		}
	}
	switch cfg.VectorStore.Type {
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 10
		}
	case "pgvector":
		if cfg.VectorStore.PGVector == nil {
			cfg.VectorStore.PGVector = &PGVectorConfig{}
		}
		if cfg.VectorStore.PGVector.DSNEnv == "" {
			cfg.VectorStore.PGVector.DSNEnv = "DATABASE_URL"
		}
	case "sqlite":
		if cfg.VectorStore.SQLite == nil {
			cfg.VectorStore.SQLite = &SQLiteConfig{}
		}
		if cfg.VectorStore.SQLite.Path == "" {
			cfg.VectorStore.SQLite.Path = defaultDBPath
		}
	}
	if cfg.DocStore.Type == "" {
		// follows the index: persistent unless the index is in-process
		cfg.DocStore.Type = "sqlite"
		if cfg.VectorStore.Type == "memory" {
			cfg.DocStore.Type = "memory"
		}
	}
	if cfg.DocStore.Type == "sqlite" && cfg.DocStore.Path == "" {
		cfg.DocStore.Path = defaultDBPath
		if cfg.VectorStore.Type == "sqlite" {
			cfg.DocStore.Path = cfg.VectorStore.SQLite.Path
		}
	}
	if cfg.Reranker.Type == "tei" {
		if cfg.Reranker.TEI == nil {
			cfg.Reranker.TEI = &TEIConfig{}
		}
		if cfg.Reranker.TEI.URL == "" {
			cfg.Reranker.TEI.URL = "http://localhost:8080"
		}
	}
	switch cfg.Generator.Type {
	case "ollama":
		if cfg.Generator.Ollama == nil {
			cfg.Generator.Ollama = &OllamaGeneratorConfig{}
		}
	case "openai":
		if cfg.Generator.OpenAI == nil {
			cfg.Generator.OpenAI = &OpenAIGeneratorConfig{}
		}
		if cfg.Generator.OpenAI.APIKeyEnv == "" {
			cfg.Generator.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Generator.OpenAI.Model == "" {
			cfg.Generator.OpenAI.Model = "gpt-4o-mini"
		}
	}
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s %q, want one of %s", domain.ErrInvalidInput, field, value, strings.Join(allowed, ", "))
}

// Validate rejects unknown backends and out-of-range values.
func (c *AppConfig) Validate() error {
	checks := []error{
		oneOf("embedder.type", c.Embedder.Type, "hashing", "ollama", "openai"),
		oneOf("chunker.type", c.Chunker.Type, "sentence", "window"),
		oneOf("chunker.splitter", c.Chunker.Splitter, "punkt", "regex"),
		oneOf("vector_store.type", c.VectorStore.Type, "memory", "qdrant", "pgvector", "sqlite"),
		oneOf("doc_store.type", c.DocStore.Type, "memory", "sqlite"),
		oneOf("reranker.type", c.Reranker.Type, "none", "lexical", "tei"),
		oneOf("generator.type", c.Generator.Type, "none", "extractive", "ollama", "openai"),
	}
	if err := errors.Join(checks...); err != nil {
		return err
	}
	if c.Embedder.Dimension <= 0 {
		return fmt.Errorf("%w: embedder.dimension must be positive", domain.ErrInvalidInput)
	}
	if c.Retrieval.TopK < 0 {
		return fmt.Errorf("%w: retrieval.top_k must not be negative", domain.ErrInvalidInput)
	}
	if c.Retrieval.ScoreThreshold < -1 || c.Retrieval.ScoreThreshold > 1 {
		return fmt.Errorf("%w: retrieval.score_threshold must be within [-1, 1]", domain.ErrInvalidInput)
	}
	sizes := []struct {
		field string
		value int
		min   int
	}{
		{"chunker.max_chunk_size", c.Chunker.MaxChunkSize, 1},
		{"chunker.window_size", c.Chunker.WindowSize, 1},
		{"chunker.overlap", c.Chunker.Overlap, 0},
		{"reranker.overfetch", c.Reranker.Overfetch, 1},
		{"ingest.workers", c.Ingest.Workers, 1},
		{"generator.max_sentences", c.Generator.MaxSentences, 0},
		{"retrieval.timeout_secs", c.Retrieval.TimeoutSecs, 0},
	}
	for _, sz := range sizes {
		if sz.value < sz.min {
			return fmt.Errorf("%w: %s must be at least %d, got %d", domain.ErrInvalidInput, sz.field, sz.min, sz.value)
		}
	}
	if c.DocStore.Type == "sqlite" && c.DocStore.Path == "" {
		return fmt.Errorf("%w: doc_store.path is empty", domain.ErrInvalidInput)
	}
	return nil
}
