package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LogConfig configures the application logger.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CorpusConfig locates the source documents and the chunk output.
type CorpusConfig struct {
	SourceDir  string `yaml:"source_dir"`
	OutputFile string `yaml:"output_file"`
	// Format is "jsonl" (streamed) or "json" (single array, buffered).
	Format  string `yaml:"format"`
	Workers int    `yaml:"workers"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	MaxChars      int `yaml:"max_chars"`
	BatchMaxChars int `yaml:"batch_max_chars"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type          string                `yaml:"type"`
	Contextualize bool                  `yaml:"contextualize"`
	OpenAI        *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// SparseConfig configures the lexical encoder.
type SparseConfig struct {
	Type       string  `yaml:"type"`
	ParamsFile string  `yaml:"params_file"`
	K1         float64 `yaml:"k1"`
	B          float64 `yaml:"b"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type      string         `yaml:"type"`
	BatchSize int            `yaml:"batch_size"`
	Qdrant    *QdrantConfig  `yaml:"qdrant,omitempty"`
	Chromem   *ChromemConfig `yaml:"chromem,omitempty"`
}

// ChromemConfig places an embedded chromem-go index on disk.
type ChromemConfig struct {
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	Compress   bool   `yaml:"compress"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// SearchConfig controls hybrid retrieval.
type SearchConfig struct {
	TopK  int     `yaml:"top_k"`
	Alpha float64 `yaml:"alpha"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Log         LogConfig         `yaml:"log"`
	Corpus      CorpusConfig      `yaml:"corpus"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Sparse      SparseConfig      `yaml:"sparse"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Search      SearchConfig      `yaml:"search"`
}

const (
	FormatJSONL = "jsonl"
	FormatJSON  = "json"
)

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	// Keys the file omits keep their defaults; explicit zero values stay.
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/legalrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/legalrag/config.yaml and returns them.
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
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects settings the pipeline cannot run with.
func (c *AppConfig) Validate() error {
	if c.Chunker.MaxChars <= 0 || c.Chunker.BatchMaxChars <= 0 {
		return errors.New("chunker: max_chars and batch_max_chars must be positive")
	}
	switch c.Corpus.Format {
	case FormatJSONL, FormatJSON:
	default:
		return fmt.Errorf("corpus: unknown format %q", c.Corpus.Format)
	}
	if c.Search.Alpha < 0 || c.Search.Alpha > 1 {
		return fmt.Errorf("search: alpha %.2f outside [0,1]", c.Search.Alpha)
	}
	return nil
}

// ChunkBudget returns the character budget for the configured output format.
func (c *AppConfig) ChunkBudget() int {
	if c.Corpus.Format == FormatJSON {
		return c.Chunker.BatchMaxChars
	}
	return c.Chunker.MaxChars
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "legalrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Log:         LogConfig{Level: "info"},
		Corpus:      CorpusConfig{SourceDir: "Held Section", OutputFile: "chunks.jsonl", Format: FormatJSONL, Workers: 1},
		Chunker:     ChunkerConfig{MaxChars: 1200, BatchMaxChars: 1200},
		Embedder:    EmbedderConfig{Type: "tfidf", Contextualize: true},
		Sparse:      SparseConfig{Type: "bm25", ParamsFile: "bm25_params.json", K1: 1.2, B: 0.75},
		VectorStore: VectorStoreConfig{Type: "memory", BatchSize: 50},
		Search:      SearchConfig{TopK: 5, Alpha: 0.7},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	def := defaultConfig()
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Corpus.SourceDir == "" {
		cfg.Corpus.SourceDir = def.Corpus.SourceDir
	}
	if cfg.Corpus.OutputFile == "" {
		cfg.Corpus.OutputFile = def.Corpus.OutputFile
	}
	if cfg.Corpus.Format == "" {
		cfg.Corpus.Format = def.Corpus.Format
	}
	if cfg.Corpus.Workers <= 0 {
		cfg.Corpus.Workers = 1
	}
	if cfg.Chunker.MaxChars == 0 {
		cfg.Chunker.MaxChars = def.Chunker.MaxChars
	}
	if cfg.Chunker.BatchMaxChars == 0 {
		cfg.Chunker.BatchMaxChars = def.Chunker.BatchMaxChars
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = def.Embedder.Type
	}
	if cfg.Sparse.Type == "" {
		cfg.Sparse.Type = def.Sparse.Type
	}
	if cfg.Sparse.ParamsFile == "" {
		cfg.Sparse.ParamsFile = def.Sparse.ParamsFile
	}
	if cfg.Sparse.K1 == 0 {
		cfg.Sparse.K1 = def.Sparse.K1
	}
	if cfg.Sparse.B == 0 {
		cfg.Sparse.B = def.Sparse.B
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = def.VectorStore.Type
	}
	if cfg.VectorStore.BatchSize <= 0 {
		cfg.VectorStore.BatchSize = def.VectorStore.BatchSize
	}
	if cfg.Search.TopK <= 0 {
		cfg.Search.TopK = def.Search.TopK
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.VectorStore.Qdrant.APIKeyEnv == "" {
			cfg.VectorStore.Qdrant.APIKeyEnv = "QDRANT_API_KEY"
		}
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "hybrid-legal-index"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.VectorStore.Type == "chromem" {
		if cfg.VectorStore.Chromem == nil {
			cfg.VectorStore.Chromem = &ChromemConfig{}
		}
		if cfg.VectorStore.Chromem.Path == "" {
			cfg.VectorStore.Chromem.Path = ".legalrag/index"
		}
		if cfg.VectorStore.Chromem.Collection == "" {
			cfg.VectorStore.Chromem.Collection = "hybrid-legal-index"
		}
	}
}
