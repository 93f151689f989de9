// Package config loads and validates docquery configuration.
//
// Configuration is applied in order of increasing precedence: hardcoded
// defaults, user config (~/.config/docquery/config.yaml), project config
// (docquery.yaml in the working directory), then DOCQUERY_* environment
// variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete docquery configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	DataDir    string           `yaml:"data_dir" json:"data_dir"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Extract    ExtractConfig    `yaml:"extract" json:"extract"`
	Answer     AnswerConfig     `yaml:"answer" json:"answer"`
	Crawl      CrawlConfig      `yaml:"crawl" json:"crawl"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// SearchConfig configures hybrid retrieval parameters.
// Weights are defaults only: the query analyzer overrides them per query
// unless fixed weights are requested.
type SearchConfig struct {
	// SemanticWeight is the default weight for vector similarity (0.0-1.0).
	// Must sum to 1.0 with LexicalWeight.
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`

	// LexicalWeight is the default weight for keyword matching (0.0-1.0).
	// Must sum to 1.0 with SemanticWeight.
	LexicalWeight float64 `yaml:"lexical_weight" json:"lexical_weight"`

	// CandidatesPerLeg is how many results each retrieval leg fetches
	// before fusion.
	CandidatesPerLeg int `yaml:"candidates_per_leg" json:"candidates_per_leg"`

	// MaxResults is the number of fused results returned.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// CacheSize is the capacity of the per-namespace index handle cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// ChunkingConfig configures the recursive character splitter.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedding backend: "ollama" or "openai".
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`

	// OllamaHost is the Ollama API endpoint (default: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// BaseURL is the OpenAI-compatible API endpoint for the "openai" provider.
	BaseURL string `yaml:"base_url" json:"base_url"`
	// APIKey authenticates against the OpenAI-compatible endpoint.
	// Prefer the DOCQUERY_EMBEDDINGS_API_KEY environment variable.
	APIKey string `yaml:"api_key" json:"api_key"`
}

// ExtractConfig configures document text extraction.
type ExtractConfig struct {
	// Workers bounds concurrent per-source extraction.
	Workers int `yaml:"workers" json:"workers"`

	// SpreadsheetEngine is the preferred spreadsheet parser; extraction
	// falls back to the default engine when it fails.
	SpreadsheetEngine string `yaml:"spreadsheet_engine" json:"spreadsheet_engine"`

	// OCREnabled enables the OCR fallback for garbled or empty PDF text.
	OCREnabled bool `yaml:"ocr_enabled" json:"ocr_enabled"`
	// OCRLanguages are the language hints passed to the OCR engine.
	OCRLanguages []string `yaml:"ocr_languages" json:"ocr_languages"`
}

// AnswerConfig configures grounded answer generation.
type AnswerConfig struct {
	// BaseURL is the OpenAI-compatible chat completions endpoint.
	BaseURL string `yaml:"base_url" json:"base_url"`
	Model   string `yaml:"model" json:"model"`
	// APIKey authenticates requests. Prefer DOCQUERY_ANSWER_API_KEY.
	APIKey string `yaml:"api_key" json:"api_key"`

	// HistoryWindow is how many prior exchanges to replay per request.
	HistoryWindow int `yaml:"history_window" json:"history_window"`

	// Temperature for generation.
	Temperature float64 `yaml:"temperature" json:"temperature"`
}

// CrawlConfig configures URL ingestion.
type CrawlConfig struct {
	// MaxPages bounds the number of pages fetched per crawl.
	MaxPages int `yaml:"max_pages" json:"max_pages"`
	// Timeout is the per-request timeout (e.g. "30s").
	Timeout string `yaml:"timeout" json:"timeout"`
	// UserAgent is sent on crawl requests.
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		DataDir: defaultDataDir(),
		Search: SearchConfig{
			// Conceptual queries lean on vectors; the analyzer flips
			// toward lexical for specific-term queries.
			SemanticWeight:   0.8,
			LexicalWeight:    0.2,
			CandidatesPerLeg: 10,
			MaxResults:       5,
			CacheSize:        8,
		},
		Chunking: ChunkingConfig{
			ChunkSize:    8000,
			ChunkOverlap: 800,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			Dimensions: 0, // Auto-detect from embedder
			BatchSize:  32,
			OllamaHost: "", // Empty uses default http://localhost:11434
		},
		Extract: ExtractConfig{
			Workers:           runtime.NumCPU(),
			SpreadsheetEngine: "calamine",
			OCREnabled:        true,
			OCRLanguages:      []string{"eng"},
		},
		Answer: AnswerConfig{
			BaseURL:       "https://api.openai.com/v1",
			Model:         "gpt-4o-mini",
			HistoryWindow: 9,
			Temperature:   0.2,
		},
		Crawl: CrawlConfig{
			MaxPages:  50,
			Timeout:   "30s",
			UserAgent: "docquery/1.0",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// defaultDataDir returns the default data directory.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".docquery")
	}
	return filepath.Join(home, ".docquery")
}

// GetUserConfigPath returns the path to the user configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/docquery/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/docquery/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docquery", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docquery", "config.yaml")
	}
	return filepath.Join(home, ".config", "docquery", "config.yaml")
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/docquery/config.yaml)
//  3. Project config (docquery.yaml in dir)
//  4. Environment variables (DOCQUERY_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userPath := GetUserConfigPath()
	if fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromDir attempts to load configuration from docquery.yaml or docquery.yml.
func (c *Config) loadFromDir(dir string) error {
	yamlPath := filepath.Join(dir, "docquery.yaml")
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, "docquery.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}

	// Search weights: 0 is not a practical value, so only merge non-zero.
	if other.Search.SemanticWeight != 0 {
		c.Search.SemanticWeight = other.Search.SemanticWeight
	}
	if other.Search.LexicalWeight != 0 {
		c.Search.LexicalWeight = other.Search.LexicalWeight
	}
	if other.Search.CandidatesPerLeg != 0 {
		c.Search.CandidatesPerLeg = other.Search.CandidatesPerLeg
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.CacheSize != 0 {
		c.Search.CacheSize = other.Search.CacheSize
	}

	if other.Chunking.ChunkSize != 0 {
		c.Chunking.ChunkSize = other.Chunking.ChunkSize
	}
	if other.Chunking.ChunkOverlap != 0 {
		c.Chunking.ChunkOverlap = other.Chunking.ChunkOverlap
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.BaseURL != "" {
		c.Embeddings.BaseURL = other.Embeddings.BaseURL
	}
	if other.Embeddings.APIKey != "" {
		c.Embeddings.APIKey = other.Embeddings.APIKey
	}

	if other.Extract.Workers != 0 {
		c.Extract.Workers = other.Extract.Workers
	}
	if other.Extract.SpreadsheetEngine != "" {
		c.Extract.SpreadsheetEngine = other.Extract.SpreadsheetEngine
	}
	if len(other.Extract.OCRLanguages) > 0 {
		c.Extract.OCRLanguages = other.Extract.OCRLanguages
	}

	if other.Answer.BaseURL != "" {
		c.Answer.BaseURL = other.Answer.BaseURL
	}
	if other.Answer.Model != "" {
		c.Answer.Model = other.Answer.Model
	}
	if other.Answer.APIKey != "" {
		c.Answer.APIKey = other.Answer.APIKey
	}
	if other.Answer.HistoryWindow != 0 {
		c.Answer.HistoryWindow = other.Answer.HistoryWindow
	}
	if other.Answer.Temperature != 0 {
		c.Answer.Temperature = other.Answer.Temperature
	}

	if other.Crawl.MaxPages != 0 {
		c.Crawl.MaxPages = other.Crawl.MaxPages
	}
	if other.Crawl.Timeout != "" {
		c.Crawl.Timeout = other.Crawl.Timeout
	}
	if other.Crawl.UserAgent != "" {
		c.Crawl.UserAgent = other.Crawl.UserAgent
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

// applyEnvOverrides applies DOCQUERY_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCQUERY_DATA_DIR"); v != "" {
		c.DataDir = v
	}

	// Support explicit zero weights via env vars.
	if v := os.Getenv("DOCQUERY_SEMANTIC_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w >= 0 && w <= 1 {
			c.Search.SemanticWeight = w
		}
	}
	if v := os.Getenv("DOCQUERY_LEXICAL_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w >= 0 && w <= 1 {
			c.Search.LexicalWeight = w
		}
	}
	if v := os.Getenv("DOCQUERY_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxResults = n
		}
	}

	if v := os.Getenv("DOCQUERY_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("DOCQUERY_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("DOCQUERY_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("DOCQUERY_EMBEDDINGS_API_KEY"); v != "" {
		c.Embeddings.APIKey = v
	}

	if v := os.Getenv("DOCQUERY_ANSWER_BASE_URL"); v != "" {
		c.Answer.BaseURL = v
	}
	if v := os.Getenv("DOCQUERY_ANSWER_MODEL"); v != "" {
		c.Answer.Model = v
	}
	if v := os.Getenv("DOCQUERY_ANSWER_API_KEY"); v != "" {
		c.Answer.APIKey = v
	}

	if v := os.Getenv("DOCQUERY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		return fmt.Errorf("semantic_weight must be between 0 and 1, got %f", c.Search.SemanticWeight)
	}
	if c.Search.LexicalWeight < 0 || c.Search.LexicalWeight > 1 {
		return fmt.Errorf("lexical_weight must be between 0 and 1, got %f", c.Search.LexicalWeight)
	}

	sum := c.Search.SemanticWeight + c.Search.LexicalWeight
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("semantic_weight + lexical_weight must equal 1.0, got %.2f", sum)
	}

	if c.Search.CandidatesPerLeg <= 0 {
		return fmt.Errorf("candidates_per_leg must be positive, got %d", c.Search.CandidatesPerLeg)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("max_results must be positive, got %d", c.Search.MaxResults)
	}

	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", c.Chunking.ChunkOverlap)
	}

	validProviders := map[string]bool{"ollama": true, "openai": true}
	if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
		return fmt.Errorf("embeddings.provider must be 'ollama' or 'openai', got %s", c.Embeddings.Provider)
	}

	if c.Answer.HistoryWindow < 0 {
		return fmt.Errorf("answer.history_window must be non-negative, got %d", c.Answer.HistoryWindow)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
