package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds service configuration derived from environment variables,
// optionally overlaid by a YAML file named in CONFIG_PATH.
type Config struct {
	Port           string
	Environment    string
	LogLevel       string
	RequestTimeout time.Duration

	LLM      LLMConfig
	Store    StoreConfig
	Dataset  DatasetConfig
	Pipeline PipelineConfig
}

type LLMConfig struct {
	Provider       string // gateway | gemini | mock
	GatewayURL     string
	EmbeddingsURL  string
	Model          string
	EmbeddingModel string
	APIKey         string
	GeminiAPIKey   string
	HTTPTimeout    time.Duration
	MaxRetryTime   time.Duration
	EmbedCacheSize int
}

type StoreConfig struct {
	Backend            string // sqlite | postgres
	SQLitePath         string
	PostgresDSN        string
	MetadataCollection string
	ContentCollection  string
}

type DatasetConfig struct {
	Path       string
	ChunkWords int
	BatchSize  int
}

// PipelineConfig carries the retrieval and evidence tunables.
type PipelineConfig struct {
	MetadataLimit   int     `yaml:"metadata_limit"`
	Stage1K         int     `yaml:"stage1_k"`
	Stage1FetchK    int     `yaml:"stage1_fetch_k"`
	Stage2K         int     `yaml:"stage2_k"`
	Stage2FetchK    int     `yaml:"stage2_fetch_k"`
	Lambda          float64 `yaml:"lambda"`
	EvidenceInitial float64 `yaml:"evidence_initial"`
	EvidenceFloor   float64 `yaml:"evidence_floor"`
	EvidenceStep    float64 `yaml:"evidence_step"`
	EvidenceLimit   int     `yaml:"evidence_limit"`
	TotalRecords    int     `yaml:"total_records"`
	Concurrency     int     `yaml:"concurrency"`
	Domain          string  `yaml:"domain"`
}

const (
	defaultPort               = "8080"
	defaultSQLitePath         = "call_insights.db"
	defaultMetadataCollection = "call_embeddings"
	defaultContentCollection  = "call_embeddings_detailed"
	defaultDatasetPath        = "call_transcripts.xlsx"
	defaultDomain             = "telesales calls of a housing finance company selling loan products"
)

// DefaultPipeline returns the tunables the pipeline was designed around.
func DefaultPipeline() PipelineConfig {
	return PipelineConfig{
		MetadataLimit:   1000,
		Stage1K:         4,
		Stage1FetchK:    20,
		Stage2K:         70,
		Stage2FetchK:    140,
		Lambda:          0.75,
		EvidenceInitial: 0.8,
		EvidenceFloor:   0.4,
		EvidenceStep:    0.1,
		EvidenceLimit:   300,
		TotalRecords:    70,
		Concurrency:     4,
		Domain:          defaultDomain,
	}
}

// Load reads the environment (and CONFIG_PATH when set) into a validated Config.
func Load() (Config, error) {
	cfg := Config{
		Port:           envOr("PORT", defaultPort),
		Environment:    os.Getenv("ENVIRONMENT"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		RequestTimeout: time.Duration(envInt("REQUEST_TIMEOUT_SEC", 120)) * time.Second,
		LLM: LLMConfig{
			Provider:       strings.ToLower(envOr("LLM_PROVIDER", "gateway")),
			GatewayURL:     os.Getenv("LLM_GATEWAY_URL"),
			EmbeddingsURL:  os.Getenv("LLM_EMBEDDINGS_URL"),
			Model:          envOr("LLM_MODEL", "gpt-4o"),
			EmbeddingModel: envOr("LLM_EMBEDDING_MODEL", "text-embedding-ada-002"),
			APIKey:         os.Getenv("LLM_API_KEY"),
			GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
			HTTPTimeout:    time.Duration(envInt("LLM_HTTP_TIMEOUT_SEC", 25)) * time.Second,
			MaxRetryTime:   time.Duration(envInt("LLM_MAX_RETRY_SEC", 45)) * time.Second,
			EmbedCacheSize: envInt("EMBED_CACHE_SIZE", 4096),
		},
		Store: StoreConfig{
			Backend:            strings.ToLower(envOr("STORE_BACKEND", "sqlite")),
			SQLitePath:         envOr("SQLITE_PATH", defaultSQLitePath),
			PostgresDSN:        os.Getenv("PG_DSN"),
			MetadataCollection: envOr("METADATA_COLLECTION", defaultMetadataCollection),
			ContentCollection:  envOr("CONTENT_COLLECTION", defaultContentCollection),
		},
		Dataset: DatasetConfig{
			Path:       envOr("DATASET_PATH", defaultDatasetPath),
			ChunkWords: envInt("CHUNK_WORDS", 120),
			BatchSize:  envInt("EMBED_BATCH_SIZE", 64),
		},
		Pipeline: DefaultPipeline(),
	}
	if os.Getenv("USE_MOCK_LLM") == "true" {
		cfg.LLM.Provider = "mock"
	}
	if v := envInt("TOTAL_RECORDS", 0); v > 0 {
		cfg.Pipeline.TotalRecords = v
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type fileConfig struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Store    *struct {
		MetadataCollection string `yaml:"metadata_collection"`
		ContentCollection  string `yaml:"content_collection"`
	} `yaml:"store"`
}

func (c *Config) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	// decode on top of the current values so omitted keys keep their defaults
	fc := fileConfig{Pipeline: c.Pipeline}
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.Pipeline = fc.Pipeline
	if fc.Store != nil {
		if fc.Store.MetadataCollection != "" {
			c.Store.MetadataCollection = fc.Store.MetadataCollection
		}
		if fc.Store.ContentCollection != "" {
			c.Store.ContentCollection = fc.Store.ContentCollection
		}
	}
	return nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error
	switch c.LLM.Provider {
	case "gateway", "gemini", "mock":
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER %q: want gateway, gemini or mock", c.LLM.Provider))
	}
	switch c.Store.Backend {
	case "sqlite":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("PG_DSN is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND %q: want sqlite or postgres", c.Store.Backend))
	}
	p := c.Pipeline
	if p.EvidenceStep <= 0 {
		errs = append(errs, errors.New("evidence_step must be positive"))
	}
	if p.EvidenceFloor > p.EvidenceInitial {
		errs = append(errs, errors.New("evidence_floor must not exceed evidence_initial"))
	}
	if p.Lambda < 0 || p.Lambda > 1 {
		errs = append(errs, errors.New("lambda must be within [0,1]"))
	}
	if p.MetadataLimit <= 0 || p.Stage1K <= 0 || p.Stage2K <= 0 || p.EvidenceLimit <= 0 {
		errs = append(errs, errors.New("search limits must be positive"))
	}
	return errors.Join(errs...)
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
