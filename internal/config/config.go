package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/domenicocinque/web-rag/internal/document"
	"github.com/domenicocinque/web-rag/internal/service"
)

const envPrefix = "WEBRAG"

// Search providers
const (
	SearchProviderDuckDuckGo = "duckduckgo"
	SearchProviderGoogle     = "google"
)

// Vector store backends
const (
	VectorStoreMemory   = "memory"
	VectorStorePostgres = "postgres"
)

// Config is loaded from WEBRAG_* variables. Tags naming a well-known
// variable (OPENAI_API_KEY, SENTRY_DSN) also accept the unprefixed name.
type Config struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	Debug          bool          `envconfig:"DEBUG" default:"false"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	APIPrefix      string        `envconfig:"API_PREFIX" default:"/api/v1"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"120s"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string `envconfig:"OPENAI_BASE_URL"`
	GenerationModel     string `envconfig:"GENERATION_MODEL" default:"gpt-4o-mini"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	EmbeddingBatchSize  int    `envconfig:"EMBEDDING_BATCH_SIZE" default:"32"`

	SearchProvider string `envconfig:"SEARCH_PROVIDER" default:"duckduckgo"`
	SearchTopK     int    `envconfig:"SEARCH_TOP_K" default:"10"`
	SearchLang     string `envconfig:"SEARCH_LANG" default:"en"`
	SearchBaseURL  string `envconfig:"SEARCH_BASE_URL"`
	GoogleAPIKey   string `envconfig:"GOOGLE_API_KEY"`
	GoogleEngineID string `envconfig:"GOOGLE_ENGINE_ID"`

	FetchWorkers  int           `envconfig:"FETCH_WORKERS" default:"5"`
	FetchTimeout  time.Duration `envconfig:"FETCH_TIMEOUT" default:"10s"`
	FetchRetries  uint          `envconfig:"FETCH_RETRIES" default:"2"`
	FetchMaxBytes int64         `envconfig:"FETCH_MAX_BYTES" default:"5242880"`
	UserAgent     string        `envconfig:"USER_AGENT" default:"web-rag/1.0 (+https://github.com/domenicocinque/web-rag)"`

	SplitBy             string   `envconfig:"SPLIT_BY" default:"word"`
	SplitLength         int      `envconfig:"SPLIT_LENGTH" default:"100"`
	SplitOverlap        int      `envconfig:"SPLIT_OVERLAP" default:"0"`
	BoilerplatePatterns []string `envconfig:"BOILERPLATE_PATTERNS"`
	RetrievalTopK       int      `envconfig:"RETRIEVAL_TOP_K" default:"10"`
	NoContextPolicy     string   `envconfig:"NO_CONTEXT_POLICY" default:"generate"`

	CallTimeout time.Duration `envconfig:"CALL_TIMEOUT" default:"60s"`
	Retry       RetryConfig   `envconfig:"RETRY"`

	VectorStore   string        `envconfig:"VECTOR_STORE" default:"memory"`
	DatabaseURL   string        `envconfig:"DATABASE_URL"`
	StoreTTL      time.Duration `envconfig:"STORE_TTL" default:"1h"`
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"5m"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"web-rag-runs"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

// RetryConfig bounds retries of external calls.
type RetryConfig struct {
	Attempts uint          `envconfig:"ATTEMPTS" default:"3"`
	Delay    time.Duration `envconfig:"DELAY" default:"500ms"`
	MaxDelay time.Duration `envconfig:"MAX_DELAY" default:"5s"`
}

// ToRetryOptions converts the config into retry-go options with exponential backoff.
func (rc RetryConfig) ToRetryOptions() []retry.Option {
	return []retry.Option{
		retry.Attempts(rc.Attempts),
		retry.Delay(rc.Delay),
		retry.MaxDelay(rc.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	}
}

// DefaultRetryConfig matches the envconfig defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts: 3,
		Delay:    500 * time.Millisecond,
		MaxDelay: 5 * time.Second,
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	if path := os.Getenv(envPrefix + "_CONFIG_FILE"); path != "" {
		if err := loadFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// loadFile exports the keys of a YAML file as WEBRAG_<KEY> variables.
// Variables already present in the environment win, like godotenv.
func loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for key, value := range values {
		name := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
		if _, ok := os.LookupEnv(name); ok {
			continue
		}
		if err := os.Setenv(name, yamlValueString(value)); err != nil {
			return err
		}
	}

	return nil
}

func yamlValueString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	var errs []error

	if c.SplitLength <= 0 {
		errs = append(errs, errors.New("SPLIT_LENGTH must be positive"))
	}
	if c.SplitOverlap < 0 || c.SplitOverlap >= c.SplitLength {
		errs = append(errs, errors.New("SPLIT_OVERLAP must be >= 0 and < SPLIT_LENGTH"))
	}
	switch c.SplitBy {
	case document.SplitByWord, document.SplitBySentence, document.SplitByPassage:
	default:
		errs = append(errs, fmt.Errorf("unknown SPLIT_BY %q", c.SplitBy))
	}
	if c.SearchTopK <= 0 {
		errs = append(errs, errors.New("SEARCH_TOP_K must be positive"))
	}
	if c.RetrievalTopK < 0 {
		errs = append(errs, errors.New("RETRIEVAL_TOP_K must not be negative"))
	}
	if c.FetchWorkers <= 0 {
		errs = append(errs, errors.New("FETCH_WORKERS must be positive"))
	}
	if c.EmbeddingBatchSize <= 0 {
		errs = append(errs, errors.New("EMBEDDING_BATCH_SIZE must be positive"))
	}
	if c.EmbeddingDimensions <= 0 {
		errs = append(errs, errors.New("EMBEDDING_DIMENSIONS must be positive"))
	}
	if c.Retry.Attempts == 0 {
		errs = append(errs, errors.New("RETRY_ATTEMPTS must be positive"))
	}

	switch c.SearchProvider {
	case SearchProviderDuckDuckGo:
	case SearchProviderGoogle:
		if c.GoogleAPIKey == "" || c.GoogleEngineID == "" {
			errs = append(errs, errors.New("google search requires GOOGLE_API_KEY and GOOGLE_ENGINE_ID"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SEARCH_PROVIDER %q", c.SearchProvider))
	}

	switch c.VectorStore {
	case VectorStoreMemory:
	case VectorStorePostgres:
		if !c.HasPostgres() {
			errs = append(errs, errors.New("postgres vector store requires DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown VECTOR_STORE %q", c.VectorStore))
	}

	switch c.NoContextPolicy {
	case service.NoContextGenerate, service.NoContextFallback:
	default:
		errs = append(errs, fmt.Errorf("unknown NO_CONTEXT_POLICY %q", c.NoContextPolicy))
	}

	return errors.Join(errs...)
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasPostgres() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}
