package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domenicocinque/web-rag/internal/document"
	"github.com/domenicocinque/web-rag/internal/service"
)

func TestLoad_WithEnvVars(t *testing.T) {
	t.Setenv("WEBRAG_PORT", "9090")
	t.Setenv("WEBRAG_DEBUG", "true")
	t.Setenv("WEBRAG_OPENAI_API_KEY", "sk-test")
	t.Setenv("WEBRAG_SEARCH_TOP_K", "5")
	t.Setenv("WEBRAG_SPLIT_LENGTH", "50")
	t.Setenv("WEBRAG_SPLIT_OVERLAP", "10")
	t.Setenv("WEBRAG_FETCH_TIMEOUT", "3s")
	t.Setenv("WEBRAG_RETRY_ATTEMPTS", "5")
	t.Setenv("WEBRAG_BOILERPLATE_PATTERNS", "^share this,^advertisement")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	assert.Equal(t, 5, cfg.SearchTopK)
	assert.Equal(t, 50, cfg.SplitLength)
	assert.Equal(t, 10, cfg.SplitOverlap)
	assert.Equal(t, 3*time.Second, cfg.FetchTimeout)
	assert.Equal(t, uint(5), cfg.Retry.Attempts)
	assert.Equal(t, []string{"^share this", "^advertisement"}, cfg.BoilerplatePatterns)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, SearchProviderDuckDuckGo, cfg.SearchProvider)
	assert.Equal(t, 10, cfg.SearchTopK)
	assert.Equal(t, "en", cfg.SearchLang)
	assert.Equal(t, 5, cfg.FetchWorkers)
	assert.Equal(t, document.SplitByWord, cfg.SplitBy)
	assert.Equal(t, 100, cfg.SplitLength)
	assert.Equal(t, 0, cfg.SplitOverlap)
	assert.Equal(t, 10, cfg.RetrievalTopK)
	assert.Equal(t, 32, cfg.EmbeddingBatchSize)
	assert.Equal(t, 1536, cfg.EmbeddingDimensions)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, service.NoContextGenerate, cfg.NoContextPolicy)
	assert.Equal(t, VectorStoreMemory, cfg.VectorStore)
	assert.Equal(t, DefaultRetryConfig(), cfg.Retry)
	assert.Equal(t, "web-rag-runs", cfg.S3Bucket)
}

func TestLoad_InvalidOverlap(t *testing.T) {
	t.Setenv("WEBRAG_SPLIT_LENGTH", "10")
	t.Setenv("WEBRAG_SPLIT_OVERLAP", "10")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "SPLIT_OVERLAP")
}

func TestLoad_PostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("WEBRAG_VECTOR_STORE", "postgres")
	t.Setenv("WEBRAG_DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "webrag.yaml")
	content := `
search_top_k: 3
split_by: sentence
fetch_timeout: 2s
boilerplate_patterns:
  - "^menu$"
  - "^login$"
port: "7000"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("WEBRAG_CONFIG_FILE", path)
	t.Setenv("WEBRAG_PORT", "9999")
	// Registered through t.Setenv so values exported by the file are restored.
	t.Setenv("WEBRAG_SEARCH_TOP_K", "")
	os.Unsetenv("WEBRAG_SEARCH_TOP_K")
	t.Setenv("WEBRAG_SPLIT_BY", "")
	os.Unsetenv("WEBRAG_SPLIT_BY")
	t.Setenv("WEBRAG_FETCH_TIMEOUT", "")
	os.Unsetenv("WEBRAG_FETCH_TIMEOUT")
	t.Setenv("WEBRAG_BOILERPLATE_PATTERNS", "")
	os.Unsetenv("WEBRAG_BOILERPLATE_PATTERNS")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.SearchTopK)
	assert.Equal(t, document.SplitBySentence, cfg.SplitBy)
	assert.Equal(t, 2*time.Second, cfg.FetchTimeout)
	assert.Equal(t, []string{"^menu$", "^login$"}, cfg.BoilerplatePatterns)
	assert.Equal(t, "9999", cfg.Port, "environment wins over file")
}

func TestLoad_ConfigFileMissing(t *testing.T) {
	t.Setenv("WEBRAG_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config file")
}

func TestValidate_GoogleRequiresCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.SearchProvider = SearchProviderGoogle

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_API_KEY")

	cfg.GoogleAPIKey = "key"
	cfg.GoogleEngineID = "cx"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_UnknownEnums(t *testing.T) {
	cfg := validConfig()
	cfg.SplitBy = "paragraph"
	cfg.NoContextPolicy = "ignore"
	cfg.VectorStore = "qdrant"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SPLIT_BY")
	assert.Contains(t, err.Error(), "NO_CONTEXT_POLICY")
	assert.Contains(t, err.Error(), "VECTOR_STORE")
}

func TestHasS3(t *testing.T) {
	cfg := &Config{
		S3Endpoint:  "http://localhost:9000",
		S3AccessKey: "key",
		S3SecretKey: "secret",
	}
	assert.True(t, cfg.HasS3())

	cfg.S3Endpoint = ""
	assert.False(t, cfg.HasS3())
}

func TestHasOpenAI(t *testing.T) {
	cfg := &Config{OpenAIAPIKey: "sk-test"}
	assert.True(t, cfg.HasOpenAI())

	cfg.OpenAIAPIKey = ""
	assert.False(t, cfg.HasOpenAI())
}

func TestRetryConfig_ToRetryOptions(t *testing.T) {
	opts := DefaultRetryConfig().ToRetryOptions()
	assert.Len(t, opts, 5)
}

func validConfig() *Config {
	return &Config{
		SplitBy:             document.SplitByWord,
		SplitLength:         100,
		SearchProvider:      SearchProviderDuckDuckGo,
		SearchTopK:          10,
		RetrievalTopK:       10,
		FetchWorkers:        5,
		EmbeddingBatchSize:  32,
		EmbeddingDimensions: 1536,
		VectorStore:         VectorStoreMemory,
		NoContextPolicy:     service.NoContextGenerate,
		Retry:               DefaultRetryConfig(),
	}
}
