// Package config loads the process configuration once at startup.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMMode selects how the structuring and report stages generate text.
type LLMMode string

const (
	// ModeFixture uses deterministic generators (no network, test-safe).
	ModeFixture LLMMode = "fixture"

	// ModeModel calls the configured LLM provider.
	ModeModel LLMMode = "model"
)

// Provider identifies an LLM or embedding backend.
type Provider string

const (
	ProviderHash      Provider = "hash"
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderBedrock   Provider = "bedrock"
)

// StoreBackend selects where health records are persisted.
type StoreBackend string

const (
	StoreSQLite    StoreBackend = "sqlite"
	StoreSurrealDB StoreBackend = "surrealdb"
)

// Config holds all configuration values.
type Config struct {
	// Application
	AppName         string `yaml:"app_name"`
	AppEnv          string `yaml:"app_env"`
	PipelineVersion string `yaml:"pipeline_version"`
	PromptVersion   string `yaml:"prompt_version"`

	// Generation
	LLMMode         LLMMode  `yaml:"llm_mode"`
	LLMProvider     Provider `yaml:"llm_provider"`
	LLMModel        string   `yaml:"llm_model"`
	LLMRateLimit    float64  `yaml:"llm_rate_limit"` // requests per second, 0 = unlimited
	OllamaHost      string   `yaml:"ollama_host"`
	OpenAIAPIKey    string   `yaml:"-"`
	AnthropicAPIKey string   `yaml:"-"`
	AWSRegion       string   `yaml:"aws_region"`

	// Embeddings
	EmbedProvider  Provider `yaml:"embed_provider"`
	EmbedModel     string   `yaml:"embed_model"`
	EmbedDimension int      `yaml:"embed_dimension"`

	// Retrieval
	EnableRAG        bool          `yaml:"enable_rag"`
	KnowledgePath    string        `yaml:"knowledge_path"`
	RetrievalTopK    int           `yaml:"retrieval_top_k"`
	RetrievalTimeout time.Duration `yaml:"retrieval_timeout"`

	// Safety
	EnableSafetyGuard bool `yaml:"enable_safety_guard"`

	// Persistence
	EnablePersistence  bool         `yaml:"enable_persistence"`
	StoreBackend       StoreBackend `yaml:"store_backend"`
	SQLitePath         string       `yaml:"sqlite_path"`
	SurrealDBURL       string       `yaml:"surrealdb_url"`
	SurrealDBNamespace string       `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string       `yaml:"surrealdb_database"`
	SurrealDBUser      string       `yaml:"surrealdb_user"`
	SurrealDBPass      string       `yaml:"-"`
	SurrealDBAuthLevel string       `yaml:"surrealdb_auth_level"`

	// Server
	ServerPort string `yaml:"server_port"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Defaults returns the configuration used when neither a file nor the
// environment overrides a value.
func Defaults() Config {
	return Config{
		AppName:         "Healthcare AI Platform",
		AppEnv:          "local",
		PipelineVersion: "v0.1.0",
		PromptVersion:   "v1.0",

		LLMMode:     ModeFixture,
		LLMProvider: ProviderOllama,
		LLMModel:    "llama3.2",
		OllamaHost:  "http://localhost:11434",
		AWSRegion:   "us-east-1",

		EmbedProvider:  ProviderHash,
		EmbedModel:     "all-minilm:l6-v2",
		EmbedDimension: 16,

		EnableRAG:        true,
		RetrievalTopK:    3,
		RetrievalTimeout: 2 * time.Second,

		EnableSafetyGuard: true,

		EnablePersistence:  true,
		StoreBackend:       StoreSQLite,
		SQLitePath:         "healthrag.db",
		SurrealDBURL:       "ws://localhost:8000/rpc",
		SurrealDBNamespace: "healthcare",
		SurrealDBDatabase:  "records",
		SurrealDBUser:      "root",
		SurrealDBPass:      "root",
		SurrealDBAuthLevel: "root",

		ServerPort: "8484",

		LogFile:  "/tmp/healthrag.log",
		LogLevel: slog.LevelInfo,
	}
}

// Load reads configuration from the optional YAML file named by
// HEALTHRAG_CONFIG and then from environment variables.
func Load() (Config, error) {
	return LoadFile(os.Getenv("HEALTHRAG_CONFIG"))
}

// LoadFile layers defaults, the YAML file at path (skipped when empty) and
// environment variables, in that order.
func LoadFile(path string) (Config, error) {
	base := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &base); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	return fromEnv(base), nil
}

func fromEnv(base Config) Config {
	return Config{
		AppName:         getEnv("HEALTHRAG_APP_NAME", base.AppName),
		AppEnv:          getEnv("HEALTHRAG_APP_ENV", base.AppEnv),
		PipelineVersion: getEnv("HEALTHRAG_PIPELINE_VERSION", base.PipelineVersion),
		PromptVersion:   getEnv("HEALTHRAG_PROMPT_VERSION", base.PromptVersion),

		LLMMode:         LLMMode(getEnv("HEALTHRAG_LLM_MODE", string(base.LLMMode))),
		LLMProvider:     Provider(getEnv("HEALTHRAG_LLM_PROVIDER", string(base.LLMProvider))),
		LLMModel:        getEnv("HEALTHRAG_LLM_MODEL", base.LLMModel),
		LLMRateLimit:    getEnvFloat("HEALTHRAG_LLM_RATE_LIMIT", base.LLMRateLimit),
		OllamaHost:      getEnv("OLLAMA_HOST", base.OllamaHost),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", base.OpenAIAPIKey),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", base.AnthropicAPIKey),
		AWSRegion:       getEnv("AWS_REGION", base.AWSRegion),

		EmbedProvider:  Provider(getEnv("HEALTHRAG_EMBED_PROVIDER", string(base.EmbedProvider))),
		EmbedModel:     getEnv("HEALTHRAG_EMBED_MODEL", base.EmbedModel),
		EmbedDimension: getEnvInt("HEALTHRAG_EMBED_DIMENSION", base.EmbedDimension),

		EnableRAG:        getEnvBool("HEALTHRAG_ENABLE_RAG", base.EnableRAG),
		KnowledgePath:    getEnv("HEALTHRAG_KNOWLEDGE_PATH", base.KnowledgePath),
		RetrievalTopK:    getEnvInt("HEALTHRAG_RETRIEVAL_TOP_K", base.RetrievalTopK),
		RetrievalTimeout: positiveDuration(getEnvDuration("HEALTHRAG_RETRIEVAL_TIMEOUT", base.RetrievalTimeout), Defaults().RetrievalTimeout),

		EnableSafetyGuard: getEnvBool("HEALTHRAG_ENABLE_SAFETY_GUARD", base.EnableSafetyGuard),

		EnablePersistence:  getEnvBool("HEALTHRAG_ENABLE_PERSISTENCE", base.EnablePersistence),
		StoreBackend:       StoreBackend(getEnv("HEALTHRAG_STORE_BACKEND", string(base.StoreBackend))),
		SQLitePath:         getEnv("HEALTHRAG_SQLITE_PATH", base.SQLitePath),
		SurrealDBURL:       getEnv("SURREALDB_URL", base.SurrealDBURL),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", base.SurrealDBNamespace),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", base.SurrealDBDatabase),
		SurrealDBUser:      getEnv("SURREALDB_USER", base.SurrealDBUser),
		SurrealDBPass:      getEnv("SURREALDB_PASS", base.SurrealDBPass),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", base.SurrealDBAuthLevel),

		ServerPort: getEnv("HEALTHRAG_SERVER_PORT", base.ServerPort),

		LogFile:  getEnv("HEALTHRAG_LOG_FILE", base.LogFile),
		LogLevel: parseLogLevel(getEnv("HEALTHRAG_LOG_LEVEL", base.LogLevel.String())),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return v
}

func getEnvInt(key string, defaultVal int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return v
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultVal
	}
	return v
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return v
}

// positiveDuration returns d, or fallback when d is not positive.
func positiveDuration(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
