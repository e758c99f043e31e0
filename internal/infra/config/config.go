package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the process configuration, loaded from environment variables.
type Config struct {
	Env  string
	Port string

	// Index backend: "postgres" or "memory".
	IndexBackend string
	DBHost       string
	DBPort       string
	DBUser       string
	DBPassword   string
	DBName       string

	// LLM provider: "ollama" or "openai".
	LLMProvider     string
	OllamaURL       string
	GenerationModel string
	JudgeModel      string
	EmbeddingModel  string
	OpenAIAPIKey    string
	OpenAIBaseURL   string

	RerankerURL   string
	RerankerModel string

	TopK                int
	RerankK             int
	TokenBudget         int
	// SearchLimit is the per-signal candidate pool before fusion; 0 derives
	// it from TopK.
	SearchLimit         int
	RRFK                float64
	SynthesisMaxTokens  int
	SnippetMaxRunes     int
	StageTimeout        time.Duration
	RequestTimeout      time.Duration
	MaxRetriesRetrieval int
	MaxRetriesSynthesis int
	SuppressUngrounded  bool

	CacheSize int
	CacheTTL  time.Duration

	LLMRequestsPerSecond float64
	LLMBurst             int

	OTelEnabled  bool
	OTelEndpoint string
}

func Load() *Config {
	otelEndpoint := getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	return &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "9020"),

		IndexBackend: getEnv("INDEX_BACKEND", "postgres"),
		DBHost:       getEnv("DB_HOST", "rag-db"),
		DBPort:       getEnv("DB_PORT", "5432"),
		DBUser:       getEnv("DB_USER", "rag_user"),
		DBPassword:   getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "rag_password"),
		DBName:       getEnv("DB_NAME", "rag_db"),

		LLMProvider:     getEnv("LLM_PROVIDER", "ollama"),
		OllamaURL:       getEnvWithAlt("OLLAMA_URL", "OLLAMA_HOST", "http://ollama:11434"),
		GenerationModel: getEnv("GENERATION_MODEL", "llama3.1:8b"),
		JudgeModel:      getEnv("JUDGE_MODEL", ""),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
		OpenAIAPIKey:    getSecret("OPENAI_API_KEY", "OPENAI_API_KEY_FILE", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),

		RerankerURL:   getEnv("RERANKER_URL", ""),
		RerankerModel: getEnv("RERANKER_MODEL", "bge-reranker-v2-m3"),

		TopK:                getEnvInt("RAG_TOP_K", 20),
		RerankK:             getEnvInt("RAG_RERANK_K", 5),
		TokenBudget:         getEnvInt("RAG_TOKEN_BUDGET", 3000),
		SearchLimit:         getEnvInt("RAG_SEARCH_LIMIT", 0),
		RRFK:                getEnvFloat("RAG_RRF_K", 60),
		SynthesisMaxTokens:  getEnvInt("RAG_SYNTHESIS_MAX_TOKENS", 1024),
		SnippetMaxRunes:     getEnvInt("RAG_SNIPPET_MAX_RUNES", 200),
		StageTimeout:        getEnvDuration("RAG_STAGE_TIMEOUT", 30*time.Second),
		RequestTimeout:      getEnvDuration("RAG_REQUEST_TIMEOUT", 120*time.Second),
		MaxRetriesRetrieval: getEnvInt("RAG_MAX_RETRIES_RETRIEVAL", 3),
		MaxRetriesSynthesis: getEnvInt("RAG_MAX_RETRIES_SYNTHESIS", 2),
		SuppressUngrounded:  getEnvBool("SAFETY_SUPPRESS_UNGROUNDED", false),

		CacheSize: getEnvInt("RAG_CACHE_SIZE", 256),
		CacheTTL:  getEnvDuration("RAG_CACHE_TTL", 10*time.Minute),

		LLMRequestsPerSecond: getEnvFloat("LLM_REQUESTS_PER_SECOND", 0),
		LLMBurst:             getEnvInt("LLM_BURST", 1),

		OTelEnabled:  otelEndpoint != "",
		OTelEndpoint: otelEndpoint,
	}
}

// DSN builds the Postgres connection string.
func (c *Config) DSN() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getSecret reads a secret from the environment, falling back to the file
// named by fileEnvKey (Docker/Kubernetes secret mounts).
func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvWithAlt(key, altKey, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	if value, ok := os.LookupEnv(altKey); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
