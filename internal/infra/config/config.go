package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env       string
	Server    ServerConfig
	DB        DBConfig
	LLM       LLMConfig
	Embedder  EmbedderConfig
	Retriever RetrieverConfig
	Rerank    RerankConfig
	RAG       RAGConfig
	Weather   WeatherConfig
	Redis     RedisConfig
	ChatLog   ChatLogConfig
	Timeouts  TimeoutConfig
	OTel      OTelConfig
}

type ServerConfig struct {
	Port        string
	ConnectPort string
	// AllowOrigins feeds the CORS middleware; "*" allows every origin.
	AllowOrigins []string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	MaxConns int
	MinConns int
}

// DSN renders the pgx connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// LLM providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
)

type LLMConfig struct {
	Provider        string
	OllamaURL       string
	Model           string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AzureEndpoint   string
	AzureAPIKey     string
	AzureAPIVersion string
	Temperature     float64
	MaxTokens       int
}

type EmbedderConfig struct {
	Provider string
	URL      string
	Model    string
	Timeout  time.Duration
}

// Retriever backends.
const (
	RetrieverPgvector    = "pgvector"
	RetrieverMeilisearch = "meilisearch"
)

type RetrieverConfig struct {
	Backend     string
	MeiliHost   string
	MeiliAPIKey string
	MeiliIndex  string
}

type RerankConfig struct {
	URL     string
	Model   string
	Timeout time.Duration
}

// Enabled reports whether a reranker endpoint is configured.
func (c RerankConfig) Enabled() bool {
	return c.URL != ""
}

type RAGConfig struct {
	K                      int
	RerankCandidates       int
	TopN                   int
	MinDocs                int
	RelevanceThreshold     float64
	AnswerabilityEnabled   bool
	PlaceExtractionEnabled bool
	MaxPlaces              int
	PlaceContextChars      int
	PlaceLookupConcurrency int
	MaxTokens              int
}

type WeatherConfig struct {
	APIKey           string
	BaseURL          string
	Locale           string
	RatePerSecond    float64
	GeocodeCacheSize int
	GeocodeCacheTTL  time.Duration
}

type RedisConfig struct {
	URL           string
	ConditionsTTL time.Duration
}

// Chat log backends.
const (
	ChatLogFile     = "file"
	ChatLogPostgres = "postgres"
	ChatLogNone     = "none"
)

type ChatLogConfig struct {
	Backend   string
	Dir       string
	QueueSize int
}

// TimeoutConfig bounds every external call made while answering a request.
type TimeoutConfig struct {
	Classification  time.Duration
	Retrieval       time.Duration
	Rerank          time.Duration
	Answerability   time.Duration
	Weather         time.Duration
	PlaceExtraction time.Duration
	Generation      time.Duration
	LogPersist      time.Duration
}

type OTelConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	SampleRatio float64
}

// NeedsDB reports whether any configured component uses PostgreSQL.
func (c *Config) NeedsDB() bool {
	return c.Retriever.Backend == RetrieverPgvector || c.ChatLog.Backend == ChatLogPostgres
}

func Load() *Config {
	llmProvider := getEnv("LLM_PROVIDER", "")
	if llmProvider == "" {
		llmProvider = ProviderOllama
		if _, ok := os.LookupEnv("AZURE_OPENAI_ENDPOINT"); ok {
			llmProvider = ProviderAzure
		}
	}
	defaultModel := "gpt-4o-mini"
	if llmProvider == ProviderOllama {
		defaultModel = "llama3.1:8b"
	}

	return &Config{
		Env: getEnv("ENV", "development"),
		Server: ServerConfig{
			Port:         getEnv("PORT", "8000"),
			ConnectPort:  getEnv("CONNECT_PORT", "8001"),
			AllowOrigins: getEnvList("CORS_ALLOW_ORIGINS", []string{"*"}),
		},
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "rag-db"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "rag_user"),
			Password: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "rag_password"),
			Name:     getEnv("DB_NAME", "rag_db"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 10),
			MinConns: getEnvInt("DB_MIN_CONNS", 2),
		},
		LLM: LLMConfig{
			Provider:        llmProvider,
			OllamaURL:       getEnvWithAlt("OLLAMA_URL", "AUGUR_EXTERNAL_URL", "http://localhost:11434"),
			Model:           getEnvWithAlt("LLM_MODEL", "AZURE_OPENAI_DEPLOYMENT", defaultModel),
			OpenAIAPIKey:    getSecret("OPENAI_API_KEY", "OPENAI_API_KEY_FILE", ""),
			OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
			AzureEndpoint:   getEnv("AZURE_OPENAI_ENDPOINT", ""),
			AzureAPIKey:     getSecret("AZURE_OPENAI_KEY", "AZURE_OPENAI_KEY_FILE", ""),
			AzureAPIVersion: getEnv("AZURE_OPENAI_API_VERSION", "2024-06-01"),
			Temperature:     getEnvFloat64("LLM_TEMPERATURE", 0),
			MaxTokens:       getEnvInt("LLM_MAX_TOKENS", 1024),
		},
		Embedder: EmbedderConfig{
			Provider: getEnv("EMBEDDER_PROVIDER", ProviderOllama),
			URL:      getEnvWithAlt("EMBEDDER_URL", "OLLAMA_URL", "http://localhost:11434"),
			Model:    getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			Timeout:  getEnvDuration("EMBEDDER_TIMEOUT", 30*time.Second),
		},
		Retriever: RetrieverConfig{
			Backend:     getEnv("RETRIEVER_BACKEND", RetrieverPgvector),
			MeiliHost:   getEnv("MEILISEARCH_HOST", "http://localhost:7700"),
			MeiliAPIKey: getSecret("MEILISEARCH_API_KEY", "MEILISEARCH_API_KEY_FILE", ""),
			MeiliIndex:  getEnv("MEILISEARCH_INDEX", "passages"),
		},
		Rerank: RerankConfig{
			URL:     getEnv("RERANK_URL", ""),
			Model:   getEnv("RERANK_MODEL", "bge-reranker-v2-m3"),
			Timeout: getEnvDuration("RERANK_TIMEOUT", 10*time.Second),
		},
		RAG: RAGConfig{
			K:                      getEnvInt("RAG_RETRIEVAL_K", 5),
			RerankCandidates:       getEnvInt("RAG_RERANK_CANDIDATES", 20),
			TopN:                   getEnvInt("RAG_RERANK_TOP_N", 10),
			MinDocs:                getEnvInt("RAG_RERANK_MIN_DOCS", 5),
			RelevanceThreshold:     getEnvFloat64("RAG_RELEVANCE_THRESHOLD", 0.1),
			AnswerabilityEnabled:   getEnvBool("RAG_ANSWERABILITY_ENABLED", true),
			PlaceExtractionEnabled: getEnvBool("RAG_PLACE_EXTRACTION_ENABLED", true),
			MaxPlaces:              getEnvInt("RAG_MAX_PLACES", 5),
			PlaceContextChars:      getEnvInt("RAG_PLACE_CONTEXT_CHARS", 6000),
			PlaceLookupConcurrency: getEnvInt("RAG_PLACE_LOOKUP_CONCURRENCY", 3),
			MaxTokens:              getEnvInt("RAG_MAX_TOKENS", 1024),
		},
		Weather: WeatherConfig{
			APIKey:           getSecret("OPENWEATHERMAP_API_KEY", "OPENWEATHERMAP_API_KEY_FILE", ""),
			BaseURL:          getEnv("OPENWEATHERMAP_BASE_URL", "https://api.openweathermap.org"),
			Locale:           getEnv("WEATHER_LOCALE", "en"),
			RatePerSecond:    getEnvFloat64("WEATHER_RATE_PER_SECOND", 5),
			GeocodeCacheSize: getEnvInt("WEATHER_GEOCODE_CACHE_SIZE", 512),
			GeocodeCacheTTL:  getEnvDuration("WEATHER_GEOCODE_CACHE_TTL", 24*time.Hour),
		},
		Redis: RedisConfig{
			URL:           getEnv("REDIS_URL", ""),
			ConditionsTTL: getEnvDuration("WEATHER_CONDITIONS_TTL", 10*time.Minute),
		},
		ChatLog: ChatLogConfig{
			Backend:   getEnv("CHAT_LOG_BACKEND", ChatLogFile),
			Dir:       getEnv("CHAT_LOG_DIR", "chat_logs"),
			QueueSize: getEnvInt("CHAT_LOG_QUEUE_SIZE", 256),
		},
		Timeouts: TimeoutConfig{
			Classification:  getEnvDuration("TIMEOUT_CLASSIFICATION", 15*time.Second),
			Retrieval:       getEnvDuration("TIMEOUT_RETRIEVAL", 20*time.Second),
			Rerank:          getEnvDuration("TIMEOUT_RERANK", 15*time.Second),
			Answerability:   getEnvDuration("TIMEOUT_ANSWERABILITY", 15*time.Second),
			Weather:         getEnvDuration("TIMEOUT_WEATHER", 10*time.Second),
			PlaceExtraction: getEnvDuration("TIMEOUT_PLACE_EXTRACTION", 15*time.Second),
			Generation:      getEnvDuration("TIMEOUT_GENERATION", 120*time.Second),
			LogPersist:      getEnvDuration("TIMEOUT_LOG_PERSIST", 5*time.Second),
		},
		OTel: OTelConfig{
			Enabled:     getEnvBool("OTEL_ENABLED", false),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "rag-chat"),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
			SampleRatio: getEnvFloat64("OTEL_SAMPLE_RATIO", 1.0),
		},
	}
}

// Validate checks the combinations Load cannot reject on its own.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOllama, ProviderOpenAI:
	case ProviderAzure:
		if c.LLM.AzureEndpoint == "" {
			return fmt.Errorf("AZURE_OPENAI_ENDPOINT is required for the azure provider")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLM.Provider)
	}
	switch c.Retriever.Backend {
	case RetrieverPgvector, RetrieverMeilisearch:
	default:
		return fmt.Errorf("unknown RETRIEVER_BACKEND %q", c.Retriever.Backend)
	}
	switch c.ChatLog.Backend {
	case ChatLogFile, ChatLogPostgres, ChatLogNone:
	default:
		return fmt.Errorf("unknown CHAT_LOG_BACKEND %q", c.ChatLog.Backend)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	// 1. Try direct environment variable
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}

	// 2. Try reading from file specified by fileEnvKey
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
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

func getEnvFloat64(key string, fallback float64) float64 {
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

// getEnvDuration accepts Go durations ("1500ms") or plain seconds ("15").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
