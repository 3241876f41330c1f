package di

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"rag-chat/internal/adapter/chatlog"
	rag_http "rag-chat/internal/adapter/rag_http"
	"rag-chat/internal/adapter/rag_model"
	"rag-chat/internal/adapter/repository"
	"rag-chat/internal/adapter/search"
	"rag-chat/internal/adapter/weather"
	"rag-chat/internal/domain"
	"rag-chat/internal/infra/config"
	"rag-chat/internal/infra/httpclient"
	"rag-chat/internal/infra/metrics"
	"rag-chat/internal/usecase"
	"rag-chat/internal/worker"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	// Usecases
	ChatUsecase usecase.ChatUsecase

	// Worker, nil when chat logging is disabled
	ChatLogWorker *worker.ChatLogWorker

	// Readiness probes every configured backing service.
	Readiness rag_http.ReadinessCheck

	closers []func() error
}

// NewApplicationComponents wires all dependencies from config. pool may be nil
// when no configured component uses PostgreSQL.
func NewApplicationComponents(cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) (*ApplicationComponents, error) {
	comps := &ApplicationComponents{}
	recorder := metrics.Recorder{}

	normalizer, err := domain.NewTextNormalizer(domain.DefaultFooterPatterns...)
	if err != nil {
		return nil, err
	}

	// External clients
	llm, err := newLLMClient(cfg, log)
	if err != nil {
		return nil, err
	}
	retriever, err := newRetriever(cfg, pool, log)
	if err != nil {
		return nil, err
	}

	var reranker domain.Reranker
	if cfg.Rerank.Enabled() {
		reranker = rag_model.NewRerankerClient(
			cfg.Rerank.URL,
			cfg.Rerank.Model,
			cfg.Rerank.Timeout,
			log,
			httpclient.NewPooledClient(cfg.Rerank.Timeout),
		)
		log.Info("reranker_enabled",
			slog.String("url", cfg.Rerank.URL),
			slog.String("model", cfg.Rerank.Model))
	}

	var conditions weather.ConditionsCache
	var redisCache *weather.RedisConditionsCache
	if cfg.Redis.URL != "" {
		redisCache, err = weather.NewRedisConditionsCache(cfg.Redis.URL, cfg.Redis.ConditionsTTL)
		if err != nil {
			return nil, err
		}
		conditions = redisCache
		comps.closers = append(comps.closers, redisCache.Close)
		log.Info("weather_conditions_cache_enabled", slog.Duration("ttl", cfg.Redis.ConditionsTTL))
	}
	weatherService := weather.NewOpenWeatherMapClient(weather.Config{
		APIKey:           cfg.Weather.APIKey,
		BaseURL:          cfg.Weather.BaseURL,
		Locale:           cfg.Weather.Locale,
		RatePerSecond:    cfg.Weather.RatePerSecond,
		GeocodeCacheSize: cfg.Weather.GeocodeCacheSize,
		GeocodeCacheTTL:  cfg.Weather.GeocodeCacheTTL,
		Timeout:          cfg.Timeouts.Weather,
	}, conditions, log)
	if cfg.Weather.APIKey == "" {
		log.Warn("weather_api_key_missing", slog.String("effect", "weather lookups will be omitted"))
	}

	// Chat log
	var chatLog domain.ChatLogSink
	switch cfg.ChatLog.Backend {
	case config.ChatLogFile:
		chatLog = chatlog.NewFileSink(cfg.ChatLog.Dir, log)
	case config.ChatLogPostgres:
		if pool == nil {
			return nil, errors.New("postgres chat log requires a database pool")
		}
		chatLog = repository.NewChatLogRepository(pool)
	}
	if chatLog != nil {
		comps.ChatLogWorker = worker.NewChatLogWorker(chatLog, cfg.ChatLog.QueueSize, metrics.ChatLogQueueDepth, log)
		chatLog = comps.ChatLogWorker
	}

	// Chat usecase
	pipeline, err := usecase.NewChatPipeline(usecase.ChatPipelineDeps{
		LLM:           llm,
		Retriever:     retriever,
		Reranker:      reranker,
		Weather:       weatherService,
		ChatLog:       chatLog,
		Normalizer:    normalizer,
		PromptBuilder: usecase.NewGroundedPromptBuilder(),
		Logger:        log,
		Metrics:       recorder,
	}, PipelineConfig(cfg, reranker != nil))
	if err != nil {
		return nil, err
	}
	comps.ChatUsecase = pipeline

	comps.Readiness = func(ctx context.Context) error {
		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("db: %w", err)
			}
		}
		if redisCache != nil {
			if err := redisCache.Ping(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}

	log.Info("chat_pipeline_ready",
		slog.String("llm_provider", cfg.LLM.Provider),
		slog.String("model", llm.Version()),
		slog.String("retriever", cfg.Retriever.Backend),
		slog.String("chat_log", cfg.ChatLog.Backend))
	return comps, nil
}

// Close releases clients owned by the components.
func (c *ApplicationComponents) Close() error {
	var errs []error
	for _, closeFn := range c.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}

// PipelineConfig maps the environment config onto the pipeline config.
func PipelineConfig(cfg *config.Config, rerankAvailable bool) usecase.PipelineConfig {
	pc := usecase.DefaultPipelineConfig()
	pc.RetrievalK = cfg.RAG.K
	pc.RerankEnabled = rerankAvailable
	pc.RerankCandidates = cfg.RAG.RerankCandidates
	pc.TopN = cfg.RAG.TopN
	pc.MinDocs = cfg.RAG.MinDocs
	pc.RelevanceThreshold = float32(cfg.RAG.RelevanceThreshold)
	pc.AnswerabilityEnabled = cfg.RAG.AnswerabilityEnabled
	pc.PlaceExtractionEnabled = cfg.RAG.PlaceExtractionEnabled
	pc.MaxPlaces = cfg.RAG.MaxPlaces
	pc.PlaceContextChars = cfg.RAG.PlaceContextChars
	pc.PlaceLookupConcurrency = cfg.RAG.PlaceLookupConcurrency
	pc.WeatherLocale = cfg.Weather.Locale
	pc.MaxTokens = cfg.RAG.MaxTokens
	pc.Timeouts = usecase.StageTimeouts{
		Classification:  cfg.Timeouts.Classification,
		Retrieval:       cfg.Timeouts.Retrieval,
		Rerank:          cfg.Timeouts.Rerank,
		Answerability:   cfg.Timeouts.Answerability,
		Weather:         cfg.Timeouts.Weather,
		PlaceExtraction: cfg.Timeouts.PlaceExtraction,
		Generation:      cfg.Timeouts.Generation,
		LogPersist:      cfg.Timeouts.LogPersist,
	}
	return pc
}

func openAIConfig(cfg *config.Config, provider, model string) rag_model.OpenAIConfig {
	oc := rag_model.OpenAIConfig{
		APIKey:      cfg.LLM.OpenAIAPIKey,
		BaseURL:     cfg.LLM.OpenAIBaseURL,
		Model:       model,
		Temperature: cfg.LLM.Temperature,
	}
	if provider == config.ProviderAzure {
		oc.APIKey = cfg.LLM.AzureAPIKey
		oc.AzureEndpoint = cfg.LLM.AzureEndpoint
		oc.AzureAPIVersion = cfg.LLM.AzureAPIVersion
	}
	return oc
}

func newLLMClient(cfg *config.Config, log *slog.Logger) (domain.LLMClient, error) {
	switch cfg.LLM.Provider {
	case config.ProviderOllama:
		return rag_model.NewOllamaGenerator(
			cfg.LLM.OllamaURL,
			cfg.LLM.Model,
			cfg.LLM.Temperature,
			cfg.Timeouts.Generation,
			log,
		), nil
	case config.ProviderOpenAI, config.ProviderAzure:
		return rag_model.NewOpenAIClient(openAIConfig(cfg, cfg.LLM.Provider, cfg.LLM.Model), log), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLM.Provider)
	}
}

func newRetriever(cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) (domain.Retriever, error) {
	switch cfg.Retriever.Backend {
	case config.RetrieverMeilisearch:
		client := search.NewMeiliClient(cfg.Retriever.MeiliHost, cfg.Retriever.MeiliAPIKey)
		return search.NewMeiliRetriever(client.Index(cfg.Retriever.MeiliIndex), log), nil
	case config.RetrieverPgvector:
		if pool == nil {
			return nil, errors.New("pgvector retriever requires a database pool")
		}
		var encoder domain.VectorEncoder
		switch cfg.Embedder.Provider {
		case config.ProviderOllama:
			encoder = rag_model.NewOllamaEmbedder(cfg.Embedder.URL, cfg.Embedder.Model, cfg.Embedder.Timeout, log)
		case config.ProviderOpenAI, config.ProviderAzure:
			encoder = rag_model.NewOpenAIEmbedder(openAIConfig(cfg, cfg.Embedder.Provider, cfg.Embedder.Model))
		default:
			return nil, fmt.Errorf("unknown embedder provider %q", cfg.Embedder.Provider)
		}
		return repository.NewPassageRepository(pool, encoder), nil
	default:
		return nil, fmt.Errorf("unknown retriever backend %q", cfg.Retriever.Backend)
	}
}
