package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/janani/maai/config"
	"github.com/janani/maai/controller"
	"github.com/janani/maai/logger"
	"github.com/janani/maai/services"
	"github.com/janani/maai/store"
)

const (
	generationTemperature = 0.3
	utilityTemperature    = 0.1
)

var envFile string

var rootCmd = &cobra.Command{
	Use:           "maai",
	Short:         "Maternal-health voice assistant backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "FATAL:", err)
		os.Exit(1)
	}
}

func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "maai")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	if cfg.UnidocLicenseKey != "" {
		if err := services.SetPDFLicense(cfg.UnidocLicenseKey); err != nil {
			log.Warn("PDF license rejected, PDF corpus files will fail", zap.Error(err))
		}
	}
	return cfg, log, nil
}

// corpusIndex is the chroma collection plus the embedder it was built with.
type corpusIndex struct {
	index    *services.ChromaIndex
	embedder services.Embedder
	close    func()
}

func openCorpusIndex(ctx context.Context, cfg *config.Config, log *zap.Logger) (*corpusIndex, error) {
	chromaClient, err := chromago.NewHTTPClient(chromago.WithBaseURL(cfg.ChromaURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}

	collection, err := services.GetOrCreateCollection(ctx, chromaClient, cfg.ChromaCollection)
	if err != nil {
		chromaClient.Close()
		return nil, fmt.Errorf("failed to get or create collection %q: %w", cfg.ChromaCollection, err)
	}
	log.Info("Connected to chroma", zap.String("collection", cfg.ChromaCollection))

	ollamaLLM, err := ollama.New(ollama.WithModel(cfg.EmbeddingModel), ollama.WithServerURL(cfg.OllamaURL))
	if err != nil {
		chromaClient.Close()
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(ollamaLLM)
	if err != nil {
		chromaClient.Close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return &corpusIndex{
		index:    services.NewChromaIndex(collection),
		embedder: embedder,
		close: func() {
			if err := chromaClient.Close(); err != nil {
				log.Warn("Failed to close chroma client", zap.Error(err))
			}
		},
	}, nil
}

// languageModels holds one streamer for answers and plain completers for
// the utility calls.
type languageModels struct {
	streamer   services.TokenStreamer
	translator services.Completer
	extractor  services.Completer
}

func openLanguageModels(ctx context.Context, cfg *config.Config) (*languageModels, error) {
	switch cfg.GenerationProvider {
	case "groq":
		llm, err := openai.New(
			openai.WithToken(cfg.GroqAPIKey),
			openai.WithModel(cfg.GroqModel),
			openai.WithBaseURL(cfg.GroqBaseURL),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create groq client: %w", err)
		}
		return &languageModels{
			streamer:   services.NewLangChainModel(llm, generationTemperature),
			translator: services.WithCompletionTimeout(services.NewLangChainModel(llm, utilityTemperature), cfg.LLMTimeout),
			extractor:  services.WithCompletionTimeout(services.NewLangChainModel(llm, 0), cfg.LLMTimeout),
		}, nil
	default:
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w. Make sure GEMINI_API_KEY is set", err)
		}
		return &languageModels{
			streamer: services.NewGeminiModel(client, cfg.GeminiModel,
				services.WithGeminiTemperature(generationTemperature)),
			translator: services.WithCompletionTimeout(services.NewGeminiModel(client, cfg.GeminiModel,
				services.WithGeminiTemperature(utilityTemperature)), cfg.LLMTimeout),
			extractor: services.WithCompletionTimeout(services.NewGeminiModel(client, cfg.GeminiModel,
				services.WithGeminiTemperature(utilityTemperature),
				services.WithGeminiJSONSchema(services.ClinicalRecordSchema())), cfg.LLMTimeout),
		}, nil
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, interactions are kept in memory only")
		return store.NewMemoryStore(), nil
	}
	pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(); err != nil {
		pg.Close()
		return nil, err
	}
	log.Info("Connected to Postgres")
	return pg, nil
}

func openTranslationCache(ctx context.Context, cfg *config.Config, log *zap.Logger) *services.RedisTranslationCache {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	cache := services.NewRedisTranslationCache(client, cfg.TranslationCacheTTL)
	if err := cache.Ping(ctx); err != nil {
		log.Warn("Redis unreachable, translation cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		client.Close()
		return nil
	}
	log.Info("Translation cache enabled", zap.String("addr", cfg.RedisAddr))
	return cache
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Construction order: index, models, persistence.
	corpus, err := openCorpusIndex(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer corpus.close()

	lm, err := openLanguageModels(ctx, cfg)
	if err != nil {
		return err
	}
	log.Info("Language models ready", zap.String("provider", cfg.GenerationProvider))

	interactions, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer interactions.Close()

	probes := []services.HealthProbe{
		services.IndexProbe(corpus.index),
		{Name: "embedder", Check: func(ctx context.Context) error {
			_, err := corpus.embedder.EmbedQuery(ctx, "health check")
			return err
		}},
	}

	var primary services.TranslationStrategy
	if cfg.SarvamAPIKey != "" {
		sarvam := services.NewSarvamClient(cfg.SarvamBaseURL, cfg.SarvamAPIKey, cfg.TranslationTimeout, log)
		primary = sarvam
		probes = append(probes, services.HealthProbe{Name: "translation_api", Check: sarvam.Ping})
	} else {
		log.Warn("SARVAM_API_KEY not set, translating with the language model only")
	}

	var cache services.TranslationCache
	if c := openTranslationCache(ctx, cfg, log); c != nil {
		cache = c
		probes = append(probes, services.HealthProbe{Name: "translation_cache", Check: c.Ping})
	}
	probes = append(probes, services.HealthProbe{Name: "store", Check: interactions.Ping})

	var identifier *services.LanguageIdentifier
	if cfg.DetectLanguage {
		identifier = services.NewLanguageIdentifier(lm.translator)
	}

	ragService := services.NewRAGService(services.RAGDependencies{
		Translator: services.NewTranslator(primary, cache, lm.translator, log),
		Identifier: identifier,
		Generator: services.NewAnswerGenerator(
			services.NewRetriever(corpus.embedder, corpus.index, cfg.RetrievalTimeout, log),
			lm.streamer, cfg.LLMTimeout, log),
		Extractor:    services.NewClinicalExtractor(lm.extractor, log),
		Store:        interactions,
		StoreTimeout: cfg.StoreTimeout,
		Logger:       log,
	})

	health := services.NewHealthChecker(5*time.Second, log, probes...)
	health.Run(ctx)

	indexer := services.NewFileIndexingService(corpus.index, corpus.embedder, log)
	ragController := controller.NewRAGController(ragService, interactions, indexer, health, log)

	router := gin.Default()
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
	ragController.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
