package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/pedira/pedira/db"
	"github.com/pedira/pedira/internal/api"
	"github.com/pedira/pedira/internal/assistant"
	"github.com/pedira/pedira/internal/chunk"
	"github.com/pedira/pedira/internal/config"
	"github.com/pedira/pedira/internal/embed"
	"github.com/pedira/pedira/internal/feedback"
	"github.com/pedira/pedira/internal/i18n"
	"github.com/pedira/pedira/internal/ingest"
	"github.com/pedira/pedira/internal/log"
	"github.com/pedira/pedira/internal/vecstore"
)

// Setup builds the application graph from configuration. On failure,
// everything already initialised is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}

	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideTracing(ctx, cfg, logger)

	pool, err := provideDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}

	a.Embedder, err = embed.New(embedder, cfg.EmbedDimension)
	if err != nil {
		return nil, err
	}

	a.Index, err = vecstore.NewPostgres(pool, cfg.EmbedDimension, logger)
	if err != nil {
		return nil, err
	}

	a.Feedback, err = feedback.NewStore(pool, logger)
	if err != nil {
		return nil, err
	}

	catalog := i18n.New(cfg.Language)

	a.Assistant, err = provideAssistant(g, cfg, catalog, a.Embedder, a.Index, logger)
	if err != nil {
		return nil, err
	}

	if cfg.DocumentsRoot != "" {
		a.Pipeline, a.Watcher, err = provideIngestion(cfg, a.Embedder, a.Index, logger)
		if err != nil {
			return nil, err
		}
	}

	a.Server, err = api.NewServer(api.ServerConfig{
		Logger:    logger,
		Catalog:   catalog,
		Assistant: a.Assistant,
		Feedback:  a.Feedback,
		Index:     a.Index,
		IndexName: cfg.IndexName,
		ModelName: cfg.ModelName,
		RateBurst: cfg.RateBurst,
	})
	if err != nil {
		return nil, err
	}

	return a, nil
}

// provideTracing wires optional OTLP trace export. Without an endpoint it is
// a no-op.
func provideTracing(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	// SAFETY: os.Setenv is not concurrent-safe, but Setup runs exactly once
	// at startup before any goroutine is spawned.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter)),
	)

	logger.Info("OTLP tracing enabled", "endpoint", cfg.OTLPEndpoint)
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideGenkit initialises Genkit with the Google AI plugin. The plugin
// reads GEMINI_API_KEY; a per-model key from configuration takes precedence.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	// SAFETY: startup only, no goroutines yet.
	if cfg.GenModelKey != "" {
		_ = os.Setenv("GEMINI_API_KEY", cfg.GenModelKey)
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with googleai provider")
	}

	logger.Info("initialized Genkit", "model", cfg.ModelName, "embedder", cfg.EmbedderModel)
	return g, nil
}

// provideAssistant wires the ask pipeline.
func provideAssistant(g *genkit.Genkit, cfg *config.Config, catalog *i18n.Catalog, embedder assistant.Embedder, index vecstore.Index, logger log.Logger) (*assistant.Service, error) {
	retriever, err := assistant.NewRetriever(embedder, index, logger, cfg.TopK, cfg.FetchK)
	if err != nil {
		return nil, err
	}

	composer, err := assistant.NewComposer(catalog)
	if err != nil {
		return nil, err
	}

	generator, err := assistant.NewGenerator(g, cfg.FullModelName())
	if err != nil {
		return nil, err
	}

	return assistant.NewService(retriever, composer, generator, catalog, logger, assistant.Options{
		Deadline:           cfg.RequestDeadline(),
		DisclaimerOverride: cfg.DisclaimerText,
		RequireContext:     cfg.RequireContext,
	})
}

// provideIngestion wires the document pipeline and its watcher.
func provideIngestion(cfg *config.Config, embedder ingest.Embedder, index vecstore.Index, logger log.Logger) (*ingest.Pipeline, *ingest.Watcher, error) {
	registry, err := ingest.OpenRegistry(cfg.RegistryPath)
	if err != nil {
		return nil, nil, err
	}

	pipeline, err := ingest.NewPipeline(registry, embedder, index, logger, ingest.Options{
		Root:      cfg.DocumentsRoot,
		BatchSize: cfg.BatchSize,
		Splitter:  chunk.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
	})
	if err != nil {
		return nil, nil, err
	}

	watcher, err := ingest.NewWatcher(cfg.DocumentsRoot, pipeline, logger,
		cfg.SettleDelay(), cfg.ScanInterval(), cfg.IngestConcurrency)
	if err != nil {
		return nil, nil, err
	}

	return pipeline, watcher, nil
}
