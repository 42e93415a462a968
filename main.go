package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/oauth2/google"
	docs "google.golang.org/api/docs/v1"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/waflow/server/internal/core"
	"github.com/waflow/server/internal/dispatch"
	"github.com/waflow/server/internal/handoff"
	"github.com/waflow/server/internal/ingest"
	"github.com/waflow/server/internal/llm"
	"github.com/waflow/server/internal/rag"
	"github.com/waflow/server/internal/repo"
	"github.com/waflow/server/internal/schedule"
	"github.com/waflow/server/internal/vector"
	"github.com/waflow/server/internal/whatsapp"
	logx "github.com/waflow/server/pkg/logger"
	pkgpostgres "github.com/waflow/server/pkg/postgres"
	pkgredis "github.com/waflow/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the server, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`

	// Infrastructure
	Redis    pkgredis.Config
	Postgres pkgpostgres.Config

	// LLM providers
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY" required:"true"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	GeminiBaseURL string `envconfig:"GEMINI_BASE_URL"`

	// WhatsApp
	WhatsApp whatsapp.Config
	Webhook  dispatch.WebhookConfig

	// Conversation handoff
	EscapeKeyword string `envconfig:"HANDOFF_ESCAPE_KEYWORD" default:"agent"`

	// Document re-sync
	ResyncInterval string `envconfig:"DOC_RESYNC_INTERVAL" default:"2h"`
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	rdb, err := cfg.Redis.New()
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise redis client")
	}
	defer rdb.Close()

	pool, err := cfg.Postgres.New(ctx)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise postgres pool")
	}
	defer pool.Close()

	// LLM providers behind the model-prefix selector.
	openaiProvider := llm.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	geminiProvider, err := llm.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiBaseURL)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise gemini provider")
	}
	selector := llm.NewSelector(openaiProvider, geminiProvider)
	embedder := llm.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, llm.DefaultEmbeddingModel)

	// Retrieval stack.
	store := vector.NewStore(pool, embedder)
	if err := store.Migrate(ctx); err != nil {
		logx.Fatal().Err(err).Msg("failed to migrate vector store")
	}
	assembler := rag.NewAssembler(store)
	indexer := rag.NewIndexer(store, repo.NewRedisHashCache(rdb))

	// Dispatch pipeline.
	flows := repo.NewFlowStore(pool)
	arbiter := handoff.NewArbiter(repo.NewRedisHandoffRepository(rdb), cfg.EscapeKeyword)
	sender := whatsapp.NewClient(cfg.WhatsApp)
	dispatcher := dispatch.NewDispatcher(flows, arbiter, assembler, selector, sender)
	server := dispatch.NewServer(dispatcher, arbiter, indexer, cfg.Webhook)

	// Scheduled re-sync of linked Google documents.
	resyncer := startResync(ctx, cfg, flows, indexer)
	if resyncer != nil {
		defer resyncer.Stop()
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logx.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logx.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("http shutdown failed")
	}
}

// startResync wires the periodic document re-sync when Google application
// default credentials are available; without them linked documents are
// simply not refreshed.
func startResync(ctx context.Context, cfg AppConfig, flows *repo.FlowStore, indexer *rag.Indexer) *schedule.Resyncer {
	interval, err := time.ParseDuration(cfg.ResyncInterval)
	if err != nil {
		logx.Fatal().Err(err).Str("value", cfg.ResyncInterval).Msg("invalid DOC_RESYNC_INTERVAL")
	}

	creds, err := google.FindDefaultCredentials(ctx,
		docs.DocumentsReadonlyScope,
		sheets.SpreadsheetsReadonlyScope,
	)
	if err != nil {
		logx.Warn().Err(err).Msg("google credentials unavailable, document re-sync disabled")
		return nil
	}

	fetcher, err := ingest.NewGoogleFetcher(ctx, creds.TokenSource)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise google fetcher")
	}

	resyncer := schedule.NewResyncer(flows, fetcher, indexer, interval)
	resyncer.Start()
	return resyncer
}
