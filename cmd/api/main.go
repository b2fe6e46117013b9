package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/quest/internal/api"
	"example.com/quest/internal/coach"
	"example.com/quest/internal/config"
	"example.com/quest/internal/eligibility"
	"example.com/quest/internal/linkcheck"
	"example.com/quest/internal/llm"
	"example.com/quest/internal/observability"
	"example.com/quest/internal/outbox"
	persistence "example.com/quest/internal/persistence/postgres"
	"example.com/quest/internal/progress"
	"example.com/quest/internal/proof"
	"example.com/quest/internal/ratelimit"
	httptransport "example.com/quest/internal/transport/http"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool)

	producer := outbox.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	dispatcher := outbox.NewDispatcher(pool, producer, logger.Named("outbox"), cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	go dispatcher.Start(ctx)

	llmCfg := llm.Config{
		OpenAI:    llm.OpenAIConfig{APIKey: cfg.OpenAIKey, Model: cfg.OpenAIModel},
		Gemini:    llm.GeminiConfig{APIKey: cfg.GeminiKey, Model: cfg.GeminiModel},
		Anthropic: llm.AnthropicConfig{APIKey: cfg.AnthropicKey, Model: cfg.AnthropicModel},
	}
	textChain := llm.NewChainFromConfig(ctx, llmCfg, logger.Named("llm.text"),
		llm.WithFailureHook(observability.RecordProviderFallback))
	visionChain := llm.NewChainFromConfig(ctx, llmCfg, logger.Named("llm.vision"),
		llm.WithFailureHook(observability.RecordProviderFallback))

	lockout := eligibility.NewLockout(cfg.LockoutThreshold, cfg.LockoutWindow)
	gate := eligibility.NewGate(repo, repo, lockout, logger.Named("eligibility"))

	progressSvc := progress.NewService(repo)
	links := linkcheck.NewValidator(cfg.ProbeTimeout, linkcheck.WithLogger(logger.Named("linkcheck")))
	ocr := proof.NewVisionExtractor(visionChain, cfg.VisionTimeout)
	pipeline := proof.NewPipeline(ocr, textChain, visionChain, cfg.TextTimeout, cfg.VisionTimeout, logger.Named("proof"))
	advisor := coach.NewAdvisor(textChain, cfg.TextTimeout, logger.Named("coach"))

	handler := api.NewHandler(gate, progressSvc, links, pipeline, advisor, repo, logger.Named("api"))
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	loginLimiter := ratelimit.NewLimiter("login", cfg.LoginRatePerMin)
	questLimiter := ratelimit.NewLimiter("quest", cfg.QuestRatePerMin)

	routed := http.NewServeMux()
	routed.Handle("/v1/login", loginLimiter.Wrap(mux))
	routed.Handle("/v1/", questLimiter.Wrap(mux))
	routed.Handle("/", mux)

	root := api.Recover(logger, api.LogRequests(logger.Named("http"), routed))

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, root)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("quest service listening", zap.String("address", cfg.HTTPAddress))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-shutdownCh
	logger.Info("shutdown requested")
	cancel()

	if err := httptransport.Shutdown(server, 15*time.Second); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}

	dispatcher.Wait()
}
