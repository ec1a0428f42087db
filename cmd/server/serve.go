package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Shimizu-Technology/reelforge-api/internal/database"
	"github.com/Shimizu-Technology/reelforge-api/internal/handlers"
	"github.com/Shimizu-Technology/reelforge-api/internal/ledger"
	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
	"github.com/Shimizu-Technology/reelforge-api/internal/router"
	"github.com/Shimizu-Technology/reelforge-api/internal/services/audio"
	"github.com/Shimizu-Technology/reelforge-api/internal/services/events"
	"github.com/Shimizu-Technology/reelforge-api/internal/services/ideas"
	"github.com/Shimizu-Technology/reelforge-api/internal/services/ingest"
	"github.com/Shimizu-Technology/reelforge-api/internal/services/webhook"
	"github.com/Shimizu-Technology/reelforge-api/internal/services/worker"
)

const reapInterval = time.Minute

// serve wires every service together and blocks until SIGINT or SIGTERM.
func (a *app) serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log := a.cfg, a.log
	log.Info().Str("version", Version).Msg("ReelForge API starting")
	log.Info().Str("port", cfg.Port).Int("workers", cfg.WorkerCount).Str("gin_mode", cfg.GinMode).Msg("config loaded")
	gin.SetMode(cfg.GinMode)

	pipelineCfg, err := cfg.PipelineConfig()
	if err != nil {
		return err
	}

	// Step 1: Connect to Database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info().Msg("database connected")

	if err := db.RunMigrations(cfg.MigrationsPath, log); err != nil {
		return err
	}

	// Step 2: Start the worker pool. Idea synthesis and ledger writes run
	// on it.
	wp := worker.NewPool(cfg.WorkerCount, cfg.JobQueueSize, log)
	wp.Start()
	var clients []io.Closer
	defer func() { stopPool(wp, clients, log) }()

	// Step 3: Create Services
	book := ledger.New(cfg.StartingCredits,
		ledger.WithStore(db),
		ledger.WithRecorder(database.NewRecorder(db, wp, log)),
	)

	aiClient := ideas.NewClient(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, "", log)
	if aiClient.Configured() {
		log.Info().Str("model", cfg.OpenRouterModel).Msg("idea synthesis enabled (OpenRouter)")
	} else {
		log.Warn().Msg("OPENROUTER_API_KEY not set; using template ideas, refinement and captions")
	}
	refiner := ideas.NewRefiner(aiClient)

	transcriber := audio.NewTranscriber(cfg.OpenAIAPIKey, "", log)
	if !transcriber.IsConfigured() {
		log.Warn().Msg("audio transcription disabled (set OPENAI_API_KEY to enable)")
	}

	var reverser ingest.Reverser
	if cfg.IngestAPIURL != "" {
		reverser = ingest.NewClient(cfg.IngestAPIURL, cfg.IngestAPIKey, log)
	} else {
		log.Warn().Msg("reference ingestion disabled (set INGEST_API_URL to enable)")
	}

	webhookService := webhook.New(db, log)
	notifiers := events.Fanout{webhookService}

	var (
		feed       handlers.EventFeed
		redisCheck func(context.Context) error
	)
	if cfg.RedisURL != "" {
		rdb, err := events.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		clients = append(clients, rdb)
		publisher := events.NewRedisPublisher(rdb, log)
		notifiers = append(notifiers, publisher)
		feed = publisher
		redisCheck = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		log.Info().Msg("redis event feed enabled")
	} else {
		notifiers = append(notifiers, events.LogNotifier{Log: log})
	}

	sessions := pipeline.NewManager(pipelineCfg, book, pipeline.Deps{
		Synthesizer: ideas.NewSynthesizer(aiClient, cfg.OpenRouterModel),
		Refiner:     refiner,
		Captioner:   ideas.NewCaptioner(aiClient),
		Runner:      wp,
		Notifier:    notifiers,
		History:     db,
		Logger:      log,
	})
	go sessions.Run(ctx, reapInterval)

	// Step 4: Setup HTTP Router
	h := handlers.NewHandler(handlers.Deps{
		Store:          db,
		Sessions:       sessions,
		Ledger:         book,
		Worker:         wp,
		Transcriber:    transcriber,
		Reverser:       reverser,
		Refiner:        refiner,
		Feed:           feed,
		RedisCheck:     redisCheck,
		AllowedOrigins: cfg.AllowedOrigins,
		Log:            log,
	})
	r, limiter := router.Setup(h, router.Options{
		JWTSecret:        cfg.JWTSecret,
		AdminUserIDs:     cfg.AdminUserIDs,
		AllowedOrigins:   cfg.AllowedOrigins,
		RateLimitPerHour: cfg.RateLimitPerHour,
		Log:              log,
	})
	defer limiter.Stop()

	// Step 5: Start the HTTP Server
	// WriteTimeout stays zero: the session stream is a long-lived
	// WebSocket and sets its own write deadlines.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Step 6: Graceful Shutdown
	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server forced to shutdown")
	}

	// Sessions release their holds before the pool that records them stops.
	sessions.Shutdown()
	webhookService.Shutdown()

	log.Info().Msg("server stopped")
	return nil
}

// stopPool drains the worker pool, then closes the clients its queued tasks
// publish through.
func stopPool(wp interface{ Stop() }, clients []io.Closer, log zerolog.Logger) {
	wp.Stop()
	for _, c := range clients {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close client")
		}
	}
}
