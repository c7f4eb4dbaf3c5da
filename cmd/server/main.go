// Command server runs the account-linking backend: the HTTP API that the
// Discord bot and the game-server plugin talk to, the SQLite-backed link
// store, and the background sweeps that expire verification codes and
// command cooldowns.
//
// Startup order matters: the link store is opened and migrated before the
// server accepts traffic, and a failure there is fatal — serving link and
// unlink requests without knowing the persisted state would let players
// double-link or lose links.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/crafthub/go-link-backend/internal/config"
	httpapi "github.com/crafthub/go-link-backend/internal/http"
	"github.com/crafthub/go-link-backend/internal/observability"
	"github.com/crafthub/go-link-backend/internal/repo"
	"github.com/crafthub/go-link-backend/internal/schedule"
	"github.com/crafthub/go-link-backend/internal/services"
	"github.com/crafthub/go-link-backend/internal/sysutil"
	"github.com/crafthub/go-link-backend/internal/verify"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	// Logging: global level plus optional pretty console output for dev.
	sysutil.SetLogLevel(cfg.LogLevel)
	log.Logger = sysutil.NewLogger(cfg.OTEL.ServiceName, cfg.LogPretty)
	logger := log.Logger

	logger.Info().Str("version", version).Str("port", cfg.Port).Msg("starting link backend")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing (no-op unless OTEL_ENABLED).
	otelShutdown, err := observability.Setup(ctx, cfg.OTEL, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("otel setup failed")
	}

	// Link store. Refuse to start without it: the linking protocol cannot
	// answer "is this account already linked" from memory alone.
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("open link store failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migrate link store failed")
	}
	if n, err := repo.CountLinks(ctx, db); err == nil {
		logger.Info().Int64("links", n).Msg("link store loaded")
	}

	// Scheduled-event registries and their sweep loops. Verification codes
	// and warmups keep separate registries so their metrics stay distinct.
	verifyEvents := schedule.New("verify", logger)
	warmupEvents := schedule.New("warmup", logger)
	go verifyEvents.Run(ctx, cfg.Verify.SweepInterval)
	go warmupEvents.Run(ctx, cfg.Warmup.SweepInterval)

	codes := verify.New(verifyEvents, cfg.Verify.TTL, cfg.Verify.CodeLength, logger)
	warmups := services.NewWarmupService(warmupEvents, logger)

	// HTTP transport.
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, codes, warmups, logger, cfg)

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	if err := otelShutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("otel shutdown error")
	}
	logger.Info().Msg("stopped")
}
