// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"support-ticket-client/internal/config"
	"support-ticket-client/internal/domain/ports/adapter"
	backendAdapters "support-ticket-client/internal/infra/adapters/backend"
	"support-ticket-client/internal/infra/adapters/escalation"
	"support-ticket-client/internal/infra/api"
	pg "support-ticket-client/internal/infra/db/postgres"
	"support-ticket-client/internal/infra/identity"
	"support-ticket-client/internal/infra/logging"
	"support-ticket-client/internal/infra/metrics"
	red "support-ticket-client/internal/infra/redis"
	"support-ticket-client/internal/infra/sched"
	"support-ticket-client/internal/infra/security"
	"support-ticket-client/internal/infra/worker"
	"support-ticket-client/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted ticket text)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	// ---- Identity ----
	idp := identity.NewProvider(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger)
	if cfg.Auth.Token != "" {
		if err := idp.SetCredential(ctx, cfg.Auth.Token, cfg.Auth.VerifyOnBoot); err != nil {
			logger.Warn().Err(err).Msg("initial credential rejected")
		}
	}
	expiry := sched.NewCredentialExpiryWorker(cfg.Auth.ExpiryCheck, idp, logger)
	go func() { _ = expiry.Run(ctx) }()

	// ---- Ticket backend ----
	var backend adapter.TicketBackend
	switch cfg.Backend.Mode {
	case "openai":
		backend, err = backendAdapters.NewOpenAITicketBackend(cfg.AI.OpenAIKey, cfg.AI.BaseURL, cfg.AI.DefaultModel, cfg.AI.MaxPromptTokens)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai backend")
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("ticket backend: openai-compatible responder")
	default:
		var opts []backendAdapters.Option
		if cfg.Backend.AttachCredential {
			opts = append(opts, backendAdapters.WithCredentials(idp))
		}
		backend, err = backendAdapters.NewHTTPTicketBackend(cfg.Backend.BaseURL, cfg.Backend.Timeout, opts...)
		if err != nil {
			logger.Fatal().Err(err).Msg("http backend")
		}
		logger.Info().Str("base", cfg.Backend.BaseURL).Msg("ticket backend: support agent service")
	}

	// ---- Escalation handoff ----
	var sealer *security.EncryptionService
	if cfg.Security.EncryptionKey != "" {
		if sealer, err = security.NewEncryptionService(cfg.Security.EncryptionKey); err != nil {
			logger.Fatal().Err(err).Msg("encryption")
		}
	}
	sinks, closeSinks := buildSinks(ctx, cfg, sealer, logger)
	defer closeSinks()

	pool := worker.NewPool(cfg.Escalation.Workers, logger)
	pool.Start(ctx)
	handoff := usecase.NewHandoffDispatcher(pool, sinks, 10*time.Second, logger)

	// ---- Sessions ----
	opts := []usecase.ControllerOption{
		usecase.WithHandoff(handoff),
		usecase.WithEscalationDelay(cfg.Chat.EscalationDelay),
		usecase.WithDevMode(cfg.Runtime.Dev),
	}
	var gate adapter.IdentityProvider
	if cfg.Auth.Required {
		gate = idp
		opts = append(opts, usecase.WithIdentity(idp))
	}
	sessions := usecase.NewSessionManager(usecase.NewControllerFactory(backend, logger, opts...), gate, logger)

	// ---- HTTP ----
	srv := api.NewServer(sessions, logger, true)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("session api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown requested")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = server.Shutdown(shutdownCtx)
	sessions.Close()
	pool.Stop()
	cancel()
}

// buildSinks connects the configured escalation sinks. The returned func
// releases their connections.
func buildSinks(ctx context.Context, cfg *config.Config, sealer *security.EncryptionService, logger *zerolog.Logger) ([]adapter.EscalationSink, func()) {
	var (
		sinks   []adapter.EscalationSink
		closers []func()
	)
	if cfg.HasSink("log") {
		sinks = append(sinks, escalation.NewLogSink(logger, cfg.Runtime.Dev))
	}
	if cfg.HasSink("redis") {
		cli, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		closers = append(closers, func() { _ = cli.Close() })
		sinks = append(sinks, red.NewEscalationQueue(cli, cfg.Escalation.QueueKey, cfg.Redis.TTL, sealer))
	}
	if cfg.HasSink("postgres") {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		closers = append(closers, pool.Close)
		repo := pg.NewEscalationRepo(pool, sealer)
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("postgres schema")
		}
		sinks = append(sinks, repo)
	}
	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}
}
