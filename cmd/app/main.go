// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"telegram-invoicing-crm/internal/application"
	"telegram-invoicing-crm/internal/catalog"
	"telegram-invoicing-crm/internal/config"
	"telegram-invoicing-crm/internal/domain/ports/adapter"
	tele "telegram-invoicing-crm/internal/infra/adapters/telegram"
	pg "telegram-invoicing-crm/internal/infra/db/postgres"
	"telegram-invoicing-crm/internal/infra/logging"
	"telegram-invoicing-crm/internal/infra/metrics"
	red "telegram-invoicing-crm/internal/infra/redis"
	"telegram-invoicing-crm/internal/infra/sched"
	"telegram-invoicing-crm/internal/infra/storage"
	"telegram-invoicing-crm/internal/infra/web"
	"telegram-invoicing-crm/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed auth cookies)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	if err := pg.RunMigrations(ctx, cfg.Database.URL); err != nil {
		logger.Fatal().Err(err).Msg("migrations")
	}
	pool, err := pg.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	stateRepo := red.NewStateRepo(redisClient, cfg.Redis.TTL)
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Plan catalog & proof storage ----
	plans := catalog.New(cfg.Plans)
	assets, err := storage.NewLocalStore(cfg.Assets.Dir)
	if err != nil {
		logger.Fatal().Err(err).Msg("asset store")
	}

	// ---- Repositories ----
	tenantRepo := pg.NewTenantRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Telegram transport ----
	// The chat adapter is built before the use cases that send through it;
	// the inbound facade is bound right before polling starts. An empty token
	// in dev mode runs dashboard-only with a logging double.
	var (
		chatBot adapter.ChatBotAdapter
		fetcher adapter.FileFetcher
		realBot *tele.RealBotAdapter
	)
	if cfg.Bot.Token != "" {
		realBot, err = tele.NewRealBotAdapter(&cfg.Bot, rateLimiter, assets, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
		chatBot = realBot
		fetcher = tele.NewFileFetcher(realBot, &cfg.Proof)
	} else {
		if !cfg.Runtime.Dev {
			logger.Fatal().Msg("bot.token is required outside dev mode")
		}
		logger.Warn().Msg("bot.token empty; dashboard-only mode, outbound chat is logged only")
		noop := tele.NewNoopBotAdapter(logger)
		chatBot = noop
		fetcher = tele.NewFileFetcher(noop, &cfg.Proof)
	}

	if len(cfg.Bot.AdminIDs) == 0 {
		logger.Fatal().Msg("bot.admin_ids must not be empty")
	}

	// ---- Use cases ----
	tenantUC := usecase.NewTenantUseCase(tenantRepo, txManager, logger)
	paymentUC := usecase.NewPaymentUseCase(paymentRepo, tenantUC, logger)
	notifier := usecase.NewAdminNotifier(chatBot, cfg.Bot.AdminIDs, logger)
	proofUC := usecase.NewProofUseCase(stateRepo, fetcher, assets, paymentUC, tenantUC, plans, notifier, logger)
	reviewUC := usecase.NewReviewUseCase(paymentUC, stateRepo, chatBot, plans, cfg.Bot.AdminIDs, logger)

	// ---- Facade & polling ----
	if realBot != nil {
		facade := application.NewBotFacade(proofUC, reviewUC, paymentUC, tenantUC, plans, stateRepo, chatBot, logger)
		realBot.Bind(facade)
		if strings.ToLower(cfg.Bot.Mode) != "" && strings.ToLower(cfg.Bot.Mode) != "polling" {
			logger.Warn().Str("mode", cfg.Bot.Mode).Msg("bot mode not implemented; falling back to polling")
		}
		go func() {
			if err := realBot.StartPolling(ctx); err != nil {
				logger.Error().Err(err).Msg("telegram polling stopped")
			}
		}()
	}

	// ---- Dashboard API ----
	auth := web.NewAuthManager(cfg.Web.JWTSecret, !cfg.Runtime.Dev, "", cfg.Web.SessionTTL)
	server := web.NewServer(paymentUC, reviewUC, chatBot, locker, auth, cfg.Web.APIKey, cfg.Bot.AdminIDs[0], logger)
	go func() {
		if err := server.ListenAndServe(cfg.Web.Port); err != nil {
			logger.Error().Err(err).Msg("admin API stopped")
		}
	}()

	// ---- Plan expiry sweep ----
	worker := sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, tenantUC, logger)
	go func() { _ = worker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	if realBot != nil {
		realBot.StopPolling()
	}
	cancel()
}
