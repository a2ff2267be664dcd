package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"finance_assistant_bot/internal/app"
	"finance_assistant_bot/internal/domain/balance"
	"finance_assistant_bot/internal/infra/config"
	idb "finance_assistant_bot/internal/infra/database"
	"finance_assistant_bot/internal/infra/logger"
	"finance_assistant_bot/internal/infra/scheduler"
	itg "finance_assistant_bot/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	log := logger.Get()
	log.Infof("Configuration loaded. LogLevel: %s, Environment: %s, Tick spec: %q",
		cfg.LogLevel, cfg.Environment, cfg.CronSpecTick)

	// Database
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()
	if err := idb.Migrate(db); err != nil {
		log.Fatalf("FATAL: Could not migrate database schema: %v", err)
	}
	log.Info("Database connection established and schema migrated.")

	// Repositories
	ledgerRepo := idb.NewPostgresLedgerRepository(db)
	obligationRepo := idb.NewPostgresObligationRepository(db)
	alertRepo := idb.NewPostgresAlertRepository(db)
	balances := balance.NewCache(ledgerRepo)

	// Telegram bot (outbound notifications only; the conversational layer
	// registers its own handlers on the same bot)
	bot, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			log.Errorf("telebot: %v", err)
		},
	})
	if err != nil {
		log.Fatalf("FATAL: Could not create Telegram bot: %v", err)
	}
	notifier := itg.NewNotifier(bot, cfg.AuthorizedChatID)

	// Engine and tick scheduler
	clock := app.SystemClock()
	engine := app.NewEngine(ledgerRepo, obligationRepo, alertRepo, balances,
		notifier, clock, log, cfg.StoreTimeout, cfg.StoreRetries)
	tickScheduler := scheduler.NewTickScheduler(engine, clock, log,
		cfg.CronSpecTick, cfg.MaxTickRuntime)
	if err := tickScheduler.Start(); err != nil {
		log.Fatalf("FATAL: Could not start tick scheduler: %v", err)
	}

	log.Info("Application setup complete. Bot and tick scheduler are starting...")
	go bot.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down application...")
	tickScheduler.Stop()
	log.Info("Application shut down gracefully.")
}
