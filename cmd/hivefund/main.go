package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hive_fund/internal/app"
	"hive_fund/internal/domain/circle"
	"hive_fund/internal/domain/credit"
	"hive_fund/internal/domain/exit"
	"hive_fund/internal/domain/ledger"
	"hive_fund/internal/domain/loan"
	"hive_fund/internal/domain/notification"
	"hive_fund/internal/domain/transaction"
	"hive_fund/internal/infra/config"
	idb "hive_fund/internal/infra/database"
	"hive_fund/internal/infra/logger"
	"hive_fund/internal/infra/memory"
	"hive_fund/internal/infra/scheduler"
	"hive_fund/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

type stores struct {
	circles      circle.Repository
	exits        exit.Repository
	loans        loan.Repository
	transactions transaction.Repository
	ledger       ledger.Ledger
	credit       credit.Store
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}
	logCloser := logger.Init(cfg)
	defer logCloser.Close()

	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"log_level":   cfg.LogLevel,
		"timezone":    cfg.Location.String(),
	}).Info("Hive Fund starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var st stores
	if cfg.UsesMemoryStore() {
		mainLogger.Warn("DATABASE_URL is empty, using the in-memory store. Data is lost on exit.")
		mem := memory.NewStore()
		st = stores{
			circles:      mem.Circles(),
			exits:        mem.Exits(),
			loans:        mem.Loans(),
			transactions: mem.Transactions(),
			ledger:       mem.Ledger(),
			credit:       mem.Credit(),
		}
	} else {
		db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not connect to database")
		}
		defer db.Close()
		mainLogger.Info("Database connection established successfully.")

		if cfg.MigrateOnStart {
			if err := idb.Migrate(ctx, db); err != nil {
				mainLogger.WithError(err).Fatal("Could not apply migrations")
			}
			mainLogger.Info("Database migrations applied.")
		}
		st = postgresStores(db)
	}

	var notifier notification.Notifier = logger.NewNotifier(logger.Component("notifier"))
	var bot *telebot.Bot
	if cfg.TelegramToken != "" {
		bot, err = telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) {
				entry := logger.Component("telebot").WithError(err)
				if c != nil && c.Sender() != nil && c.Chat() != nil {
					entry = entry.WithFields(logrus.Fields{
						"message":   c.Text(),
						"sender_id": c.Sender().ID,
						"chat_id":   c.Chat().ID,
					})
				}
				entry.Error("Telegram handler error")
			},
		})
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}
		notifier = telegram.NewNotifier(telegram.NewBotClient(bot), cfg.OperatorTelegramID, logger.Component("telegram_notifier"))
	}

	clock := app.WithClock(func() time.Time { return time.Now().In(cfg.Location) })
	rewards := app.Rewards{
		OnTimePayment:   cfg.OnTimePaymentPoints,
		CycleCompletion: cfg.CycleCompletionPoints,
	}

	hive := app.New(app.Deps{
		Circles:      st.circles,
		Exits:        st.exits,
		Loans:        st.loans,
		Transactions: st.transactions,
		Ledger:       st.ledger,
		Credit:       st.credit,
		Notifier:     notifier,
		Rewards:      rewards,
		OperatorID:   cfg.OperatorTelegramID,
	}, logrus.NewEntry(logger.Log), clock)
	mainLogger.Info("Services initialized.")

	sweeps := scheduler.NewSweepScheduler(
		hive.Contributions,
		hive.Loans,
		logger.Component("scheduler"),
		cfg.Location,
		cfg.CronSpecDailyCharges,
		cfg.CronSpecOverdueLoans,
	)
	if err := sweeps.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start scheduler")
	}

	if bot != nil {
		telegram.RegisterOperatorHandlers(ctx, bot, hive.Operator, logger.Component("operator_handlers"))
		go bot.Start()
		mainLogger.Info("Telegram operator bot started.")
	}

	mainLogger.Info("Application setup complete.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLogger.Info("Shutting down application...")
	cancel()
	if bot != nil {
		bot.Stop()
	}
	sweeps.Stop()
	mainLogger.Info("Application shut down gracefully.")
}

func postgresStores(db *sql.DB) stores {
	return stores{
		circles:      idb.NewPostgresCircleRepository(db),
		exits:        idb.NewPostgresExitRepository(db),
		loans:        idb.NewPostgresLoanRepository(db),
		transactions: idb.NewPostgresTransactionRepository(db),
		ledger:       idb.NewPostgresLedger(db),
		credit:       idb.NewPostgresCreditStore(db),
	}
}
