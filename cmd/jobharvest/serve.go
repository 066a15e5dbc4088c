package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/jobharvest/jobharvest/internal/dispatch"
	"github.com/jobharvest/jobharvest/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the harvest daemon",
	Long:  "Run the cron-driven harvest loop and the Telegram callback listener; blocks until SIGINT/SIGTERM.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if len(cfg.Searches) == 0 {
		logger.Error("no saved searches configured")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobStore, err := setupStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer jobStore.Close(context.Background())

	sink, err := dispatch.NewTelegram(cfg.Telegram.Token, logger)
	if err != nil {
		logger.Error("failed to set up telegram", "error", err)
		os.Exit(1)
	}

	lookupCache := setupCache(ctx, cfg, logger)
	coord := setupCoordinator(cfg, lookupCache, logger)
	dispatcher := dispatch.New(sink, jobStore, cfg.Telegram.ChatIDs, logger)

	sched := scheduler.New(coord, jobStore, dispatcher, cfg.Searches, cfg.BoardAT.Position, logger)
	stopCron, err := sched.Start(ctx, cfg.CronSpec)
	if err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer stopCron()

	logger.Info("daemon started",
		"cron", cfg.CronSpec,
		"searches", len(cfg.Searches),
		"chats", len(cfg.Telegram.ChatIDs),
	)

	mux := dispatch.NewMux(sink, jobStore, logger)
	runCallbackLoop(ctx, sink, mux)

	logger.Info("goodbye")
	return nil
}

// runCallbackLoop consumes bot updates and routes inline-button presses
// until the context is cancelled.
func runCallbackLoop(ctx context.Context, sink *dispatch.Telegram, mux *dispatch.Mux) {
	bot := sink.Bot()
	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := bot.GetUpdatesChan(updateCfg)

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			cb := update.CallbackQuery
			if cb == nil || cb.Message == nil {
				continue
			}
			// Ack immediately so the client spinner clears.
			_, _ = bot.Request(tgbotapi.NewCallback(cb.ID, ""))
			mux.Handle(ctx, dispatch.Callback{
				ChatID:    cb.Message.Chat.ID,
				MessageID: cb.Message.MessageID,
				Data:      cb.Data,
			})
		}
	}
}
