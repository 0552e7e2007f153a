package commands

import (
	"os/signal"
	"syscall"

	"regulatory_notifier/internal/infra/logger"
	"regulatory_notifier/internal/infra/scheduler"
	"regulatory_notifier/internal/infra/telegram"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled jobs until interrupted",
	Long: `Serve runs every job that has a schedule on its cron spec, in the server's
local time, until SIGINT or SIGTERM. Use it instead of an external cron.

When TELEGRAM_TOKEN is set the operator chat can also list jobs with /jobs
and start one with /run <job>.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, jobs, err := loadConfig()
	if err != nil {
		return err
	}

	launcher, journal, err := newLauncher(cfg)
	if err != nil {
		return err
	}
	defer journal.Close()

	log := logger.Log.WithField("component", "scheduler")
	s := scheduler.NewNotificationScheduler(launcher, jobs, cfg.RunTimeout, log)
	if err := s.Start(); err != nil {
		return err
	}

	if cfg.TelegramToken != "" {
		botLog := logger.Log.WithField("component", "operator_bot")
		bot, err := telegram.NewOperatorBot(cfg.TelegramToken, botLog)
		if err != nil {
			s.Stop()
			return err
		}
		telegram.NewOperatorCommands(launcher, jobs, cfg.AlertTelegramChatID, cfg.RunTimeout, botLog).Register(bot)
		// Start bot in a goroutine so it doesn't block graceful shutdown handling
		go bot.Start()
		defer bot.Stop()
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done() // Block until a signal is received

	log.Info("Shutting down...")
	s.Stop()
	return nil
}
