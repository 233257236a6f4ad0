package main

import (
	"context"
	"time"

	"github.com/zezere/email-bot/internal/compose"
	"github.com/zezere/email-bot/internal/config"
	"github.com/zezere/email-bot/internal/database"
	"github.com/zezere/email-bot/internal/mail"
	"github.com/zezere/email-bot/internal/moderation"
	"github.com/zezere/email-bot/internal/openai"
	"github.com/zezere/email-bot/internal/orchestrator"
)

// main executes exactly one processing pass and exits. The external scheduler
// (cron or similar) provides the cadence; overlapping triggers are resolved
// by the durable run lock, so invoking this again at any time is safe.
func main() {
	cfg := config.Load()
	logger := cfg.SetupLogger()

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	store, err := database.NewStore(db, cfg.ContextWindow)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize store")
	}

	llm, err := openai.NewClient(cfg.OpenAIKey, cfg.OpenAIModel, time.Duration(cfg.OpenAITimeout)*time.Second)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize OpenAI client")
	}
	gate, err := moderation.NewGate(llm, cfg.ModerationAllowBelow, cfg.ModerationBlockAt)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid moderation policy")
	}
	composer, err := compose.NewComposer(llm)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize composer")
	}

	mailbox := mail.NewIMAPMailbox(cfg.IMAPServer, cfg.BotAddress, cfg.MailPassword)
	mailbox.Folder = cfg.Folder
	mailbox.Logger = logger

	var sender mail.Sender
	if cfg.SendGridAPIKey != "" {
		sender = mail.NewSendGridSender(cfg.SendGridAPIKey, cfg.BotAddress, cfg.BotName)
	} else {
		sender = mail.NewSMTPSender(cfg.SMTPServer, cfg.BotAddress, cfg.MailPassword, cfg.BotAddress, cfg.BotName)
	}

	runner, err := orchestrator.New(store, mailbox, sender, gate, composer, logger, orchestrator.Options{
		LockLease:       cfg.LockLease,
		CheckinInterval: cfg.CheckinInterval,
		MaxReminders:    cfg.MaxReminders,
		Controls: orchestrator.NewControlTable(
			cfg.UnsubscribePhrases, cfg.PausePhrases, cfg.ResumePhrases),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize orchestrator")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RunTimeout)
	defer cancel()

	report, err := runner.Run(ctx)
	event := logger.Info()
	if err != nil {
		event = logger.Error().Err(err)
	}
	event.
		Bool("lock_held", report.LockHeld).
		Bool("halted", report.Halted).
		Int("fetched", report.Fetched).
		Int("processed", report.Processed).
		Int("duplicates", report.Duplicates).
		Int("replies", report.Replies).
		Int("blocked", report.Blocked).
		Int("review", report.Review).
		Int("suppressed", report.Suppressed).
		Int("controls", report.Controls).
		Int("malformed", report.Malformed).
		Int("deferred", report.Deferred).
		Int("degraded", report.Degraded).
		Int("reminders", report.Reminders).
		Msg("run finished")
	if err != nil {
		// Non-zero exit so the scheduler surfaces the failure.
		logger.Fatal().Msg("run aborted")
	}
}
