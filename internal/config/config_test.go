package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear everything Load reads so defaults apply.
	keys := []string{
		"DATABASE_URL", "VERSION", "LOG_LEVEL",
		"IMAP_SERVER", "SMTP_SERVER", "EMAIL", "EMAIL_NAME", "EMAIL_PASSWORD", "IMAP_FOLDER",
		"OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_TIMEOUT", "SENDGRID_API_KEY",
		"MODERATION_ALLOW_BELOW", "MODERATION_BLOCK_AT",
		"CONTEXT_WINDOW", "RUN_TIMEOUT", "LOCK_LEASE", "CHECKIN_INTERVAL", "MAX_REMINDERS",
		"CONTROL_UNSUBSCRIBE", "CONTROL_PAUSE", "CONTROL_RESUME",
	}
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Load()

	assert.Equal(t, "data/apai.db", cfg.DatabaseURL)
	assert.Equal(t, "1.0.0", cfg.Version)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "Accountability Partner", cfg.BotName)
	assert.Equal(t, "INBOX", cfg.Folder)
	assert.Equal(t, 30, cfg.OpenAITimeout)
	assert.InDelta(t, 0.2, cfg.ModerationAllowBelow, 1e-9)
	assert.InDelta(t, 0.7, cfg.ModerationBlockAt, 1e-9)
	assert.Equal(t, 12, cfg.ContextWindow)
	assert.Equal(t, 4*time.Minute, cfg.RunTimeout)
	assert.Equal(t, 5*time.Minute, cfg.LockLease)
	assert.Equal(t, 24*time.Hour, cfg.CheckinInterval)
	assert.Equal(t, 2, cfg.MaxReminders)
	assert.Equal(t, []string{"unsubscribe", "stop"}, cfg.UnsubscribePhrases)
	assert.Equal(t, []string{"pause"}, cfg.PausePhrases)
	assert.Equal(t, []string{"resume", "start again"}, cfg.ResumePhrases)
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://bot:secret@db/apai")
	t.Setenv("IMAP_SERVER", "imap.example.com:993")
	t.Setenv("SMTP_SERVER", "smtp.example.com:587")
	t.Setenv("EMAIL", "partner@example.com")
	t.Setenv("EMAIL_PASSWORD", "hunter2")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SENDGRID_API_KEY", "SG.test")
	t.Setenv("MODERATION_BLOCK_AT", "0.9")
	t.Setenv("CONTEXT_WINDOW", "20")
	t.Setenv("RUN_TIMEOUT", "90s")
	t.Setenv("CONTROL_UNSUBSCRIBE", "unsubscribe, opt out ,")

	cfg := Load()

	assert.Equal(t, "postgres://bot:secret@db/apai", cfg.DatabaseURL)
	assert.Equal(t, "imap.example.com:993", cfg.IMAPServer)
	assert.Equal(t, "partner@example.com", cfg.BotAddress)
	assert.Equal(t, "SG.test", cfg.SendGridAPIKey)
	assert.InDelta(t, 0.9, cfg.ModerationBlockAt, 1e-9)
	assert.Equal(t, 20, cfg.ContextWindow)
	assert.Equal(t, 90*time.Second, cfg.RunTimeout)
	assert.Equal(t, []string{"unsubscribe", "opt out"}, cfg.UnsubscribePhrases)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("CONTEXT_WINDOW", "plenty")
	t.Setenv("MODERATION_BLOCK_AT", "very strict")
	t.Setenv("RUN_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 12, cfg.ContextWindow)
	assert.InDelta(t, 0.7, cfg.ModerationBlockAt, 1e-9)
	assert.Equal(t, 4*time.Minute, cfg.RunTimeout)
}

func TestSetupLogger_Level(t *testing.T) {
	cfg := &Config{LogLevel: "debug", Version: "test"}
	logger := cfg.SetupLogger()
	assert.Equal(t, "debug", logger.GetLevel().String())

	cfg.LogLevel = "not a level"
	logger = cfg.SetupLogger()
	assert.Equal(t, "info", logger.GetLevel().String())
}
