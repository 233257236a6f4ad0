package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all configuration for one invocation.
type Config struct {
	DatabaseURL string // sqlite path (default) or postgres:// URL
	Version     string
	LogLevel    string

	// Mailbox account
	IMAPServer   string // host:port
	SMTPServer   string // host:port
	BotAddress   string
	BotName      string
	MailPassword string
	Folder       string

	// Collaborators
	OpenAIKey      string
	OpenAIModel    string
	OpenAITimeout  int // seconds
	SendGridAPIKey string // if set, outbound mail goes through SendGrid instead of SMTP

	// Moderation policy thresholds on the classifier score
	ModerationAllowBelow float64
	ModerationBlockAt    float64

	// Orchestration
	ContextWindow   int           // messages handed to reply generation
	RunTimeout      time.Duration // deadline for one whole invocation
	LockLease       time.Duration
	CheckinInterval time.Duration
	MaxReminders    int

	// Control phrases (comma-separated lists)
	UnsubscribePhrases []string
	PausePhrases       []string
	ResumePhrases      []string
}

// Load initializes and returns application configuration.
func Load() *Config {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", "data/apai.db"),
		Version:     getEnv("VERSION", "1.0.0"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		IMAPServer:   os.Getenv("IMAP_SERVER"),
		SMTPServer:   os.Getenv("SMTP_SERVER"),
		BotAddress:   os.Getenv("EMAIL"),
		BotName:      getEnv("EMAIL_NAME", "Accountability Partner"),
		MailPassword: os.Getenv("EMAIL_PASSWORD"),
		Folder:       getEnv("IMAP_FOLDER", "INBOX"),

		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    os.Getenv("OPENAI_MODEL"),
		OpenAITimeout:  getEnvInt("OPENAI_TIMEOUT", 30),
		SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),

		ModerationAllowBelow: getEnvFloat("MODERATION_ALLOW_BELOW", 0.2),
		ModerationBlockAt:    getEnvFloat("MODERATION_BLOCK_AT", 0.7),

		ContextWindow:   getEnvInt("CONTEXT_WINDOW", 12),
		RunTimeout:      getEnvDuration("RUN_TIMEOUT", 4*time.Minute),
		LockLease:       getEnvDuration("LOCK_LEASE", 5*time.Minute),
		CheckinInterval: getEnvDuration("CHECKIN_INTERVAL", 24*time.Hour),
		MaxReminders:    getEnvInt("MAX_REMINDERS", 2),

		UnsubscribePhrases: getEnvList("CONTROL_UNSUBSCRIBE", "unsubscribe,stop"),
		PausePhrases:       getEnvList("CONTROL_PAUSE", "pause"),
		ResumePhrases:      getEnvList("CONTROL_RESUME", "resume,start again"),
	}
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as integer with a default fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets an environment variable as float with a default fallback
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as duration with a default fallback
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated environment variable, trimming blanks
func getEnvList(key, defaultValue string) []string {
	value := getEnv(key, defaultValue)
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// SetupLogger configures zerolog with JSON output and single-line format
func (c *Config) SetupLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "email-bot").
		Str("version", c.Version).
		Logger()

	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}
