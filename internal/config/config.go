package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/oatsaysai/debt-reminder/internal/models"
)

// Delivery providers
const (
	ProviderTelegram = "telegram"
	ProviderDiscord  = "discord"
)

// Config holds all configuration for the application
type Config struct {
	PostgreSQL PostgreSQLConfig
	Server     ServerConfig
	Delivery   DeliveryConfig
	Telegram   TelegramConfig
	DiscordBot DiscordBotConfig
	LLM        LLMConfig
	Scheduler  SchedulerConfig
	Reminder   ReminderConfig
}

// PostgreSQLConfig holds database configuration
type PostgreSQLConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	Schema       string
	SSLMode      string
	PoolMaxConns int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port string
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DeliveryConfig selects the messaging platform reminders go out on
type DeliveryConfig struct {
	Provider string
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken string
}

// DiscordBotConfig holds Discord bot configuration
type DiscordBotConfig struct {
	Token string
}

// LLMConfig holds the generative text service configuration
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// SchedulerConfig holds the daily trigger configuration
type SchedulerConfig struct {
	TimeOfDay    string // HH:MM
	Timezone     string // IANA name
	RunOnStartup bool
}

// ReminderConfig holds the reminder ladder and dedup policy
type ReminderConfig struct {
	Kinds       []models.ReminderKind
	RetryPolicy string
}

// SetDefaults registers the default value of every option on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("PostgreSQL.Host", "localhost")
	v.SetDefault("PostgreSQL.Port", 5432)
	v.SetDefault("PostgreSQL.User", "postgres")
	v.SetDefault("PostgreSQL.DBName", "debt-reminder")
	v.SetDefault("PostgreSQL.Schema", "public")
	v.SetDefault("PostgreSQL.SSLMode", "disable")
	v.SetDefault("PostgreSQL.PoolMaxConns", 10)

	v.SetDefault("Server.Host", "0.0.0.0")
	v.SetDefault("Server.Port", "3000")

	v.SetDefault("Delivery.Provider", ProviderTelegram)
	v.SetDefault("Telegram.BotToken", "")
	v.SetDefault("DiscordBot.Token", "")

	v.SetDefault("LLM.APIKey", "")
	v.SetDefault("LLM.BaseURL", "https://openrouter.ai/api/v1")
	v.SetDefault("LLM.Model", "openai/gpt-4-turbo-preview")
	v.SetDefault("LLM.Temperature", 0.7)
	v.SetDefault("LLM.MaxTokens", 500)
	v.SetDefault("LLM.Timeout", 30*time.Second)

	v.SetDefault("Scheduler.TimeOfDay", "08:00")
	v.SetDefault("Scheduler.Timezone", "Asia/Jakarta")
	v.SetDefault("Scheduler.RunOnStartup", false)

	v.SetDefault("Reminder.Kinds", []map[string]any{
		{"Label": "7_days", "DaysBefore": 7},
		{"Label": "3_days", "DaysBefore": 3},
		{"Label": "1_day", "DaysBefore": 1},
	})
	v.SetDefault("Reminder.RetryPolicy", "never")
}

// Load loads configuration from file and environment variables.
// A missing file falls back to defaults and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		switch err := v.ReadInConfig(); {
		case err == nil:
			log.Printf("Using config file: %s", v.ConfigFileUsed())
		case errors.Is(err, fs.ErrNotExist):
			log.Printf("Config file %s not found, using defaults and environment", configPath)
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Println("Configuration loaded successfully")
	return &cfg, nil
}

// Validate checks required fields and option ranges
func (c *Config) Validate() error {
	if c.PostgreSQL.Host == "" || c.PostgreSQL.DBName == "" {
		return fmt.Errorf("database configuration is incomplete")
	}

	switch c.Delivery.Provider {
	case ProviderTelegram:
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram bot token is required")
		}
	case ProviderDiscord:
		if c.DiscordBot.Token == "" {
			return fmt.Errorf("discord bot token is required")
		}
	default:
		return fmt.Errorf("unknown delivery provider %q", c.Delivery.Provider)
	}

	if len(c.Reminder.Kinds) == 0 {
		return fmt.Errorf("at least one reminder kind is required")
	}
	seen := make(map[string]bool, len(c.Reminder.Kinds))
	for _, k := range c.Reminder.Kinds {
		if k.Label == "" {
			return fmt.Errorf("reminder kind label is required")
		}
		if k.DaysBefore < 0 {
			return fmt.Errorf("reminder kind %s: days before must not be negative", k.Label)
		}
		if seen[k.Label] {
			return fmt.Errorf("duplicate reminder kind %s", k.Label)
		}
		seen[k.Label] = true
	}

	// the zone name is also handed to PostgreSQL, which only knows IANA names
	switch c.Scheduler.Timezone {
	case "", "Local":
		return fmt.Errorf("scheduler timezone must be an IANA zone name, got %q", c.Scheduler.Timezone)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("invalid scheduler timezone %q: %w", c.Scheduler.Timezone, err)
	}
	if _, err := time.Parse("15:04", c.Scheduler.TimeOfDay); err != nil {
		return fmt.Errorf("invalid scheduler time of day %q: %w", c.Scheduler.TimeOfDay, err)
	}

	switch c.Reminder.RetryPolicy {
	case "never", "failed":
	default:
		return fmt.Errorf("unknown reminder retry policy %q", c.Reminder.RetryPolicy)
	}

	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm max tokens must be positive")
	}
	if c.LLM.APIKey == "" {
		log.Println("Warning: LLM API key not set, reminders will use the template message")
	}
	return nil
}
