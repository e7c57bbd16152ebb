package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for CarePulse
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Digest   DigestConfig   `mapstructure:"digest"`
	Channels ChannelsConfig `mapstructure:"channels"`
	Scanner  ScannerConfig  `mapstructure:"scanner"`
	Security SecurityConfig `mapstructure:"security"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Address      string `mapstructure:"address"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	SQLitePath string `mapstructure:"sqlite_path"`
	BadgerPath string `mapstructure:"badger_path"`
}

// AlertsConfig holds alert engine settings
type AlertsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalSeconds int  `mapstructure:"interval_seconds"`
	InitialDelayMS  int  `mapstructure:"initial_delay_ms"`
	CriticalStock   int  `mapstructure:"critical_stock"`
}

// DigestConfig holds the daily schedule digest settings
type DigestConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron"`
}

// ChannelsConfig holds alert delivery channel settings
type ChannelsConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Discord  DiscordConfig  `mapstructure:"discord"`
}

// TelegramConfig holds Telegram bot settings
type TelegramConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	BotToken  string  `mapstructure:"bot_token"`
	AllowList []int64 `mapstructure:"allow_list"`
}

// DiscordConfig holds Discord bot settings
type DiscordConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	BotToken string   `mapstructure:"bot_token"`
	GuildID  string   `mapstructure:"guild_id"`
	Channels []string `mapstructure:"channels"`
	AllowDM  bool     `mapstructure:"allow_dm"`
}

// ScannerConfig holds prescription scanner settings
type ScannerConfig struct {
	Provider       string  `mapstructure:"provider"`
	APIKey         string  `mapstructure:"api_key"`
	BaseURL        string  `mapstructure:"base_url"`
	Timeout        int     `mapstructure:"timeout"`
	RequestsPerMin float64 `mapstructure:"requests_per_min"`
}

// SecurityConfig holds security settings
type SecurityConfig struct {
	JWTSecret    string   `mapstructure:"jwt_secret"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Determine data directory
	if dataDir == "" {
		dataDir = getDefaultDataDir()
	}

	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.Set("storage.data_dir", dataDir)
	v.Set("storage.sqlite_path", filepath.Join(dataDir, "carepulse.db"))
	v.Set("storage.badger_path", filepath.Join(dataDir, "badger"))

	// Config file path
	if configPath == "" {
		configPath = filepath.Join(dataDir, "carepulse.yaml")
	}

	// If config file exists, load it
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Environment variables (CAREPULSE_SERVER_PORT, CAREPULSE_SCANNER_API_KEY, etc.)
	v.SetEnvPrefix("CAREPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	// Alert engine defaults: one scan per minute, first scan shortly
	// after startup, popup gate at 5 pills.
	v.SetDefault("alerts.enabled", true)
	v.SetDefault("alerts.interval_seconds", 60)
	v.SetDefault("alerts.initial_delay_ms", 2000)
	v.SetDefault("alerts.critical_stock", 5)

	// Morning digest at 8 AM IST
	v.SetDefault("digest.enabled", false)
	v.SetDefault("digest.cron", "0 8 * * *")

	// Scanner defaults
	v.SetDefault("scanner.provider", "gemini")
	v.SetDefault("scanner.timeout", 60)
	v.SetDefault("scanner.requests_per_min", 15)

	// Security defaults
	v.SetDefault("security.allow_origins", []string{"*"})
}

func getDefaultDataDir() string {
	// Try XDG_DATA_HOME first
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "carepulse")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}

	return filepath.Join(home, ".local", "share", "carepulse")
}

// loadEnvOverrides loads specific env vars that Viper doesn't handle well
func loadEnvOverrides(cfg *Config) {
	getEnv := func(key, fallback string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return fallback
	}

	// Server settings
	cfg.Server.Address = getEnv("CAREPULSE_SERVER_ADDRESS", cfg.Server.Address)
	if port := os.Getenv("CAREPULSE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	// Storage settings
	cfg.Storage.DataDir = getEnv("CAREPULSE_STORAGE_DATA_DIR", cfg.Storage.DataDir)

	// Scanner settings
	if key := ResolveEnvWithAliases("CAREPULSE_SCANNER_API_KEY"); key != "" {
		cfg.Scanner.APIKey = key
	}
	cfg.Scanner.Provider = getEnv("CAREPULSE_SCANNER_PROVIDER", cfg.Scanner.Provider)

	// Channel settings
	if token := ResolveEnvWithAliases("CAREPULSE_CHANNELS_TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.Channels.Telegram.BotToken = token
		cfg.Channels.Telegram.Enabled = true
	}
	if token := ResolveEnvWithAliases("CAREPULSE_CHANNELS_DISCORD_BOT_TOKEN"); token != "" {
		cfg.Channels.Discord.BotToken = token
		cfg.Channels.Discord.Enabled = true
	}

	// Security settings
	cfg.Security.JWTSecret = getEnv("CAREPULSE_SECURITY_JWT_SECRET", cfg.Security.JWTSecret)
}

func validate(cfg *Config) error {
	if cfg.Alerts.IntervalSeconds <= 0 {
		return fmt.Errorf("alerts.interval_seconds must be positive")
	}
	if cfg.Alerts.CriticalStock < 0 {
		return fmt.Errorf("alerts.critical_stock must not be negative")
	}

	// Generate JWT secret if not provided
	if cfg.Security.JWTSecret == "" {
		cfg.Security.JWTSecret = generateRandomString(32)
	}

	return nil
}

func generateRandomString(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[i%len(letters)]
	}
	return string(b)
}
