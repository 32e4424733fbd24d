package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"salonbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	HTTP       HTTPConfig       `yaml:"http"`
	Google     GoogleConfig     `yaml:"google"`
	Booking    BookingConfig    `yaml:"booking"`
	Notify     NotifyConfig     `yaml:"notify"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Worker     WorkerConfig     `yaml:"worker"`
	Digest     DigestConfig     `yaml:"digest"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type HTTPConfig struct {
	Port        int                 `yaml:"port"`
	CORSOrigins []string            `yaml:"cors_origins"`
	Auth        HTTPAuthConfig      `yaml:"auth"`
	RateLimit   HTTPRateLimitConfig `yaml:"rate_limit"`
}

// HTTPAuthConfig protects the admin endpoints. Booking stays public.
type HTTPAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type HTTPRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	CalendarID      string `yaml:"calendar_id"`
	Timezone        string `yaml:"timezone"`
}

// Location resolves Timezone, falling back to UTC.
func (g GoogleConfig) Location() *time.Location {
	if g.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type BookingConfig struct {
	SlotMinutes  int    `yaml:"slot_minutes"`
	PhoneDefault string `yaml:"phone_default"`
	LockTTL      int    `yaml:"lock_ttl"`  // seconds
	LockWait     int    `yaml:"lock_wait"` // seconds
}

func (b BookingConfig) SlotDuration() time.Duration {
	return time.Duration(b.SlotMinutes) * time.Minute
}

type NotifyConfig struct {
	OwnerEmail string         `yaml:"owner_email"`
	Email      EmailConfig    `yaml:"email"`
	Telegram   TelegramConfig `yaml:"telegram"`
	Twilio     TwilioConfig   `yaml:"twilio"`
}

type EmailConfig struct {
	Provider string         `yaml:"provider"` // sendgrid, smtp or empty
	SendGrid SendGridConfig `yaml:"sendgrid"`
	SMTP     SMTPConfig     `yaml:"smtp"`
}

type SendGridConfig struct {
	APIKey    string `yaml:"api_key"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
	ToNumber   string `yaml:"to_number"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type WorkerConfig struct {
	MaxRetries   int `yaml:"max_retries"`
	InitialDelay int `yaml:"initial_delay"` // seconds
	MaxDelay     int `yaml:"max_delay"`     // seconds
	PollInterval int `yaml:"poll_interval"` // seconds
}

type DigestConfig struct {
	Schedule string `yaml:"schedule"` // cron spec, empty disables
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; real environment wins.
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Google.CredentialsFile == "" {
		return errors.New("google credentials file is required")
	}
	if c.Google.CalendarID == "" {
		return errors.New("google calendar id is required")
	}
	if _, err := time.LoadLocation(c.Google.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Google.Timezone, err)
	}
	if c.Booking.SlotMinutes <= 0 {
		return errors.New("booking slot_minutes must be positive")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.HTTP.Port)
	}
	if c.HTTP.Auth.Enabled && len(c.HTTP.Auth.APIKeys) == 0 {
		return errors.New("http auth enabled but no api_keys configured")
	}

	return c.Notify.Validate()
}

func (n NotifyConfig) Validate() error {
	switch strings.ToLower(strings.TrimSpace(n.Email.Provider)) {
	case "":
	case "sendgrid":
		if n.Email.SendGrid.APIKey == "" || n.Email.SendGrid.FromEmail == "" {
			return errors.New("sendgrid requires api_key and from_email")
		}
		if n.OwnerEmail == "" {
			return errors.New("notify.owner_email is required for email notifications")
		}
	case "smtp":
		if n.Email.SMTP.Host == "" || n.Email.SMTP.User == "" {
			return errors.New("smtp requires host and user")
		}
	default:
		return fmt.Errorf("unknown email provider %q", n.Email.Provider)
	}

	if n.Telegram.BotToken != "" && n.Telegram.ChatID == 0 {
		return errors.New("telegram bot_token set without chat_id")
	}
	if n.Twilio.AccountSID != "" && (n.Twilio.FromNumber == "" || n.Twilio.ToNumber == "") {
		return errors.New("twilio requires from_number and to_number")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "salonbook"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 3000
	}
	if c.HTTP.Auth.HeaderAPIKey == "" {
		c.HTTP.Auth.HeaderAPIKey = "x-api-key"
	}
	if len(c.HTTP.CORSOrigins) == 0 {
		c.HTTP.CORSOrigins = []string{"*"}
	}
	if c.Google.CalendarID == "" {
		c.Google.CalendarID = "primary"
	}
	if c.Google.Timezone == "" {
		c.Google.Timezone = models.DefaultTimezone
	}
	if c.Booking.SlotMinutes == 0 {
		c.Booking.SlotMinutes = models.DefaultSlotMinutes
	}
	if c.Booking.PhoneDefault == "" {
		c.Booking.PhoneDefault = models.DefaultPhone
	}
	if c.Booking.LockTTL == 0 {
		c.Booking.LockTTL = models.DefaultLockTTL
	}
	if c.Booking.LockWait == 0 {
		c.Booking.LockWait = models.DefaultLockWait
	}
	if c.Notify.Email.SMTP.Host != "" && c.Notify.Email.SMTP.Port == 0 {
		c.Notify.Email.SMTP.Port = 587
	}
	if c.Notify.OwnerEmail == "" {
		c.Notify.OwnerEmail = c.Notify.Email.SMTP.User
	}
	if c.Notify.Email.SendGrid.FromName == "" {
		c.Notify.Email.SendGrid.FromName = c.App.Name
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/outbox.db"
	}
	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 5
	}
	if c.Worker.InitialDelay == 0 {
		c.Worker.InitialDelay = 2
	}
	if c.Worker.MaxDelay == 0 {
		c.Worker.MaxDelay = 60
	}
	if c.Worker.PollInterval == 0 {
		c.Worker.PollInterval = 2
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
}
