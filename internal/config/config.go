package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the application configuration. Every component receives the
// section it needs at construction; nothing reads the environment after Load.
type Config struct {
	DatabasePath string `json:"database_path"`
	APIPort      string `json:"api_port"`
	LogLevel     string `json:"log_level"`
	JWTSecret    string `json:"jwt_secret"`
	AdminSecret  string `json:"admin_secret"`
	CORSOrigins  string `json:"cors_origins"` // comma separated, * for all
	FrontendURL  string `json:"frontend_url"` // base URL for invitation links

	AI   AIConfig   `json:"ai"`
	SMTP SMTPConfig `json:"smtp"`
	IMAP IMAPConfig `json:"imap"`

	// PollIntervalSeconds is the reply poller period.
	PollIntervalSeconds int `json:"poll_interval_seconds"`
}

// AIConfig configures the draft provider chain.
type AIConfig struct {
	Provider string `json:"provider"` // gemini, openai, custom
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url"`
	// Models is the ordered fallback list, most capable first.
	Models []string `json:"models"`
}

// SMTPConfig configures the outbound transport.
type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
	UseSSL   bool   `json:"use_ssl"`
}

// IMAPConfig configures the inbound reply mailbox.
type IMAPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Folder   string `json:"folder"`
	UseSSL   bool   `json:"use_ssl"`
}

// Default configuration values
const (
	DefaultDatabasePath = "data/pitcher.db"
	DefaultAPIPort      = "8080"
	DefaultLogLevel     = "INFO"
	DefaultJWTSecret    = "placement-pitcher-default-secret-change-in-production"
	DefaultCORSOrigins  = "*"
	DefaultFrontendURL  = "http://localhost:5173"
	DefaultIMAPFolder   = "INBOX"
	DefaultPollSeconds  = 60
)

// DefaultAIModels is the ordered fallback chain used when none is configured.
var DefaultAIModels = []string{
	"gemini-2.0-flash-exp",
	"gemini-2.5-flash",
	"gemini-2.0-flash",
	"gemini-flash-latest",
	"gemini-pro",
}

// Load loads configuration from a .env file, config file and environment.
// Priority: Environment variables > Config file > Default values
func Load() (*Config, error) {
	// .env is optional; real environment variables still win below.
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath:        DefaultDatabasePath,
		APIPort:             DefaultAPIPort,
		LogLevel:            DefaultLogLevel,
		JWTSecret:           DefaultJWTSecret,
		CORSOrigins:         DefaultCORSOrigins,
		FrontendURL:         DefaultFrontendURL,
		AI:                  AIConfig{Provider: "gemini", Models: DefaultAIModels},
		SMTP:                SMTPConfig{Port: 587},
		IMAP:                IMAPConfig{Port: 993, Folder: DefaultIMAPFolder, UseSSL: true},
		PollIntervalSeconds: DefaultPollSeconds,
	}

	// Config file is optional.
	_ = cfg.loadFromFile()

	cfg.loadFromEnv()

	return cfg, nil
}

// loadFromFile loads configuration from config.json
func (c *Config) loadFromFile() error {
	data, err := os.ReadFile("config.json")
	if err != nil {
		return err
	}
	return json.Unmarshal(data, c)
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	setString(&c.DatabasePath, "PITCHER_DATABASE_PATH")
	setString(&c.APIPort, "PITCHER_API_PORT")
	setString(&c.LogLevel, "PITCHER_LOG_LEVEL")
	setString(&c.JWTSecret, "PITCHER_JWT_SECRET")
	setString(&c.AdminSecret, "PITCHER_ADMIN_SECRET")
	setString(&c.CORSOrigins, "PITCHER_CORS_ORIGINS")
	setString(&c.FrontendURL, "PITCHER_FRONTEND_URL")

	setString(&c.AI.Provider, "PITCHER_AI_PROVIDER")
	setString(&c.AI.APIKey, "GEMINI_API_KEY")
	setString(&c.AI.APIKey, "PITCHER_AI_API_KEY")
	setString(&c.AI.BaseURL, "PITCHER_AI_BASE_URL")
	if val := os.Getenv("PITCHER_AI_MODELS"); val != "" {
		c.AI.Models = splitList(val)
	}

	setString(&c.SMTP.Host, "PITCHER_SMTP_HOST")
	setInt(&c.SMTP.Port, "PITCHER_SMTP_PORT")
	setString(&c.SMTP.Username, "PITCHER_SMTP_USERNAME")
	setString(&c.SMTP.Password, "PITCHER_SMTP_PASSWORD")
	setString(&c.SMTP.From, "PITCHER_SMTP_FROM")
	setBool(&c.SMTP.UseSSL, "PITCHER_SMTP_SSL")

	setString(&c.IMAP.Host, "PITCHER_IMAP_HOST")
	setInt(&c.IMAP.Port, "PITCHER_IMAP_PORT")
	setString(&c.IMAP.Username, "PITCHER_IMAP_USERNAME")
	setString(&c.IMAP.Password, "PITCHER_IMAP_PASSWORD")
	setString(&c.IMAP.Folder, "PITCHER_IMAP_FOLDER")
	setBool(&c.IMAP.UseSSL, "PITCHER_IMAP_SSL")

	setInt(&c.PollIntervalSeconds, "PITCHER_POLL_INTERVAL")
}

// CORSOriginList returns the configured CORS origins as a slice.
func (c *Config) CORSOriginList() []string {
	return splitList(c.CORSOrigins)
}

// Save saves the current configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
