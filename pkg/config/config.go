package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// maxCategoryBytes keeps "add_<category>" within Telegram's 64 byte callback data.
const maxCategoryBytes = 60

// DefaultCategories is the category set offered when none is configured.
var DefaultCategories = []string{"Travel", "Food", "Clothes", "Entertainment", "Health"}

type Config struct {
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Expenses   ExpensesConfig   `mapstructure:"expenses"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Chart      ChartConfig      `mapstructure:"chart"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Log        LogConfig        `mapstructure:"log"`
}

type TelegramConfig struct {
	Token   string `mapstructure:"token" validate:"required"`
	Timeout int    `mapstructure:"timeout" validate:"gte=0"`
	Debug   bool   `mapstructure:"debug"`

	// SendRate caps outgoing API calls per second; 0 disables throttling.
	SendRate  float64 `mapstructure:"send_rate" validate:"gte=0"`
	SendBurst int     `mapstructure:"send_burst" validate:"gte=0"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host" validate:"required_unless=UseInMemory true"`
	Port         int    `mapstructure:"port" validate:"required_unless=UseInMemory true,gte=0,lte=65535"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname" validate:"required_unless=UseInMemory true"`
	SSLMode      string `mapstructure:"sslmode"`
	UseInMemory  bool   `mapstructure:"use_in_memory"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=0"`
}

type ExpensesConfig struct {
	Categories      []string      `mapstructure:"categories" validate:"min=1,unique,dive,required,max=60"`
	SessionTTL      time.Duration `mapstructure:"session_ttl" validate:"gt=0"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"gt=0"`
	Timezone        string        `mapstructure:"timezone" validate:"required"`
	TempDir         string        `mapstructure:"temp_dir"`
}

type ClassifierConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	MinConfidence float64 `mapstructure:"min_confidence" validate:"gte=0,lte=1"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url" validate:"omitempty,url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens" validate:"gte=0"`
	Temperature float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
}

type ChartConfig struct {
	Width  int `mapstructure:"width" validate:"gte=100,lte=2048"`
	Height int `mapstructure:"height" validate:"gte=100,lte=2048"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

// Location resolves the configured timezone used to decide what "today" is.
func (c ExpensesConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		if _, err := fmt.Sscanf(u.Port(), "%d", &port); err != nil {
			return DatabaseConfig{}, fmt.Errorf("invalid port %q: %w", u.Port(), err)
		}
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.timeout", 60)
	v.SetDefault("telegram.debug", false)
	v.SetDefault("telegram.send_rate", 25.0)
	v.SetDefault("telegram.send_burst", 5)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "expenses")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("expenses.categories", DefaultCategories)
	v.SetDefault("expenses.session_ttl", 15*time.Minute)
	v.SetDefault("expenses.cleanup_interval", time.Minute)
	v.SetDefault("expenses.timezone", "Local")
	v.SetDefault("classifier.enabled", true)
	v.SetDefault("classifier.min_confidence", 0.7)
	v.SetDefault("openai.model", "gpt-3.5-turbo")
	v.SetDefault("openai.max_tokens", 40)
	v.SetDefault("openai.temperature", 0.0)
	v.SetDefault("chart.width", 640)
	v.SetDefault("chart.height", 640)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// LoadConfig reads path (optional when empty), then a .env file and the environment.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		dbConfig.MaxOpenConns = config.Database.MaxOpenConns
		config.Database = dbConfig
	}

	// Get other environment variables
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Expenses.Location(); err != nil {
		return fmt.Errorf("invalid config: expenses.timezone: %w", err)
	}
	for _, category := range c.Expenses.Categories {
		if len(category) > maxCategoryBytes {
			return fmt.Errorf("invalid config: category %q is longer than %d bytes", category, maxCategoryBytes)
		}
	}
	return nil
}
