package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable, e.g. CALMAN_BASE_URL.
const EnvPrefix = "CALMAN_"

type Config struct {
	BaseURL        string        `yaml:"baseUrl" env:"BASE_URL" validate:"required,url"`
	RequestTimeout time.Duration `yaml:"requestTimeout" env:"REQUEST_TIMEOUT" validate:"gt=0"`
	UpdatePolicy   string        `yaml:"updatePolicy" env:"UPDATE_POLICY" validate:"oneof=refetch upsert"`

	Live    LiveConfig    `yaml:"live" envPrefix:"LIVE_"`
	Log     LogConfig     `yaml:"log" envPrefix:"LOG_"`
	Server  ServerConfig  `yaml:"server" envPrefix:"SERVER_"`
	Slack   SlackConfig   `yaml:"slack" envPrefix:"SLACK_"`
	Storage StorageConfig `yaml:"storage" envPrefix:"STORAGE_"`
}

type LiveConfig struct {
	BaseDelay   time.Duration `yaml:"baseDelay" env:"BASE_DELAY" validate:"gt=0"`
	MaxAttempts int           `yaml:"maxAttempts" env:"MAX_ATTEMPTS" validate:"gte=1"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" env:"FORMAT" validate:"oneof=json console"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr" env:"ADDR"`
	DSN            string        `yaml:"dsn" env:"DSN"`
	MaxConnections int           `yaml:"maxConnections" env:"MAX_CONNECTIONS" validate:"gte=1"`
	DBLogLevel     string        `yaml:"dbLogLevel" env:"DB_LOG_LEVEL"`
	ReplaySize     int           `yaml:"replaySize" env:"REPLAY_SIZE" validate:"gte=1"`
	KeepAlive      time.Duration `yaml:"keepAlive" env:"KEEP_ALIVE"`
}

type SlackConfig struct {
	Token          string `yaml:"token" env:"BOT_TOKEN"`
	InfoChannelID  string `yaml:"infoChannel" env:"INFO_CHANNEL"`
	ErrorChannelID string `yaml:"errorChannel" env:"ERROR_CHANNEL"`
}

func (s SlackConfig) Enabled() bool {
	return s.Token != "" && (s.InfoChannelID != "" || s.ErrorChannelID != "")
}

type StorageConfig struct {
	Bucket string `yaml:"bucket" env:"BUCKET"`
	Region string `yaml:"region" env:"REGION"`
}

func Default() Config {
	return Config{
		BaseURL:        "http://localhost:8080",
		RequestTimeout: 30 * time.Second,
		UpdatePolicy:   "refetch",
		Live: LiveConfig{
			BaseDelay:   2 * time.Second,
			MaxAttempts: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			MaxConnections: 10,
			DBLogLevel:     "warn",
			ReplaySize:     10,
			KeepAlive:      30 * time.Second,
		},
	}
}

// Load reads path over the defaults, then applies CALMAN_* environment
// variables. A missing file is not an error when path is empty.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := Parse(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Parse decodes YAML onto cfg, keeping the values the document does not set.
func Parse(b []byte, cfg *Config) error {
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return err
	}
	return nil
}

func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

var validate = validator.New()

func (c Config) Validate() error {
	err := validate.Struct(c)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fe := ve[0]
		return fmt.Errorf("invalid config %s: failed on '%s'", fe.Namespace(), fe.Tag())
	}
	return err
}
