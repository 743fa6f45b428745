// Package config resolves runtime configuration for the MediaGuard services.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration.
type Config struct {
	HTTPAddr string

	OwnerAddress string
	TokenAddress string

	DatabaseDriver string // "postgres" or "sqlite"
	DatabaseDSN    string
	RedisAddr      string // empty runs a single instance without Redis
	RedisPassword  string
	RedisDB        int

	JWTSecret   string
	JWTIssuer   string
	JWTTokenTTL time.Duration

	TelegramBotToken    string
	TelegramOwnerChatID int64

	LogLevel  string
	LogFormat string

	VulgarityThreshold  int
	SuspensionThreshold uint
}

// configFile mirrors the YAML schema of config.yaml.
type configFile struct {
	Server struct {
		HTTPAddr string `yaml:"http_addr"`
	} `yaml:"server"`
	Ledger struct {
		Owner string `yaml:"owner"`
		Token string `yaml:"token"`
	} `yaml:"ledger"`
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Auth struct {
		Secret string `yaml:"secret"`
		Issuer string `yaml:"issuer"`
		TTL    string `yaml:"ttl"`
	} `yaml:"auth"`
	Telegram struct {
		BotToken    string `yaml:"bot_token"`
		OwnerChatID int64  `yaml:"owner_chat_id"`
	} `yaml:"telegram"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Moderation struct {
		VulgarityThreshold  *int  `yaml:"vulgarity_threshold"`
		SuspensionThreshold *uint `yaml:"suspension_threshold"`
	} `yaml:"moderation"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		HTTPAddr:            ":8080",
		DatabaseDriver:      "postgres",
		DatabaseDSN:         "host=localhost user=user password=password dbname=mediaguarddb port=5432 sslmode=disable",
		JWTIssuer:           DefaultTokenIssuer,
		JWTTokenTTL:         DefaultTokenTTL,
		LogLevel:            "info",
		LogFormat:           "text",
		VulgarityThreshold:  VulgarityThreshold,
		SuspensionThreshold: SuspensionThreshold,
	}
}

// Load resolves configuration in priority order: defaults -> YAML file -> .env -> environment.
// A missing file at path is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := cfg.applyFile(raw); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	// .env is optional, like in local development.
	_ = godotenv.Load()

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyFile(raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return err
	}
	setString(&c.HTTPAddr, f.Server.HTTPAddr)
	setString(&c.OwnerAddress, f.Ledger.Owner)
	setString(&c.TokenAddress, f.Ledger.Token)
	setString(&c.DatabaseDriver, f.Database.Driver)
	setString(&c.DatabaseDSN, f.Database.DSN)
	setString(&c.RedisAddr, f.Redis.Addr)
	setString(&c.RedisPassword, f.Redis.Password)
	if f.Redis.DB != 0 {
		c.RedisDB = f.Redis.DB
	}
	setString(&c.JWTSecret, f.Auth.Secret)
	setString(&c.JWTIssuer, f.Auth.Issuer)
	if f.Auth.TTL != "" {
		ttl, err := time.ParseDuration(f.Auth.TTL)
		if err != nil {
			return fmt.Errorf("auth.ttl: %w", err)
		}
		c.JWTTokenTTL = ttl
	}
	setString(&c.TelegramBotToken, f.Telegram.BotToken)
	if f.Telegram.OwnerChatID != 0 {
		c.TelegramOwnerChatID = f.Telegram.OwnerChatID
	}
	setString(&c.LogLevel, f.Log.Level)
	setString(&c.LogFormat, f.Log.Format)
	if f.Moderation.VulgarityThreshold != nil {
		c.VulgarityThreshold = *f.Moderation.VulgarityThreshold
	}
	if f.Moderation.SuspensionThreshold != nil {
		c.SuspensionThreshold = *f.Moderation.SuspensionThreshold
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString(&c.HTTPAddr, getenv("HTTP_ADDR"))
	setString(&c.OwnerAddress, getenv("OWNER_ADDRESS"))
	setString(&c.TokenAddress, getenv("TOKEN_ADDRESS"))
	setString(&c.DatabaseDriver, getenv("DB_DRIVER"))
	setString(&c.DatabaseDSN, getenv("DATABASE_URL"))
	setString(&c.RedisAddr, getenv("REDIS_ADDR"))
	setString(&c.RedisPassword, getenv("REDIS_PASSWORD"))
	setString(&c.JWTSecret, getenv("JWT_SECRET"))
	setString(&c.JWTIssuer, getenv("JWT_ISSUER"))
	setString(&c.TelegramBotToken, getenv("TELEGRAM_BOT_TOKEN"))
	setString(&c.LogLevel, getenv("LOG_LEVEL"))
	setString(&c.LogFormat, getenv("LOG_FORMAT"))

	if v := getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: REDIS_DB: %w", err)
		}
		c.RedisDB = n
	}
	if v := getenv("JWT_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: JWT_TTL: %w", err)
		}
		c.JWTTokenTTL = ttl
	}
	if v := getenv("TELEGRAM_OWNER_CHAT_ID"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: TELEGRAM_OWNER_CHAT_ID: %w", err)
		}
		c.TelegramOwnerChatID = n
	}
	if v := getenv("VULGARITY_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: VULGARITY_THRESHOLD: %w", err)
		}
		c.VulgarityThreshold = n
	}
	if v := getenv("SUSPENSION_THRESHOLD"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("config: SUSPENSION_THRESHOLD: %w", err)
		}
		c.SuspensionThreshold = uint(n)
	}
	return nil
}

// Validate checks the fields every process needs.
func (c Config) Validate() error {
	var problems []string
	if c.OwnerAddress == "" {
		problems = append(problems, "owner address is required")
	}
	if c.TokenAddress == "" {
		problems = append(problems, "token address is required (deploy the token first)")
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("unknown database driver %q", c.DatabaseDriver))
	}
	if c.VulgarityThreshold < MinVulgarityScore || c.VulgarityThreshold > MaxVulgarityScore {
		problems = append(problems, "vulgarity threshold must be within [0,100]")
	}
	if c.SuspensionThreshold == 0 {
		problems = append(problems, "suspension threshold must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
