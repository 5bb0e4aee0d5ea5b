package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kapu/greeting-push-go/internal/constants"
	"github.com/kapu/greeting-push-go/internal/domain"
	"github.com/kapu/greeting-push-go/internal/util"
	"github.com/kapu/greeting-push-go/pkg/errors"
)

const (
	RecipientSourceFile     = "file"
	RecipientSourcePostgres = "postgres"
)

type Config struct {
	Logging    LoggingConfig
	HTTP       HTTPConfig
	Endpoints  EndpointsConfig
	WeChat     WeChatConfig
	PushPlus   PushPlusConfig
	Redis      RedisConfig
	Ledger     LedgerConfig
	Postgres   PostgresConfig
	Run        RunConfig
	Recipients []domain.Recipient
}

type LoggingConfig struct {
	Level string
	File  string
}

type HTTPConfig struct {
	Timeout        time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

type EndpointsConfig struct {
	Weather  string
	Epidemic string
	WeChat   string
	PushPlus string
}

type WeChatConfig struct {
	AppID      string
	AppSecret  string
	TemplateID string
	TargetURL  string
}

// Enabled reports whether the official-account template channel is configured.
func (c WeChatConfig) Enabled() bool {
	return c.AppID != "" || c.AppSecret != "" || c.TemplateID != ""
}

type PushPlusConfig struct {
	Token string
	Title string
}

func (c PushPlusConfig) Enabled() bool {
	return c.Token != ""
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type LedgerConfig struct {
	Enabled bool
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

type RunConfig struct {
	RecipientSource string
	RecipientsFile  string
	TimeZone        string
	DryRun          bool
	Timeout         time.Duration
}

// recipientsFile mirrors the JSON layout of config.json.
type recipientsFile struct {
	Friends         []domain.Recipient `json:"friends"`
	OfficialAccount struct {
		AppID      string `json:"app_id"`
		AppSecret  string `json:"app_secret"`
		TemplateID string `json:"template_id"`
	} `json:"official_account"`
	PushPlus struct {
		Token string `json:"token"`
	} `json:"pushplus"`
}

// Load reads .env and the process environment, then the recipients file,
// and validates the result before any network call is made.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
		HTTP: HTTPConfig{
			Timeout:        getEnvDuration("HTTP_TIMEOUT", constants.APIConfig.Timeout),
			RateLimitRPS:   getEnvFloat("API_RATE_LIMIT_RPS", constants.APIConfig.RateLimitRPS),
			RateLimitBurst: getEnvInt("API_RATE_LIMIT_BURST", constants.APIConfig.RateLimitBurst),
		},
		Endpoints: EndpointsConfig{
			Weather:  getEnv("WEATHER_BASE_URL", constants.APIConfig.WeatherBaseURL),
			Epidemic: getEnv("EPIDEMIC_BASE_URL", constants.APIConfig.EpidemicBaseURL),
			WeChat:   getEnv("WECHAT_BASE_URL", constants.APIConfig.WeChatBaseURL),
			PushPlus: getEnv("PUSHPLUS_BASE_URL", constants.APIConfig.PushPlusBaseURL),
		},
		WeChat: WeChatConfig{
			TargetURL: getEnv("WECHAT_TEMPLATE_URL", constants.MessageDefaults.TemplateTargetURL),
		},
		PushPlus: PushPlusConfig{
			Title: getEnv("PUSHPLUS_TITLE", constants.MessageDefaults.PushPlusTitle),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Ledger: LedgerConfig{
			Enabled: getEnvBool("LEDGER_ENABLED", false),
		},
		Postgres: PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "greeter"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Database: getEnv("POSTGRES_DB", "greeter"),
		},
		Run: RunConfig{
			RecipientSource: strings.ToLower(getEnv("RECIPIENT_SOURCE", RecipientSourceFile)),
			RecipientsFile:  getEnv("GREETING_CONFIG_FILE", "config.json"),
			TimeZone:        getEnv("TIMEZONE", util.DefaultTimeZone),
			DryRun:          getEnvBool("DRY_RUN", false),
			Timeout:         getEnvDuration("RUN_TIMEOUT", constants.RunConfig.Timeout),
		},
	}

	if err := cfg.loadRecipientsFile(); err != nil {
		return nil, err
	}
	cfg.applySecretOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadRecipientsFile reads recipients and channel credentials from the JSON
// file. With the postgres source the file is optional and only supplies
// credentials.
func (c *Config) loadRecipientsFile() error {
	data, err := os.ReadFile(c.Run.RecipientsFile)
	if err != nil {
		if os.IsNotExist(err) && c.Run.RecipientSource == RecipientSourcePostgres {
			return nil
		}
		return fmt.Errorf("failed to read recipients file %s: %w", c.Run.RecipientsFile, err)
	}

	file, err := parseRecipientsFile(c.Run.RecipientsFile, data)
	if err != nil {
		return err
	}

	if c.Run.RecipientSource != RecipientSourcePostgres {
		c.Recipients = file.Friends
	}
	c.WeChat.AppID = file.OfficialAccount.AppID
	c.WeChat.AppSecret = file.OfficialAccount.AppSecret
	c.WeChat.TemplateID = file.OfficialAccount.TemplateID
	c.PushPlus.Token = file.PushPlus.Token
	return nil
}

// ReadRecipients returns the friends list of a config.json file.
func ReadRecipients(path string) ([]domain.Recipient, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipients file %s: %w", path, err)
	}
	file, err := parseRecipientsFile(path, data)
	if err != nil {
		return nil, err
	}
	return file.Friends, nil
}

func parseRecipientsFile(path string, data []byte) (*recipientsFile, error) {
	var file recipientsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse recipients file %s: %w", path, err)
	}
	return &file, nil
}

func (c *Config) applySecretOverrides() {
	c.WeChat.AppID = getEnv("WECHAT_APP_ID", c.WeChat.AppID)
	c.WeChat.AppSecret = getEnv("WECHAT_APP_SECRET", c.WeChat.AppSecret)
	c.WeChat.TemplateID = getEnv("WECHAT_TEMPLATE_ID", c.WeChat.TemplateID)
	c.PushPlus.Token = getEnv("PUSHPLUS_TOKEN", c.PushPlus.Token)
}

func (c *Config) Validate() error {
	switch c.Run.RecipientSource {
	case RecipientSourceFile, RecipientSourcePostgres:
	default:
		return errors.NewValidationError("RECIPIENT_SOURCE must be file or postgres", "RECIPIENT_SOURCE", c.Run.RecipientSource)
	}
	if c.HTTP.Timeout <= 0 {
		return errors.NewValidationError("HTTP_TIMEOUT must be positive", "HTTP_TIMEOUT", c.HTTP.Timeout)
	}
	if c.Run.Timeout <= 0 {
		return errors.NewValidationError("RUN_TIMEOUT must be positive", "RUN_TIMEOUT", c.Run.Timeout)
	}
	if c.WeChat.Enabled() {
		if c.WeChat.AppID == "" {
			return errors.NewValidationError("official_account.app_id is required", "official_account.app_id", "")
		}
		if c.WeChat.AppSecret == "" {
			return errors.NewValidationError("official_account.app_secret is required", "official_account.app_secret", "")
		}
		if c.WeChat.TemplateID == "" {
			return errors.NewValidationError("official_account.template_id is required", "official_account.template_id", "")
		}
	}
	if !c.Run.DryRun && !c.WeChat.Enabled() && !c.PushPlus.Enabled() {
		return errors.NewValidationError("no delivery channel configured (official_account or pushplus)", "channels", nil)
	}
	if c.Run.RecipientSource == RecipientSourceFile {
		if len(c.Recipients) == 0 {
			return errors.NewValidationError("at least one recipient is required", "friends", nil)
		}
		return ValidateRecipients(c.Recipients, c.WeChat.Enabled())
	}
	return nil
}

// ValidateRecipients checks the fields every recipient needs. requireOpenID
// is set when the template channel is enabled, since it addresses users by openid.
func ValidateRecipients(recipients []domain.Recipient, requireOpenID bool) error {
	for i, r := range recipients {
		prefix := fmt.Sprintf("friends[%d]", i)
		if strings.TrimSpace(r.Name) == "" {
			return errors.NewValidationError("recipient name is required", prefix+".name", r.Name)
		}
		if strings.TrimSpace(r.City) == "" {
			return errors.NewValidationError(fmt.Sprintf("city is required for %s", r.Name), prefix+".city", r.City)
		}
		if requireOpenID && strings.TrimSpace(r.WeChatOpenID) == "" {
			return errors.NewValidationError(fmt.Sprintf("touser is required for %s", r.Name), prefix+".touser", r.WeChatOpenID)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
