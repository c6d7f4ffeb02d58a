package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config stores runtime configuration loaded from .env, an optional config
// file and environment variables.
type Config struct {
	Port                 string
	DatabaseURL          string
	SQLitePath           string
	AuthJWTSecret        string
	AssistantAPIKey      string
	AssistantModel       string
	AssistantBaseURL     string
	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioWhatsAppNumber string
	TwilioWebhookURL     string
	NotifyCron           string
	LocalTimezone        *time.Location
}

// TwilioConfigured reports whether WhatsApp delivery has credentials.
func (c *Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioWhatsAppNumber != ""
}

// Load reads configuration values and prepares defaults where applicable.
// BILLCAL_CONFIG may point at a YAML or TOML file; environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("port", "8080")
	v.SetDefault("database_url", "")
	v.SetDefault("sqlite_path", "billcal.db")
	v.SetDefault("local_timezone", "Local")
	v.SetDefault("auth_jwt_secret", "")
	v.SetDefault("assistant_api_key", "")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("assistant_model", "gpt-4o-mini")
	v.SetDefault("assistant_base_url", "")
	v.SetDefault("twilio_account_sid", "")
	v.SetDefault("twilio_auth_token", "")
	v.SetDefault("twilio_whatsapp_number", "")
	v.SetDefault("twilio_webhook_url", "")
	v.SetDefault("notify_cron", "0 8 * * *")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path := v.GetString("billcal_config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	apiKey := v.GetString("assistant_api_key")
	if apiKey == "" {
		apiKey = v.GetString("openai_api_key")
	}

	timezoneName := v.GetString("local_timezone")
	location, err := time.LoadLocation(timezoneName)
	if err != nil {
		log.Printf("config: invalid LOCAL_TIMEZONE %q, defaulting to system local: %v", timezoneName, err)
		location = time.Local
	}

	return &Config{
		Port:                 v.GetString("port"),
		DatabaseURL:          v.GetString("database_url"),
		SQLitePath:           v.GetString("sqlite_path"),
		AuthJWTSecret:        v.GetString("auth_jwt_secret"),
		AssistantAPIKey:      apiKey,
		AssistantModel:       v.GetString("assistant_model"),
		AssistantBaseURL:     v.GetString("assistant_base_url"),
		TwilioAccountSID:     v.GetString("twilio_account_sid"),
		TwilioAuthToken:      v.GetString("twilio_auth_token"),
		TwilioWhatsAppNumber: v.GetString("twilio_whatsapp_number"),
		TwilioWebhookURL:     v.GetString("twilio_webhook_url"),
		NotifyCron:           v.GetString("notify_cron"),
		LocalTimezone:        location,
	}, nil
}
