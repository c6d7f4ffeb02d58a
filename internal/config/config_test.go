package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"PORT", "DATABASE_URL", "SQLITE_PATH", "LOCAL_TIMEZONE", "AUTH_JWT_SECRET",
	"ASSISTANT_API_KEY", "OPENAI_API_KEY", "ASSISTANT_MODEL", "ASSISTANT_BASE_URL",
	"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_WHATSAPP_NUMBER", "TWILIO_WEBHOOK_URL", "NOTIFY_CRON",
	"BILLCAL_CONFIG",
}

// isolate clears the configuration environment and runs from an empty
// directory so no .env file is picked up.
func isolate(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "", cfg.DatabaseURL)
	assert.Equal(t, "billcal.db", cfg.SQLitePath)
	assert.Equal(t, "gpt-4o-mini", cfg.AssistantModel)
	assert.Equal(t, "0 8 * * *", cfg.NotifyCron)
	assert.Equal(t, time.Local, cfg.LocalTimezone)
	assert.False(t, cfg.TwilioConfigured())
}

func TestLoadFromEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOCAL_TIMEZONE", "America/New_York")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC1")
	t.Setenv("TWILIO_AUTH_TOKEN", "tok")
	t.Setenv("TWILIO_WHATSAPP_NUMBER", "+14155238886")
	t.Setenv("TWILIO_WEBHOOK_URL", "https://billcal.example.org/twilio/webhook")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "America/New_York", cfg.LocalTimezone.String())
	assert.Equal(t, "sk-openai", cfg.AssistantAPIKey)
	assert.True(t, cfg.TwilioConfigured())
	assert.Equal(t, "https://billcal.example.org/twilio/webhook", cfg.TwilioWebhookURL)

	t.Setenv("ASSISTANT_API_KEY", "sk-assistant")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-assistant", cfg.AssistantAPIKey)
}

func TestLoadInvalidTimezoneFallsBack(t *testing.T) {
	isolate(t)
	t.Setenv("LOCAL_TIMEZONE", "Mars/Olympus")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Local, cfg.LocalTimezone)
}

func TestLoadConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "billcal.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"7070\"\nnotify_cron: \"30 7 * * *\"\n"), 0o600))
	t.Setenv("BILLCAL_CONFIG", path)
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "30 7 * * *", cfg.NotifyCron)

	t.Setenv("BILLCAL_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load()
	assert.Error(t, err)
}
