package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.SessionTTLMinutes)
	assert.Equal(t, "X-Initialization-Vector", cfg.Webhook.IVHeader)
	assert.Equal(t, "X-Authentication-Tag", cfg.Webhook.SignatureHeader)
	assert.True(t, cfg.Webhook.RejectUnverified)
	assert.False(t, cfg.Webhook.RequireSignature)
	assert.Equal(t, 72*time.Hour, cfg.Webhook.DedupTTL)
	assert.Equal(t, 5*time.Minute, cfg.Webhook.ProcessingLease)
	assert.Equal(t, "USD", cfg.DefaultCurrency)
	assert.Equal(t, 50, cfg.Worker.ReconcileBatch)
	assert.NotNil(t, cfg.CommonConfig)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("WEBHOOK_REJECT_UNVERIFIED", "false")
	t.Setenv("SESSION_TTL_MINUTES", "10")
	t.Setenv("DEFAULT_CURRENCY", "eur")
	t.Setenv("GATEWAY_TIMEOUT", "3s")

	cfg, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)

	assert.False(t, cfg.Webhook.RejectUnverified)
	assert.Equal(t, 10, cfg.SessionTTLMinutes)
	assert.Equal(t, "EUR", cfg.DefaultCurrency)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 3*time.Second, cfg.Gateway.Timeout)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payment.yaml")
	require.NoError(t, os.WriteFile(path, []byte("WEBHOOK_SECRET: from-file\nSTORE_DRIVER: memory\nHTTP_ADDR: \":9090\"\n"), 0o600))

	cfg, err := LoadConfig(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Webhook.Secret)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"STORE_DRIVER": "memory"}},
		{"postgres without db", map[string]string{"WEBHOOK_SECRET": "s", "STORE_DRIVER": "postgres"}},
		{"unknown driver", map[string]string{"WEBHOOK_SECRET": "s", "STORE_DRIVER": "mongo"}},
		{"bad currency", map[string]string{"WEBHOOK_SECRET": "s", "STORE_DRIVER": "memory", "DEFAULT_CURRENCY": "DOLLARS"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("WEBHOOK_SECRET", "")
			t.Setenv("DB_USER", "")
			t.Setenv("DB_NAME", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(viper.New(), "")
			assert.Error(t, err)
		})
	}
}
