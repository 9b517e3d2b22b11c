package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load(t *testing.T) {
	t.Run("ok, defaults and environment", func(t *testing.T) {
		t.Setenv("PORT", "4000")
		t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
		t.Setenv("OUTBOX_POLL_INTERVAL", "250ms")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "4000", cfg.HTTP.Port)
		assert.Equal(t, "3001", cfg.HTTP.BankPort)
		assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Messaging.Brokers)
		assert.Equal(t, 250*time.Millisecond, cfg.Outbox.PollInterval)
		assert.Equal(t, 5, cfg.Outbox.MaxAttempts)
		assert.Equal(t, uint32(5), cfg.Breaker.FailureThreshold)
		assert.Empty(t, cfg.Database.URL)
		assert.False(t, cfg.IsProduction())
	})

	t.Run("ok, environment wins over the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
env: production
http:
  port: "8080"
breaker:
  failure_threshold: 3
ledger:
  monthly_reset_zone: America/Lima
`), 0o600))
		t.Setenv("PORT", "9090")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.True(t, cfg.IsProduction())
		assert.Equal(t, "9090", cfg.HTTP.Port)
		assert.Equal(t, uint32(3), cfg.Breaker.FailureThreshold)
		assert.Equal(t, "America/Lima", cfg.Ledger.MonthlyResetZone)
	})

	t.Run("fail, missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})

	t.Run("fail, bad duration", func(t *testing.T) {
		t.Setenv("OUTBOX_LEASE", "soon")
		_, err := Load("")
		require.Error(t, err)
	})
}
