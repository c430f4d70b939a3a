package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "clover-api", cfg.AppName)
	assert.Equal(t, "pt-BR", cfg.DefaultLocale)
	assert.Equal(t, 5*time.Minute, cfg.DefinitionCacheTTL())
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoad_EnvFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(file, []byte("CLOVER_TEST_UNUSED=1\n"), 0o600))

	t.Setenv("DB_NAME", "crm")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_HOST", "cache")

	cfg, err := Load(file, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Contains(t, cfg.DatabaseDSN(), "dbname=crm")
	assert.Equal(t, "cache", cfg.RedisHost)
	assert.Equal(t, 6379, cfg.RedisPort)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}
