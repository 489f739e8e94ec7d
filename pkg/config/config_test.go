package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-ledger/pkg/config"
)

func TestLoad_ValoresPorDefecto(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Ledger.Store)
	assert.Equal(t, "COP", cfg.Ledger.DefaultCurrency)
	assert.Equal(t, 5, cfg.Ledger.MaxRetries)
	assert.Equal(t, 15*time.Minute, cfg.Ledger.ReorderInterval)
	assert.Equal(t, int32(25), cfg.DB.MaxConns)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.Empty(t, cfg.HTTP.JWTSecret)
}

func TestLoad_DesdeEntorno(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LEDGER_STORE", "MEMORY")
	t.Setenv("LEDGER_DEFAULT_CURRENCY", "usd")
	t.Setenv("LEDGER_RETRY_INITIAL", "20ms")
	t.Setenv("LEDGER_REORDER_INTERVAL", "30")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("DB_MAX_CONNS", "7")
	t.Setenv("JWT_SECRET", "s3cr3t")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Ledger.Store)
	assert.Equal(t, "USD", cfg.Ledger.DefaultCurrency)
	assert.Equal(t, 20*time.Millisecond, cfg.Ledger.RetryInitial)
	assert.Equal(t, 30*time.Second, cfg.Ledger.ReorderInterval)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, int32(7), cfg.DB.MaxConns)
	assert.Equal(t, "s3cr3t", cfg.HTTP.JWTSecret)
}

func TestLoad_Invalida(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LEDGER_SAFETY_STOCK_MODE", "doble")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestDSN_EscapaPassword(t *testing.T) {
	c := config.DBConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss/word", DBName: "ledger", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss%2Fword@db:5432/ledger?sslmode=disable", c.DSN())
	assert.Equal(t, "postgres://x", config.DBConfig{DatabaseURL: "postgres://x"}.ConnectionString())
}
