package config

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "KAFKA_BROKERS", "STORE_DRIVER", "VERIFY_PAYMENT_REFERENCE", "PAYMENTS_WORKERS", "ORDER_CACHE_TTL", "DEFAULT_CURRENCY"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, "aud", cfg.DefaultCurrency)
	assert.False(t, cfg.VerifyPaymentReference)
	assert.Equal(t, 8, cfg.PaymentsWorkers)
	assert.Equal(t, 5*time.Minute, cfg.OrderCacheTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("VERIFY_PAYMENT_REFERENCE", "true")
	t.Setenv("PAYMENTS_WORKERS", "3")
	t.Setenv("ORDER_CACHE_TTL", "90s")
	t.Setenv("DEFAULT_CURRENCY", "USD")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.True(t, cfg.VerifyPaymentReference)
	assert.Equal(t, 3, cfg.PaymentsWorkers)
	assert.Equal(t, 90*time.Second, cfg.OrderCacheTTL)
	assert.Equal(t, "usd", cfg.DefaultCurrency)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"STORE_DRIVER":             "mongo",
		"VERIFY_PAYMENT_REFERENCE": "maybe",
		"PAYMENTS_WORKERS":         "0",
		"ORDER_CACHE_TTL":          "soon",
	}
	for k, v := range tests {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, v)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
