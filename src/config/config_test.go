package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("DISTRIBUTION_BATCH_SIZE", "-5")
	t.Setenv("STATS_CACHE_TTL", "not-a-duration")

	LoadConfig()
	require.NotNil(t, Cfg)

	assert.Equal(t, "8080", Cfg.Port)
	assert.Equal(t, 100, Cfg.DistributionBatchSize)
	assert.Equal(t, 30*time.Second, Cfg.StatsCacheTTL)
	assert.Equal(t, 30, Cfg.RateLimitBurst)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("PORT", "9090")
	t.Setenv("DISTRIBUTION_BATCH_SIZE", "25")
	t.Setenv("TOKEN_EXPIRY", "1h")

	LoadConfig()

	assert.Equal(t, "9090", Cfg.Port)
	assert.Equal(t, 25, Cfg.DistributionBatchSize)
	assert.Equal(t, time.Hour, Cfg.TokenExpiry)
}
