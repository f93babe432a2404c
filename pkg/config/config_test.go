package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 10*time.Minute, cfg.Results.CacheTTL)
	assert.True(t, cfg.Results.SeedDefaultScale)
	assert.Equal(t, 16, cfg.Results.DispatchBuffer)
	assert.Empty(t, cfg.NATS.URL)
	assert.Equal(t, "scms.results", cfg.NATS.SubjectPrefix)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("RESULTS_CACHE_TTL", "90s")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	v.Set("NATS_URL", "nats://localhost:4222")
	cfg := fromViper(v)

	assert.Equal(t, 90*time.Second, cfg.Results.CacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Hour, parseDuration("", time.Hour))
	assert.Equal(t, time.Hour, parseDuration("soon", time.Hour))
	assert.Equal(t, 2*time.Second, parseDuration("2s", time.Hour))
}
