package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 3, cfg.StrikeBanThreshold)
	assert.Equal(t, 3, cfg.ForfeitScore)
	assert.Equal(t, 24*time.Hour, cfg.MatchWindow)
	assert.Equal(t, time.Minute, cfg.AutoResolveInterval)
	assert.Equal(t, 4, cfg.SweepConcurrency)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MATCH_WINDOW", "90m")
	t.Setenv("STRIKE_BAN_THRESHOLD", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test,https://b.test")
	t.Setenv("R2_BUCKET_NAME", "results")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, 90*time.Minute, cfg.MatchWindow)
	assert.Equal(t, 5, cfg.StrikeBanThreshold)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "results", cfg.R2.BucketName)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			JWTSecretKey:        "secret",
			ServerPort:          8080,
			StrikeBanThreshold:  3,
			ForfeitScore:        3,
			MatchWindow:         time.Hour,
			AutoResolveInterval: time.Minute,
			SweepConcurrency:    1,
		}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.ServerPort = 0 }},
		{"port too big", func(c *Config) { c.ServerPort = 70000 }},
		{"threshold", func(c *Config) { c.StrikeBanThreshold = 0 }},
		{"forfeit", func(c *Config) { c.ForfeitScore = -1 }},
		{"window", func(c *Config) { c.MatchWindow = 0 }},
		{"interval", func(c *Config) { c.AutoResolveInterval = 10 * time.Millisecond }},
		{"concurrency", func(c *Config) { c.SweepConcurrency = 0 }},
	}

	base := valid()
	require.NoError(t, base.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
