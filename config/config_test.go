package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MATCH_MODE", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("JWT_EXPIRE_HOURS", "")
	t.Setenv("AUTH_DEMO_PASSWORD_BYPASS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 168, cfg.Auth.ExpireHours)
	assert.Equal(t, "auth-token", cfg.Auth.CookieName)
	assert.False(t, cfg.Auth.DemoPasswordBypass)
	assert.True(t, cfg.Server.Secure())
	assert.Equal(t, "embedding", cfg.Match.Mode)
	assert.Equal(t, int64(10*1024*1024), cfg.Match.MaxUploadBytes)
}

func TestLoadRejectsBypassInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_DEMO_PASSWORD_BYPASS", "true")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadDevelopmentBypass(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("AUTH_DEMO_PASSWORD_BYPASS", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Auth.DemoPasswordBypass)
	assert.False(t, cfg.Server.Secure())
}

func TestLoadRejectsUnknownMatchMode(t *testing.T) {
	t.Setenv("MATCH_MODE", "magic")

	_, err := Load()
	require.Error(t, err)
}

func TestDSNPrefersURL(t *testing.T) {
	c := DatabaseConfig{URL: "postgres://x/y", Host: "h"}
	assert.Equal(t, "postgres://x/y", c.DSN())

	c = DatabaseConfig{User: "u", Password: "p", Host: "h", Port: "5432", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", c.DSN())
}
