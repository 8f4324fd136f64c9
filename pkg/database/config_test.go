package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigFromEnv_RequiresPassword(t *testing.T) {
	t.Setenv("DB_PASSWORD", "")

	_, err := LoadConfigFromEnv()
	assert.ErrorContains(t, err, "DB_PASSWORD is required")
}

func TestLoadConfigFromEnv_AppliesDefaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_NAME", "")

	cfg, err := LoadConfigFromEnv()
	assert.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "maestro", cfg.Database)
}

func TestConfig_Validate_RejectsMinExceedingMax(t *testing.T) {
	cfg := Config{Password: "x", MaxConns: 5, MinConns: 10}
	assert.ErrorContains(t, cfg.Validate(), "cannot exceed")
}

func TestConfig_Validate_RejectsZeroMaxConns(t *testing.T) {
	cfg := Config{Password: "x", MaxConns: 0, MinConns: 0}
	assert.ErrorContains(t, cfg.Validate(), "must be at least 1")
}
