package app

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classboard/classboard/internal/access"
)

func TestLoadConfigParsesPolicies(t *testing.T) {
	t.Setenv("ACCESS_POLICIES", "post:author_or_moderator,comment:author_only")
	t.Setenv("APP_ENV", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, access.PolicyAuthorOrModerator, cfg.Policies().For(access.KindPost))
	assert.Equal(t, access.PolicyAuthorOnly, cfg.Policies().For(access.KindComment))
	assert.Equal(t, 10, cfg.ReportLimitPerMinute)
	assert.Equal(t, "audit", cfg.AuditQueue)
}

func TestLoadConfigRejectsUnknownPolicy(t *testing.T) {
	t.Setenv("ACCESS_POLICIES", "post:whoever")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestPoliciesDefaultsOnNilConfig(t *testing.T) {
	var cfg *Config
	assert.Equal(t, access.DefaultPolicies(), cfg.Policies())
	assert.False(t, cfg.IsProduction())
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json", AppEnv: "production"})
	logger.Debug("hidden")
	logger.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
