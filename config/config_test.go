package config

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malla-ucn/malla-estudiante/internal/domain/academic"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.Equal(t, "America/Santiago", cfg.App.Location.String())
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "202410", cfg.UCN.DefaultCatalog)
	assert.Equal(t, 12*time.Hour, cfg.Redis.CurriculumTTL)
	assert.Equal(t, 6*time.Hour, cfg.Redis.WarmInterval)

	refs, err := cfg.UCN.LegacyRefs()
	require.NoError(t, err)
	assert.Equal(t, []academic.CatalogRef{
		{Program: "8266", Catalog: "202410"},
		{Program: "8606", Catalog: "201610"},
		{Program: "8616", Catalog: "201610"},
	}, refs)

	assert.True(t, cfg.Features.IsEnabled(FeatureStrictSave, ""))
	assert.NotEmpty(t, cfg.SessionSecret())
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	cfg, err := LoadFromEnv(map[string]string{
		"HTTP_PORT":                   "9000",
		"DATABASE_DRIVER":             "postgres",
		"DATABASE_URL":                "postgres://u:p@localhost:5432/malla",
		"UCN_LEGACY_CATALOGS":         "8606-201610",
		"FEATURE_PLANNER_STRICT_SAVE": "false",
		"HTTP_CORS_ORIGINS":           "https://a.cl,https://b.cl",
		"CACHE_WARM_CATALOGS":         "8606-202410, 8266-202410",
	})
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, []string{"https://a.cl", "https://b.cl"}, cfg.HTTP.CORSOrigins)
	assert.False(t, cfg.Features.IsEnabled(FeatureStrictSave, "12345678-9"))

	warm, err := cfg.Redis.WarmRefs()
	require.NoError(t, err)
	assert.Equal(t, []academic.CatalogRef{
		{Program: "8606", Catalog: "202410"},
		{Program: "8266", Catalog: "202410"},
	}, warm)
}

func TestValidate_CollectsErrors(t *testing.T) {
	_, err := LoadFromEnv(map[string]string{
		"APP_ENV":             "production",
		"SESSION_SECRET":      "short",
		"DATABASE_DRIVER":     "postgres",
		"HTTP_PORT":           "70000",
		"UCN_LEGACY_CATALOGS": "broken",
		"CACHE_WARM_CATALOGS": "8606",
	})
	require.Error(t, err)

	msg := err.Error()
	assert.True(t, strings.Contains(msg, "configuration errors:"))
	assert.Contains(t, msg, "SESSION_SECRET must be at least 32 bytes")
	assert.Contains(t, msg, "DATABASE_URL is required")
	assert.Contains(t, msg, "HTTP_PORT must be 1-65535")
	assert.Contains(t, msg, "UCN_LEGACY_CATALOGS")
	assert.Contains(t, msg, "CACHE_WARM_CATALOGS")
}

func TestValidate_ProductionNeedsSecret(t *testing.T) {
	_, err := LoadFromEnv(map[string]string{"APP_ENV": "production"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SECRET is required in production")
}

func TestFeatureFlags_Rollout(t *testing.T) {
	ff := loadFeatureFlags(func(key string) string {
		if key == "FEATURE_TIMELINE" {
			return "50"
		}
		return ""
	})

	assert.False(t, ff.IsEnabled(FeatureTimeline, ""), "partial rollout needs a rut")

	in := 0
	for i := range 200 {
		if ff.IsEnabled(FeatureTimeline, fmt.Sprintf("%08d-%d", 10000000+i, i%10)) {
			in++
		}
	}
	assert.Greater(t, in, 0)
	assert.Less(t, in, 200)

	rut := "12345678-9"
	assert.Equal(t, ff.IsEnabled(FeatureTimeline, rut), ff.IsEnabled(FeatureTimeline, rut), "bucketing is stable")

	require.NoError(t, ff.DisableFeature(FeatureTimeline))
	assert.False(t, ff.IsEnabled(FeatureTimeline, rut))
	assert.ErrorIs(t, ff.SetRolloutPercent("nope", 10), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureTimeline, 101), ErrInvalidRolloutPercent)
}
