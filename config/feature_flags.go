package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages feature toggles with percentage rollout keyed on the
// student's RUT.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Students are bucketed by a hash of their RUT.
	RolloutPercent int
}

// Predefined feature flag names.
const (
	FeatureLegacyBackfill = "curriculum.legacy_backfill" // merge legacy catalogs into the curriculum
	FeatureRedisCache     = "cache.redis"                // cache university responses
	FeatureTimeline       = "timeline"                   // expose the term-by-term timeline
	FeatureStrictSave     = "planner.strict_save"        // refuse to save plans that break credit bounds
)

// LoadFeatureFlags loads feature flags from the process environment.
//
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_PLANNER_STRICT_SAVE=false
func LoadFeatureFlags() *FeatureFlags {
	return loadFeatureFlags(os.Getenv)
}

func loadFeatureFlags(getenv func(string) string) *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}
	ff.initializeDefaults()

	for name, feature := range ff.features {
		val := strings.TrimSpace(getenv(featureNameToEnvKey(name)))
		if val == "" {
			continue
		}
		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			feature.RolloutPercent = 0
			if b {
				feature.RolloutPercent = 100
			}
			continue
		}
		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	for _, f := range []Feature{
		{Name: FeatureLegacyBackfill, Description: "Backfill course metadata from legacy catalogs", Enabled: true, RolloutPercent: 100},
		{Name: FeatureRedisCache, Description: "Cache curricula and histories in Redis", Enabled: true, RolloutPercent: 100},
		{Name: FeatureTimeline, Description: "Term-by-term academic timeline", Enabled: true, RolloutPercent: 100},
		{Name: FeatureStrictSave, Description: "Reject plans that violate credit bounds on save", Enabled: true, RolloutPercent: 100},
	} {
		ff.features[f.Name] = &f
	}
}

// featureNameToEnvKey converts "planner.strict_save" to "FEATURE_PLANNER_STRICT_SAVE".
func featureNameToEnvKey(name string) string {
	return "FEATURE_" + strings.ReplaceAll(strings.ToUpper(name), ".", "_")
}

// IsEnabled checks a flag for a student. An empty rut only passes flags at
// full rollout.
func (ff *FeatureFlags) IsEnabled(name, rut string) bool {
	if ff == nil {
		return false
	}
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[name]
	if !ok || !feature.Enabled {
		return false
	}
	if feature.RolloutPercent >= 100 {
		return true
	}
	if rut == "" {
		return false
	}
	return inRollout(rut, name, feature.RolloutPercent)
}

// inRollout buckets rut+feature into 0-99 with a stable hash.
func inRollout(rut, name string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(name))
	h.Write([]byte(rut))
	return int(h.Sum32()%100) < percent
}

// SetRolloutPercent updates the rollout percentage for a feature.
func (ff *FeatureFlags) SetRolloutPercent(name string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[name]
	if !ok {
		return ErrFeatureNotFound
	}
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}
	feature.RolloutPercent = percent
	feature.Enabled = percent > 0
	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(name string) error { return ff.SetRolloutPercent(name, 100) }

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(name string) error { return ff.SetRolloutPercent(name, 0) }

// All returns a copy of every feature.
func (ff *FeatureFlags) All() map[string]Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make(map[string]Feature, len(ff.features))
	for k, v := range ff.features {
		out[k] = *v
	}
	return out
}

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string { return e.Message }
