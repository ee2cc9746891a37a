package config

import (
	"fmt"
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
)

// ══════════════════════════════════════════════════════════════════════════════
// FEATURE FLAGS
// ══════════════════════════════════════════════════════════════════════════════

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// RolloutPercent allows gradual rollout (0-100).
	// If 0 or 100, the flag behaves as a simple on/off switch.
	RolloutPercent int
}

// FeatureFlags manages all feature flags for the application.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature flag names as constants to avoid typos.
const (
	// Trigger intake toggles
	FeatureTriggerLessonCompleted = "trigger.lesson_completed"
	FeatureTriggerQuizSubmitted   = "trigger.quiz_submitted"

	// Caching
	FeatureCatalogCache = "cache.catalog"
	FeatureEarnedCache  = "cache.earned"

	// Event bus
	FeatureRedisEventBus = "events.redis_bus"

	// Maintenance
	FeatureAwardWrites = "engine.award_writes"
)

// LoadFeatureFlags creates feature flags from environment variables.
// Environment variables override defaults:
//
//	FEATURE_TRIGGER_LESSON_COMPLETED=true
//	FEATURE_CACHE_CATALOG=false
//	FEATURE_EVENTS_REDIS_BUS=50  (percentage rollout)
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features: make(map[string]*Feature),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all known feature flags with default values.
func (ff *FeatureFlags) initializeDefaults() {
	defaults := []Feature{
		{
			Name:        FeatureTriggerLessonCompleted,
			Description: "Accept lesson-completed triggers for evaluation",
			Enabled:     true,
		},
		{
			Name:        FeatureTriggerQuizSubmitted,
			Description: "Accept quiz-submitted triggers for evaluation",
			Enabled:     true,
		},
		{
			Name:        FeatureCatalogCache,
			Description: "Serve the achievement catalog through the Redis cache",
			Enabled:     true,
		},
		{
			Name:        FeatureEarnedCache,
			Description: "Serve earned-achievement listings through the Redis cache",
			Enabled:     true,
		},
		{
			Name:        FeatureRedisEventBus,
			Description: "Fan out domain events over Redis pub/sub instead of in-process only",
			Enabled:     false,
		},
		{
			Name:        FeatureAwardWrites,
			Description: "Persist awards (disable for evaluation dry runs during maintenance)",
			Enabled:     true,
		},
	}

	for i := range defaults {
		f := defaults[i]
		ff.features[f.Name] = &f
	}
}

// loadFromEnvironment overrides defaults with environment variables.
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)

		val := os.Getenv(envKey)
		if val == "" {
			continue
		}

		// Try boolean first
		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			feature.RolloutPercent = 0
			continue
		}

		// Try percentage rollout
		if pct, err := strconv.Atoi(val); err == nil && pct >= 0 && pct <= 100 {
			feature.Enabled = pct > 0
			feature.RolloutPercent = pct
		}
	}
}

// featureNameToEnvKey converts "trigger.lesson_completed" to
// "FEATURE_TRIGGER_LESSON_COMPLETED".
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// FeatureContext carries the identity a percentage rollout buckets on.
type FeatureContext struct {
	UserID string
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(name string, fctx FeatureContext) bool {
	ff.mu.RLock()
	feature, exists := ff.features[name]
	ff.mu.RUnlock()

	if !exists {
		// Unknown features are disabled
		return false
	}

	if !feature.Enabled {
		return false
	}

	// Full rollout
	if feature.RolloutPercent == 0 || feature.RolloutPercent >= 100 {
		return true
	}

	// Percentage rollout: deterministic bucketing on user ID so the
	// same user gets a consistent answer across processes.
	if fctx.UserID == "" {
		return false
	}

	h := fnv.New32a()
	h.Write([]byte(name))
	h.Write([]byte(fctx.UserID))
	bucket := int(h.Sum32() % 100)

	return bucket < feature.RolloutPercent
}

// IsEnabledGlobal checks a flag without any user context. Flags with a
// partial rollout report false here.
func (ff *FeatureFlags) IsEnabledGlobal(name string) bool {
	return ff.IsEnabled(name, FeatureContext{})
}

// SetRolloutPercent updates the rollout percentage for a feature at runtime.
func (ff *FeatureFlags) SetRolloutPercent(name string, percent int) error {
	if percent < 0 || percent > 100 {
		return &FeatureFlagError{
			Feature: name,
			Message: fmt.Sprintf("rollout percent must be 0-100, got %d", percent),
		}
	}

	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, exists := ff.features[name]
	if !exists {
		return &FeatureFlagError{Feature: name, Message: "unknown feature"}
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// Enable turns a feature on at runtime.
func (ff *FeatureFlags) Enable(name string) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, exists := ff.features[name]
	if !exists {
		return &FeatureFlagError{Feature: name, Message: "unknown feature"}
	}

	feature.Enabled = true
	feature.RolloutPercent = 0

	return nil
}

// Disable turns a feature off at runtime.
func (ff *FeatureFlags) Disable(name string) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, exists := ff.features[name]
	if !exists {
		return &FeatureFlagError{Feature: name, Message: "unknown feature"}
	}

	feature.Enabled = false

	return nil
}

// GetAllFeatures returns a snapshot of all feature flags.
func (ff *FeatureFlags) GetAllFeatures() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		result = append(result, *f)
	}

	return result
}

// FeatureFlagError indicates a feature flag operation failed.
type FeatureFlagError struct {
	Feature string
	Message string
}

func (e *FeatureFlagError) Error() string {
	return fmt.Sprintf("feature flag %q: %s", e.Feature, e.Message)
}
