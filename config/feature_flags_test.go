package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_Defaults(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.True(t, ff.IsEnabledGlobal(FeatureTriggerLessonCompleted))
	assert.True(t, ff.IsEnabledGlobal(FeatureTriggerQuizSubmitted))
	assert.True(t, ff.IsEnabledGlobal(FeatureCatalogCache))
	assert.False(t, ff.IsEnabledGlobal(FeatureRedisEventBus))
}

func TestFeatureFlags_EnvOverride(t *testing.T) {
	t.Setenv("FEATURE_TRIGGER_QUIZ_SUBMITTED", "false")
	t.Setenv("FEATURE_EVENTS_REDIS_BUS", "true")

	ff := LoadFeatureFlags()
	assert.False(t, ff.IsEnabledGlobal(FeatureTriggerQuizSubmitted))
	assert.True(t, ff.IsEnabledGlobal(FeatureRedisEventBus))
}

func TestFeatureFlags_UnknownFeatureDisabled(t *testing.T) {
	ff := LoadFeatureFlags()
	assert.False(t, ff.IsEnabled("no.such.feature", FeatureContext{UserID: "u1"}))
}

func TestFeatureFlags_RolloutIsDeterministic(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureCatalogCache, 50))

	first := ff.IsEnabled(FeatureCatalogCache, FeatureContext{UserID: "u1"})
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ff.IsEnabled(FeatureCatalogCache, FeatureContext{UserID: "u1"}))
	}
}

func TestFeatureFlags_PartialRolloutWithoutUserIsOff(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureCatalogCache, 50))

	assert.False(t, ff.IsEnabled(FeatureCatalogCache, FeatureContext{}))
}

func TestFeatureFlags_EnableDisable(t *testing.T) {
	ff := LoadFeatureFlags()

	require.NoError(t, ff.Disable(FeatureTriggerLessonCompleted))
	assert.False(t, ff.IsEnabledGlobal(FeatureTriggerLessonCompleted))

	require.NoError(t, ff.Enable(FeatureTriggerLessonCompleted))
	assert.True(t, ff.IsEnabledGlobal(FeatureTriggerLessonCompleted))

	assert.Error(t, ff.Enable("no.such.feature"))
	assert.Error(t, ff.SetRolloutPercent(FeatureTriggerLessonCompleted, 150))
}
