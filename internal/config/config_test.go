package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NO_HELMET_CLASSES", "")
	t.Setenv("VOICE_COOLDOWN", "")

	cfg := Load()

	assert.Equal(t, []string{"head"}, cfg.NoHelmetClasses)
	assert.Equal(t, 5*time.Second, cfg.VoiceCooldown)
	assert.Equal(t, 0.5, cfg.DefaultThreshold)
	assert.Equal(t, "id", cfg.VoiceLanguage)
	assert.Equal(t, "xlsx", cfg.ViolationLogBackend)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("NO_HELMET_CLASSES", "head, no_helmet ,")
	t.Setenv("VOICE_COOLDOWN", "2s")
	t.Setenv("PORT", "not-a-number")
	t.Setenv("LOG_LIVE_VIOLATIONS", "false")

	cfg := Load()

	assert.Equal(t, []string{"head", "no_helmet"}, cfg.NoHelmetClasses)
	assert.Equal(t, 2*time.Second, cfg.VoiceCooldown)
	assert.Equal(t, 8000, cfg.Port)
	assert.False(t, cfg.LogLiveViolations)
}

func TestGetEnvListBlankFallsBack(t *testing.T) {
	t.Setenv("SOME_LIST", " , ,")
	assert.Equal(t, []string{"x"}, getEnvList("SOME_LIST", []string{"x"}))
}
