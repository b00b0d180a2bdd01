package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Read("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "gemini-2.5-flash", cfg.AI.Model)
	assert.Equal(t, 45, cfg.AI.TimeoutSeconds)
	assert.Equal(t, 2, cfg.AI.Retries)
	assert.Equal(t, 8, cfg.Triage.MaxQuestions)
	assert.InDelta(t, 0.70, cfg.Triage.ConfidenceThreshold, 1e-9)
	assert.Equal(t, 5, cfg.Triage.ActiveConditions)
	assert.Equal(t, 12000, cfg.Doctors.SearchRadiusMeters)
}

func TestRead_LegacyEnvAndFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := []byte("triage:\n  max_questions: 6\ndoctors:\n  search_radius_meters: 90000\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	t.Setenv("GEMINI_API_KEY", "legacy-key")
	t.Setenv("HEALTHSYNC_AI_MODEL", "gemini-test")
	t.Setenv("DOCTOR_CHAT_ID", "4242")

	cfg, err := Read(dir)
	require.NoError(t, err)

	assert.Equal(t, "legacy-key", cfg.AI.APIKey)
	assert.Equal(t, "gemini-test", cfg.AI.Model)
	assert.Equal(t, int64(4242), cfg.Telegram.ChatID)
	assert.Equal(t, 6, cfg.Triage.MaxQuestions)
	assert.Equal(t, 50000, cfg.Doctors.SearchRadiusMeters)
}

func TestValidate_RejectsBadThreshold(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HEALTHSYNC_TRIAGE_CONFIDENCE_THRESHOLD", "1.5")

	_, err := Read("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confidence_threshold")
}
