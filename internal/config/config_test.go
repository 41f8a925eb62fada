package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"CLOUDPAD_ADDR", "CLOUDPAD_APP_FOLDER", "CLOUDPAD_AUTOSAVE_MS", "CLOUDPAD_POLL_ATTEMPTS", "CLOUDPAD_POLL_INTERVAL_MS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "Text Editor Files", cfg.GoogleAppFolderName)
	assert.Equal(t, 2*time.Second, cfg.AutosaveDelay)
	assert.Equal(t, 10, cfg.PollMaxAttempts)
	assert.Equal(t, time.Second, cfg.PollInterval)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CLOUDPAD_ADDR", ":9090")
	t.Setenv("CLOUDPAD_APP_FOLDER", "Scratch")
	t.Setenv("CLOUDPAD_AUTOSAVE_MS", "500")
	t.Setenv("CLOUDPAD_POLL_ATTEMPTS", "3")
	t.Setenv("CLOUDPAD_POLL_INTERVAL_MS", "250")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "Scratch", cfg.GoogleAppFolderName)
	assert.Equal(t, 500*time.Millisecond, cfg.AutosaveDelay)
	assert.Equal(t, 3, cfg.PollMaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("CLOUDPAD_AUTOSAVE_MS", "not-a-number")
	t.Setenv("CLOUDPAD_POLL_ATTEMPTS", "-5")

	cfg := Load()
	assert.Equal(t, 2*time.Second, cfg.AutosaveDelay)
	assert.Equal(t, 10, cfg.PollMaxAttempts)
}
