// Package config collects the environment-backed settings for the backend.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds runtime settings. Values come from the environment, with a
// .env file loaded at startup for local development.
type Config struct {
	// ListenAddr is the address of the local HTTP API
	ListenAddr string

	// GoogleAppFolderName is the dedicated Drive folder the app is
	// sandboxed to; created on first use if absent
	GoogleAppFolderName string

	// AutosaveDelay is the quiet period before a debounced save fires
	AutosaveDelay time.Duration

	// PollMaxAttempts and PollInterval bound the status polling for
	// asynchronous Yandex Disk operations
	PollMaxAttempts int
	PollInterval    time.Duration

	// YandexToken and GoogleToken preseed tokens for headless use; normal
	// operation registers tokens through the API after the implicit flow
	YandexToken string
	GoogleToken string
}

// Load reads configuration from the environment
func Load() Config {
	return Config{
		ListenAddr:          getEnv("CLOUDPAD_ADDR", ":8080"),
		GoogleAppFolderName: getEnv("CLOUDPAD_APP_FOLDER", "Text Editor Files"),
		AutosaveDelay:       getDuration("CLOUDPAD_AUTOSAVE_MS", 2000*time.Millisecond),
		PollMaxAttempts:     getInt("CLOUDPAD_POLL_ATTEMPTS", 10),
		PollInterval:        getDuration("CLOUDPAD_POLL_INTERVAL_MS", time.Second),
		YandexToken:         os.Getenv("YANDEX_DISK_TOKEN"),
		GoogleToken:         os.Getenv("GOOGLE_DRIVE_TOKEN"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return fallback
}
