package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const Version = "1.0.0"

// KeyFileName is the per-directory configuration file written by the
// configure command. It stores the OAuth key under keys.yandex_oauth.
const KeyFileName = ".ydbackup"

type Config struct {
	ApiURL       string
	OAuthToken   string
	UserAgent    string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	PageLimit    int
	ChunkSize    int
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Warn(".env file not found, using environment variables only")
	}

	config := &Config{
		ApiURL:       getEnv("YD_API_URL", "https://cloud-api.yandex.net/v1/disk"),
		OAuthToken:   getEnv("YD_OAUTH_TOKEN", ""),
		UserAgent:    getEnv("YD_USER_AGENT", "ydbackup/"+Version),
		Timeout:      time.Duration(getEnvInt("YD_TIMEOUT", 30)) * time.Second,
		MaxRetries:   getEnvInt("YD_MAX_RETRIES", 3),
		RetryBackoff: time.Duration(getEnvInt("YD_RETRY_BACKOFF_MS", 1000)) * time.Millisecond,
		PageLimit:    getEnvInt("YD_PAGE_LIMIT", 200),
		ChunkSize:    getEnvInt("YD_CHUNK_SIZE", 32*1024),
	}

	if config.OAuthToken == "" {
		if token, err := StoredToken("."); err == nil {
			config.OAuthToken = token
		}
	}

	return config, nil
}

// StoredToken reads the OAuth key saved by the configure command from
// dir's key file. Public shares work without it.
func StoredToken(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, KeyFileName))
	if err != nil {
		return "", err
	}

	var kf keyFile
	if err := yaml.Unmarshal(data, &kf); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", KeyFileName, err)
	}
	return kf.Keys["yandex_oauth"], nil
}

// SaveToken writes the OAuth key into dir's key file, preserving any
// unrelated keys already stored there. It returns the file path.
func SaveToken(dir, token string) (string, error) {
	path := filepath.Join(dir, KeyFileName)

	raw := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return "", fmt.Errorf("failed to parse existing %s: %w", KeyFileName, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}

	keys, _ := raw["keys"].(map[string]any)
	if keys == nil {
		keys = map[string]any{}
	}
	keys["yandex_oauth"] = token
	raw["keys"] = keys

	data, err := yaml.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", KeyFileName, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	return path, nil
}

type keyFile struct {
	Keys map[string]string `yaml:"keys"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logrus.Warnf("Invalid value %q for %s, using default %d", value, key, defaultValue)
		return defaultValue
	}
	return parsed
}
