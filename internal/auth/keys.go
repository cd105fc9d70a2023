// Package auth stores the planner API key in the OS keyring, with a
// file-based fallback for environments without one.
package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name for keyring storage
	KeyringService = "scrape-cli"
	// FallbackDir holds key files when the keyring is unavailable (CI, containers)
	FallbackDir = ".scrape/keys"
	// GeminiKeyName is the stored-key slot for the Gemini planner
	GeminiKeyName = "gemini"
	// GeminiEnvVar overrides any stored key when set
	GeminiEnvVar = "GEMINI_API_KEY"
)

var fileBasedStorageCache *bool

func useFileBasedStorage() bool {
	if fileBasedStorageCache != nil {
		return *fileBasedStorageCache
	}

	if os.Getenv("CODESPACES") != "" || os.Getenv("CI") != "" {
		result := true
		fileBasedStorageCache = &result
		return true
	}

	testKey := "_test_keyring_access_"
	err := keyring.Set(KeyringService, testKey, "test")
	result := (err != nil)
	fileBasedStorageCache = &result

	if !result {
		keyring.Delete(KeyringService, testKey)
	}

	return result
}

func keyDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, FallbackDir)
	return dir, os.MkdirAll(dir, 0700)
}

func keyPath(name string) (string, error) {
	dir, err := keyDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+".key"), nil
}

// SaveKey stores an API key under name.
func SaveKey(name, value string) error {
	if name == "" {
		return fmt.Errorf("key name cannot be empty")
	}
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("key value cannot be empty")
	}

	if useFileBasedStorage() {
		path, err := keyPath(name)
		if err != nil {
			return fmt.Errorf("failed to get key path: %w", err)
		}
		if err := os.WriteFile(path, []byte(value), 0600); err != nil {
			return fmt.Errorf("failed to save key file: %w", err)
		}
		return nil
	}

	if err := keyring.Set(KeyringService, name, value); err != nil {
		return fmt.Errorf("failed to save to keyring: %w", err)
	}
	return nil
}

// LoadKey retrieves an API key by name.
func LoadKey(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("key name cannot be empty")
	}

	if useFileBasedStorage() {
		path, err := keyPath(name)
		if err != nil {
			return "", fmt.Errorf("failed to get key path: %w", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to load key file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	value, err := keyring.Get(KeyringService, name)
	if err != nil {
		return "", fmt.Errorf("failed to load from keyring: %w", err)
	}
	return value, nil
}

// DeleteKey removes a stored API key.
func DeleteKey(name string) error {
	if name == "" {
		return fmt.Errorf("key name cannot be empty")
	}

	if useFileBasedStorage() {
		path, err := keyPath(name)
		if err != nil {
			return fmt.Errorf("failed to get key path: %w", err)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete key file: %w", err)
		}
		return nil
	}

	if err := keyring.Delete(KeyringService, name); err != nil {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

// GeminiAPIKey resolves the planner key: environment first, then stored key.
func GeminiAPIKey() (string, error) {
	if v := os.Getenv(GeminiEnvVar); v != "" {
		return v, nil
	}
	key, err := LoadKey(GeminiKeyName)
	if err != nil {
		return "", fmt.Errorf("no API key: set %s or run 'scrape keys set'", GeminiEnvVar)
	}
	return key, nil
}
