package utils

import (
	"errors"
	"log"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Firebase project settings. The web API key is not a secret; it only
// identifies the project to the hosted auth service.
type FirebaseConfig struct {
	APIKey      string `toml:"api_key"`
	DatabaseURL string `toml:"database_url"`
}

// Catalog API settings
type CatalogConfig struct {
	BaseURL string `toml:"base_url"`
	Limit   int    `toml:"limit"`
}

// Logging settings
type LogConfig struct {
	File string `toml:"file"`
}

// Root config
type Config struct {
	Firebase FirebaseConfig `toml:"firebase"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Log      LogConfig      `toml:"log"`
}

// Global variable to hold config
var AppConfig Config

func DefaultConfig() Config {
	return Config{
		Catalog: CatalogConfig{
			BaseURL: "https://api.jikan.moe/v4",
			Limit:   20,
		},
		Log: LogConfig{
			File: filepath.Join(ConfigDir(), "anime_tracker.log"),
		},
	}
}

// ConfigDir is where the config, the persisted session and the log live.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".anime_tracker"
	}
	return filepath.Join(home, ".config", "anime_tracker")
}

// LoadConfig reads config.toml into AppConfig. A missing file is not an
// error: defaults are written out so the user has a file to put the Firebase
// project keys into.
func LoadConfig(path string) {
	AppConfig = DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if werr := writeDefault(path); werr != nil {
			log.Printf("could not write default config: %v", werr)
		}
		return
	}
	if err != nil {
		log.Fatalf("failed to read config: %v", err)
	}

	if err := toml.Unmarshal(data, &AppConfig); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	if AppConfig.Catalog.BaseURL == "" {
		AppConfig.Catalog.BaseURL = DefaultConfig().Catalog.BaseURL
	}
	if AppConfig.Catalog.Limit <= 0 {
		AppConfig.Catalog.Limit = DefaultConfig().Catalog.Limit
	}
}

func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := toml.Marshal(AppConfig)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func Main() {
	LoadConfig(filepath.Join(ConfigDir(), "config.toml"))
}
