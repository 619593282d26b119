package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Переменные окружения, перекрывающие файл.
const (
	EnvAPIURL     = "BIASLENS_API_URL"
	EnvAPIKey     = "BIASLENS_API_KEY"
	EnvStorageDSN = "BIASLENS_STORAGE_DSN"
	EnvOpenAIKey  = "OPENAI_API_KEY"
)

// LoadConfig читает .env (если есть), затем YAML-файл поверх Default(),
// затем переменные окружения. Пустой filePath - без файла.
func LoadConfig(filePath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if filePath != "" {
		if err := decodeFile(filePath, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return cfg, nil
}

func decodeFile(filePath string, cfg *Config) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("Warning: failed to close config file: %v", closeErr)
		}
	}()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.Analysis.BaseURL = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.Analysis.APIKey = v
	}
	if v := os.Getenv(EnvStorageDSN); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv(EnvOpenAIKey); v != "" && c.Analysis.OpenAI.APIKey == "" {
		c.Analysis.OpenAI.APIKey = v
	}
}
