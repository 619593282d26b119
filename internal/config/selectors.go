package config

import (
	"fmt"
	"os"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"

	"biaslens/internal/extract"
)

// LoadSelectors загружает список селекторов из YAML файла
func LoadSelectors(filePath string) (*extract.Selectors, error) {
	if filePath == "" {
		return nil, fmt.Errorf("selectors file path is empty")
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open selectors file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close selectors file: %v\n", closeErr)
		}
	}()

	var selectors extract.Selectors
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&selectors); err != nil {
		return nil, fmt.Errorf("failed to parse selectors YAML: %w", err)
	}

	if err := validateSelectors(&selectors); err != nil {
		return nil, err
	}

	return &selectors, nil
}

// Selectors возвращает список селекторов из файла или встроенный, если файл
// не задан.
func (c *Config) Selectors() (*extract.Selectors, error) {
	if c.SelectorsFile == "" {
		return extract.DefaultSelectors(), nil
	}
	return LoadSelectors(c.SelectorsFile)
}

// validateSelectors отклоняет пустой список и селекторы, которые cascadia не компилирует
func validateSelectors(s *extract.Selectors) error {
	if len(s.Article) == 0 {
		return fmt.Errorf("article selectors are required")
	}
	for _, group := range [][]string{s.Article, s.Fallback} {
		for _, sel := range group {
			if _, err := cascadia.Compile(sel); err != nil {
				return fmt.Errorf("invalid selector %q: %w", sel, err)
			}
		}
	}
	return nil
}
