package app

import (
	"fmt"

	"biaslens/internal/analysis"
	"biaslens/internal/config"
	"biaslens/internal/observability"
	"biaslens/internal/storage"
	"biaslens/internal/storage/mssql"
	"biaslens/internal/storage/sqlite"
)

// OpenRepository открывает хранилище истории по storage.driver.
// Для "none" возвращает nil, nil.
func OpenRepository(cfg *config.Config, logger *observability.Logger) (storage.Repository, error) {
	switch cfg.Storage.Driver {
	case "none", "":
		return nil, nil
	case "sqlite":
		repo, err := sqlite.NewRepository(cfg.Storage.DSN, cfg.GetCommandTimeout(), logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case "mssql":
		repo, err := mssql.NewRepository(cfg.Storage.DSN, cfg.GetCommandTimeout(), logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
	return nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
}

func NewAnalyzer(cfg *config.Config, logger *observability.Logger) analysis.Analyzer {
	if cfg.Analysis.Provider == "openai" {
		return analysis.NewOpenAIAnalyzer(cfg, logger)
	}
	return analysis.NewClient(cfg, logger)
}
