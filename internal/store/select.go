package store

import (
	"log/slog"

	"github.com/campuslink/api/internal/kv"
	"github.com/campuslink/api/internal/notify"
	"github.com/campuslink/api/pkg/config"
)

// Select chooses the backend once from configuration: the remote document
// store when both base URL and api key are present, the local mock store
// otherwise. Partial remote configuration falls back to local.
func Select(cfg config.APIConfig, kvs kv.Store, hub *notify.Hub, logger *slog.Logger) Store {
	if cfg.AtlasConfigured() {
		client := NewClient(cfg.AtlasBaseURL, cfg.AtlasAPIKey, cfg.AtlasDataSource, cfg.AtlasDatabase)
		logger.Info("using remote document store", "data_source", cfg.AtlasDataSource, "database", cfg.AtlasDatabase)
		return NewAtlas(client, hub, logger)
	}
	if cfg.AtlasBaseURL != "" || cfg.AtlasAPIKey != "" {
		logger.Warn("partial remote store configuration, falling back to local store")
	}
	return NewLocal(kvs, logger)
}
