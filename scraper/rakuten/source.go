package rakuten

import (
	"context"

	"rankwatch/config"
	"rankwatch/models"
	"rankwatch/utils"
)

// Source returns raw ranking rows, page by page.
type Source interface {
	Fetch(ctx context.Context, pages int) ([]*models.RawItem, error)
}

// NewSource picks the API client when an application id is configured and
// the headless browser otherwise.
func NewSource(cfg *config.Config, logger *utils.Logger) Source {
	if cfg.RakutenAppID != "" {
		return NewAPIClient(cfg, logger)
	}
	logger.Warn("[rakuten] APP_ID not set — falling back to the public ranking page")
	return NewBrowserClient(cfg, logger)
}
