package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bedimand/atendimento-acessivel/internal/appointment"
	"github.com/bedimand/atendimento-acessivel/internal/catalog"
)

// LoadCatalog applies the deployment's stored slot overrides to base. The
// result is built once at startup and shared read-only.
func LoadCatalog(ctx context.Context, repo appointment.Repository, base *catalog.Catalog, logger *zap.Logger) (*catalog.Catalog, error) {
	capacity, quotas, err := repo.LoadSlotOverrides(ctx)
	if err != nil {
		return nil, fmt.Errorf("load slot overrides: %w", err)
	}
	if len(capacity) == 0 && len(quotas) == 0 {
		return base, nil
	}

	logger.Info("applying slot overrides",
		zap.Int("capacity_overrides", len(capacity)),
		zap.Int("resource_overrides", len(quotas)),
	)
	return base.WithOverrides(capacity, quotas), nil
}
