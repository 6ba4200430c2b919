// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"github.com/vespahq/uploadhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	// Remote validation and dispatch share the records platform timeout.
	timeouts.Configure(timeouts.Config{
		Medium: appCfg.RecordsTimeout,
		Long:   appCfg.RecordsTimeout,
	})
	logger.Info("operation timeouts configured",
		zap.Duration("medium", timeouts.Medium()),
		zap.Duration("long", timeouts.Long()))
	return nil
}
