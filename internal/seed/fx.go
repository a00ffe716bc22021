package seed

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/habitquest/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module must be registered after the migration module so the tables exist.
var Module = fx.Module("seed",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node, log *zap.Logger) error {
		if !cfg.SeedCatalog {
			return nil
		}
		if err := EnsureCatalog(conn, node); err != nil {
			return err
		}
		log.Named("seed").Info("catalog ready")
		return nil
	}),
)
