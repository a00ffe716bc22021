package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	catalogdomain "github.com/smallbiznis/habitquest/internal/catalog/domain"
	ledgerdomain "github.com/smallbiznis/habitquest/internal/ledger/domain"
	profiledomain "github.com/smallbiznis/habitquest/internal/profile/domain"
	questdomain "github.com/smallbiznis/habitquest/internal/quest/domain"
	rewarddomain "github.com/smallbiznis/habitquest/internal/reward/domain"
	snapshotdomain "github.com/smallbiznis/habitquest/internal/snapshot/domain"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "migrations"

// RunMigrations applies the versioned Postgres schema. The append-only
// trigger on completion_logs only exists on this path.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists every persisted type in dependency order.
func Models() []any {
	return []any{
		&catalogdomain.Domain{},
		&catalogdomain.TaskTemplate{},
		&profiledomain.Profile{},
		&profiledomain.DomainSetting{},
		&questdomain.Quest{},
		&ledgerdomain.CompletionLog{},
		&snapshotdomain.Snapshot{},
		&snapshotdomain.RebuildRequest{},
		&rewarddomain.Reward{},
		&rewarddomain.RewardUnlock{},
		&rewarddomain.UserCosmetic{},
	}
}

// AutoMigrate derives the schema from the gorm models. Used for sqlite, mysql and tests.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
