package main

import (
	_ "time/tzdata"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/habitquest/internal/catalog"
	"github.com/smallbiznis/habitquest/internal/clock"
	"github.com/smallbiznis/habitquest/internal/config"
	"github.com/smallbiznis/habitquest/internal/engine"
	"github.com/smallbiznis/habitquest/internal/ledger"
	"github.com/smallbiznis/habitquest/internal/lock"
	"github.com/smallbiznis/habitquest/internal/migration"
	"github.com/smallbiznis/habitquest/internal/observability"
	"github.com/smallbiznis/habitquest/internal/occurrence"
	"github.com/smallbiznis/habitquest/internal/profile"
	"github.com/smallbiznis/habitquest/internal/progression"
	"github.com/smallbiznis/habitquest/internal/quest"
	"github.com/smallbiznis/habitquest/internal/reward"
	"github.com/smallbiznis/habitquest/internal/seed"
	"github.com/smallbiznis/habitquest/internal/server"
	"github.com/smallbiznis/habitquest/internal/snapshot"
	snapshotworker "github.com/smallbiznis/habitquest/internal/snapshot/worker"
	"github.com/smallbiznis/habitquest/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		seed.Module,
		clock.Module,
		lock.Module,

		// Functional Domains
		catalog.Module,
		profile.Module,
		quest.Module,
		ledger.Module,
		occurrence.Module,
		progression.Module,
		snapshot.Module,
		snapshotworker.Module,
		reward.Module,
		engine.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
