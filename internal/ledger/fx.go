package ledger

import (
	"github.com/smallbiznis/habitquest/internal/ledger/repository"
	"github.com/smallbiznis/habitquest/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
