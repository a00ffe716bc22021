package quest

import (
	"github.com/smallbiznis/habitquest/internal/quest/repository"
	"github.com/smallbiznis/habitquest/internal/quest/service"
	"go.uber.org/fx"
)

var Module = fx.Module("quest.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
