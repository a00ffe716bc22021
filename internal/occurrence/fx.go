package occurrence

import (
	ledgerdomain "github.com/smallbiznis/habitquest/internal/ledger/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("occurrence",
	fx.Provide(func(repo ledgerdomain.Repository) *Tracker {
		return NewTracker(repo)
	}),
)
