package progression

import "go.uber.org/fx"

var Module = fx.Module("progression",
	fx.Provide(NewCalculator),
)
