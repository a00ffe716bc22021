package progression

import (
	"math"

	"github.com/smallbiznis/habitquest/internal/config"
)

// MaxLevel caps the level search so degenerate curves stay bounded.
const MaxLevel = math.MaxInt32

// Curve is the level threshold table: f(1) = 0 and f(n+1) = f(n) + Base + (n-1)*Step.
type Curve struct {
	Base int64
	Step int64
}

func CurveFromConfig(cfg config.ProgressionConfig) Curve {
	return Curve{Base: cfg.LevelBase, Step: cfg.LevelStep}
}

func (c Curve) normalized() (int64, int64) {
	base := c.Base
	if base < 1 {
		base = 1
	}
	step := c.Step
	if step < 0 {
		step = 0
	}
	return base, step
}

// Cost is the XP needed to go from level to level+1. It saturates at math.MaxInt64.
func (c Curve) Cost(level int) int64 {
	if level < 1 {
		level = 1
	}
	base, step := c.normalized()
	return satAdd(base, satMul(int64(level-1), step))
}

// Threshold is the cumulative XP at which level is reached. It saturates at math.MaxInt64.
func (c Curve) Threshold(level int) int64 {
	if level <= 1 {
		return 0
	}
	base, step := c.normalized()
	n := int64(level - 1)
	// n*(n-1)/2 without overflowing the intermediate product.
	var pairs int64
	if n%2 == 0 {
		pairs = satMul(n/2, n-1)
	} else {
		pairs = satMul(n, (n-1)/2)
	}
	return satAdd(satMul(n, base), satMul(pairs, step))
}

// Level returns the level for xpTotal and the threshold of that level.
func (c Curve) Level(xpTotal int64) (int, int64) {
	if xpTotal <= 0 {
		return 1, 0
	}
	// Largest level whose threshold is at most xpTotal.
	lo, hi := 1, MaxLevel
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if c.Threshold(mid) <= xpTotal {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, c.Threshold(lo)
}

func satAdd(a, b int64) int64 {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return math.MaxInt64
	case b < 0 && a < math.MinInt64-b:
		return math.MinInt64
	}
	return a + b
}

// satMul multiplies non-negative operands, saturating at math.MaxInt64.
func satMul(a, b int64) int64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}
