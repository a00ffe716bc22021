package progression

import (
	"math"
	"testing"
	"time"

	"github.com/smallbiznis/habitquest/internal/config"
	ledgerdomain "github.com/smallbiznis/habitquest/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
)

func TestCurveThresholds(t *testing.T) {
	curve := CurveFromConfig(config.DefaultProgressionConfig())

	assert.Equal(t, int64(100), curve.Cost(1))
	assert.Equal(t, int64(125), curve.Cost(2))
	assert.Equal(t, int64(0), curve.Threshold(1))
	assert.Equal(t, int64(100), curve.Threshold(2))
	assert.Equal(t, int64(225), curve.Threshold(3))
	assert.Equal(t, int64(375), curve.Threshold(4))
}

func TestCurveLevel(t *testing.T) {
	curve := Curve{Base: 100, Step: 25}

	cases := []struct {
		xp    int64
		level int
		floor int64
	}{
		{0, 1, 0},
		{99, 1, 0},
		{100, 2, 100},
		{224, 2, 100},
		{225, 3, 225},
		{375, 4, 375},
	}
	for _, tc := range cases {
		level, floor := curve.Level(tc.xp)
		assert.Equal(t, tc.level, level, "xp %d", tc.xp)
		assert.Equal(t, tc.floor, floor, "xp %d", tc.xp)
	}
}

func TestCurveFlatWhenStepIsZero(t *testing.T) {
	curve := Curve{Base: 50}
	level, floor := curve.Level(260)
	assert.Equal(t, 6, level)
	assert.Equal(t, int64(250), floor)
}

func TestCurveLevelTerminatesOnHugeTotals(t *testing.T) {
	for _, curve := range []Curve{{Base: 100, Step: 25}, {Base: 1}, {Base: math.MaxInt64, Step: math.MaxInt64}} {
		level, floor := curve.Level(math.MaxInt64)
		assert.GreaterOrEqual(t, level, 1)
		assert.LessOrEqual(t, level, MaxLevel)
		assert.LessOrEqual(t, floor, int64(math.MaxInt64))
		assert.Equal(t, curve.Threshold(level), floor)
	}

	curve := Curve{Base: 100, Step: 25}
	assert.Equal(t, int64(math.MaxInt64), curve.Threshold(MaxLevel))
	assert.Equal(t, int64(math.MaxInt64), Curve{Base: math.MaxInt64, Step: 1}.Cost(2))
}

func TestAccumulatorSaturates(t *testing.T) {
	acc := NewAccumulator(Curve{Base: 100, Step: 25}, nil)
	at := time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC)
	acc.Add(ledgerdomain.Activity{DomainID: 1, OccurredAt: at, XPAwarded: math.MaxInt64, Points: math.MaxInt64})
	acc.Add(ledgerdomain.Activity{DomainID: 1, OccurredAt: at, XPAwarded: 10, Points: 10})

	state := acc.State(at)
	assert.Equal(t, int64(math.MaxInt64), state.XPTotal)
	assert.Equal(t, int64(math.MaxInt64), state.PointsTotal)
	assert.GreaterOrEqual(t, state.XPToNext, int64(0))
}
