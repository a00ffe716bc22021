package progression

import (
	"math/rand"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/habitquest/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreaks(t *testing.T) {
	today := int64(20000)
	set := func(days ...int64) map[int64]struct{} {
		out := make(map[int64]struct{}, len(days))
		for _, d := range days {
			out[d] = struct{}{}
		}
		return out
	}

	cases := []struct {
		name    string
		days    map[int64]struct{}
		current int
		best    int
	}{
		{"empty", set(), 0, 0},
		{"today only", set(today), 1, 1},
		{"ends yesterday", set(today-3, today-2, today-1), 3, 3},
		{"broken two days ago", set(today - 2), 0, 1},
		{"gap keeps best", set(today, today-1, today-5, today-6, today-7, today-8), 2, 4},
		{"future ignored", set(today, today+1, today+2, today+3), 1, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			current, best := streaks(tc.days, today)
			assert.Equal(t, tc.current, current)
			assert.Equal(t, tc.best, best)
		})
	}
}

func TestLocalDayFollowsZone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	at := time.Date(2026, 10, 14, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, localDay(at, time.UTC)+1, localDay(at, tokyo))
}

func TestAccumulatorIsOrderIndependent(t *testing.T) {
	health := snowflake.ID(1)
	money := snowflake.ID(2)
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	var activity []ledgerdomain.Activity
	for i := 0; i < 14; i++ {
		domainID := health
		if i%3 == 0 {
			domainID = money
		}
		activity = append(activity, ledgerdomain.Activity{
			OccurredAt: base.AddDate(0, 0, i),
			DomainID:   domainID,
			XPAwarded:  int64(10 + i),
			Points:     int64(5 + i),
		})
	}
	asOf := base.AddDate(0, 0, 13)

	fold := func(items []ledgerdomain.Activity) State {
		acc := NewAccumulator(Curve{Base: 100, Step: 25}, time.UTC)
		for _, a := range items {
			acc.Add(a)
		}
		return acc.State(asOf)
	}

	want := fold(activity)
	shuffled := append([]ledgerdomain.Activity(nil), activity...)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	assert.Equal(t, want, fold(shuffled))

	assert.Equal(t, int64(14), want.LogCount)
	assert.Equal(t, 14, want.StreakDays)
	assert.Equal(t, int64(5), want.Domain(money).LogCount)
	assert.Equal(t, int64(9), want.Domain(health).LogCount)
	assert.Equal(t, want.XPTotal, want.Domain(money).XPTotal+want.Domain(health).XPTotal)
}

func TestAccumulatorLevelFields(t *testing.T) {
	acc := NewAccumulator(Curve{Base: 100, Step: 25}, time.UTC)
	at := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	acc.Add(ledgerdomain.Activity{OccurredAt: at, DomainID: 1, XPAwarded: 130, Points: 40})

	state := acc.State(at)
	assert.Equal(t, 2, state.Level)
	assert.Equal(t, int64(30), state.XPIntoLevel)
	assert.Equal(t, int64(125), state.XPForLevel)
	assert.Equal(t, int64(95), state.XPToNext)
	assert.Equal(t, int64(40), state.PointsTotal)
}

func TestBackfillExtendsStreak(t *testing.T) {
	acc := NewAccumulator(Curve{Base: 100, Step: 25}, time.UTC)
	today := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	acc.Add(ledgerdomain.Activity{OccurredAt: today, DomainID: 1, XPAwarded: 10})
	acc.Add(ledgerdomain.Activity{OccurredAt: today.AddDate(0, 0, -2), DomainID: 1, XPAwarded: 10})
	assert.Equal(t, 1, acc.State(today).StreakDays)

	acc.Add(ledgerdomain.Activity{OccurredAt: today.AddDate(0, 0, -1), DomainID: 1, XPAwarded: 10})
	assert.Equal(t, 3, acc.State(today).StreakDays)
}
