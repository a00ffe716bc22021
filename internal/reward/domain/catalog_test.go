package domain

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reward(id snowflake.ID, key, ctype, value string) Reward {
	return Reward{ID: id, Key: key, Type: TypeBadge, ConditionType: ctype, ConditionValue: value}
}

func keysOf(items []CompiledReward) []string {
	out := make([]string, 0, len(items))
	for _, r := range items {
		out = append(out, r.Reward.Key)
	}
	return out
}

func TestBuildCatalogRejectsBrokenDependencies(t *testing.T) {
	catalog := BuildCatalog([]Reward{
		reward(1, "a", "reward_dependency:b", ""),
		reward(2, "b", "reward_dependency:c", ""),
		reward(3, "c", "reward_dependency:a", ""),
		reward(4, "d", "reward_dependency:ghost", ""),
		reward(5, "e", "reward_dependency:a", ""),
		reward(6, "self", "reward_dependency:self", ""),
		reward(7, "ok", "tasks_completed", "1"),
	}, testOpts)

	byKey := map[string]Condition{}
	for _, r := range catalog.Rewards() {
		byKey[r.Reward.Key] = r.Condition
	}
	for _, key := range []string{"a", "b", "c", "self"} {
		assert.Equal(t, "dependency_cycle", byKey[key].Reason, key)
	}
	assert.Equal(t, "unknown_dependency", byKey["d"].Reason)
	// e points into the cycle but is not on it.
	assert.Equal(t, ConditionRewardDependency, byKey["e"].Kind)
	assert.Equal(t, ConditionTasksCompleted, byKey["ok"].Kind)
	assert.Equal(t, 7, catalog.Len())
}

func TestEvaluateReachesFixedPoint(t *testing.T) {
	// Dependents sort before their targets so one pass is not enough.
	catalog := BuildCatalog([]Reward{
		reward(1, "aura", "reward_dependency:balance_80", ""),
		reward(2, "crown", "reward_dependency:aura", ""),
		reward(3, "balance_80", "stats_balance", "80"),
		reward(4, "level_ten", "level_reached", "10"),
	}, testOpts)

	facts := Facts{Weekly: []WeeklyRatio{{DomainID: 1, Enabled: true, Target: 100, RawRatio: 0.85}}, Level: 2}
	got := catalog.Evaluate(facts, nil)
	assert.Equal(t, []string{"balance_80", "aura", "crown"}, keysOf(got))

	again := catalog.Evaluate(facts, map[snowflake.ID]bool{1: true, 2: true, 3: true})
	assert.Empty(t, again)
}

func TestEvaluateHonorsEarlierUnlocks(t *testing.T) {
	catalog := BuildCatalog([]Reward{
		reward(1, "first_steps", "tasks_completed", "5"),
		reward(2, "next", "reward_dependency:first_steps", ""),
	}, testOpts)

	got := catalog.Evaluate(Facts{LogCount: 0}, map[snowflake.ID]bool{1: true})
	require.Len(t, got, 1)
	assert.Equal(t, "next", got[0].Reward.Key)
}

func TestCosmeticItem(t *testing.T) {
	r := Reward{Type: TypeCosmetic, RewardData: map[string]any{"item": "aura_zen"}}
	assert.Equal(t, "aura_zen", r.CosmeticItem())

	r = Reward{Type: TypeCosmetic, RewardData: map[string]any{"item_key": "frame_gold"}}
	assert.Equal(t, "frame_gold", r.CosmeticItem())

	r = Reward{Type: TypeBadge, RewardData: map[string]any{"item": "aura_zen"}}
	assert.Empty(t, r.CosmeticItem())
}
