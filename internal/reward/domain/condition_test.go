package domain

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

var testOpts = CompileOptions{
	DomainKeys:       map[string]snowflake.ID{"health": 1, "money": 2, "self-care": 3},
	SavingsDomainKey: "money",
}

func TestCompile(t *testing.T) {
	cases := []struct {
		name  string
		ctype string
		value string
		want  Condition
	}{
		{"tasks", "tasks_completed", "5", Condition{Kind: ConditionTasksCompleted, Threshold: 5}},
		{"category", "tasks_completed_category:Health", "10", Condition{Kind: ConditionDomainTasksCompleted, Threshold: 10, DomainID: 1}},
		{"category slug", "tasks_completed_category:Self Care", "2", Condition{Kind: ConditionDomainTasksCompleted, Threshold: 2, DomainID: 3}},
		{"streak", "streak_days", "7", Condition{Kind: ConditionStreakDays, Threshold: 7}},
		{"domain streak", "streak_days:money", "3", Condition{Kind: ConditionStreakDays, Threshold: 3, DomainID: 2}},
		{"savings", "finance_savings_total", "500", Condition{Kind: ConditionSavingsTotal, Threshold: 500, DomainID: 2}},
		{"balance", "stats_balance", "80", Condition{Kind: ConditionStatsBalance, Threshold: 80}},
		{"level", "LEVEL_REACHED", "5", Condition{Kind: ConditionLevelReached, Threshold: 5}},
		{"dependency", "reward_dependency:Balance_80", "", Condition{Kind: ConditionRewardDependency, DependsOn: "balance_80"}},
		{"unlock reward", "unlock_reward", "first_steps", Condition{Kind: ConditionRewardDependency, DependsOn: "first_steps"}},
		{"unknown type", "moon_phase", "1", unsupported("unknown_condition_type")},
		{"bad value", "tasks_completed", "many", unsupported("invalid_condition_value")},
		{"unknown domain", "tasks_completed_category:garden", "1", unsupported("unknown_domain")},
		{"empty dependency", "reward_dependency", "", unsupported("missing_dependency")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Compile(Reward{ConditionType: tc.ctype, ConditionValue: tc.value}, testOpts)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCompileSavingsWithoutDomain(t *testing.T) {
	got := Compile(Reward{ConditionType: "finance_savings_total", ConditionValue: "1"}, CompileOptions{SavingsDomainKey: "money"})
	assert.Equal(t, ConditionUnsupported, got.Kind)
}

func TestSatisfied(t *testing.T) {
	facts := Facts{
		LogCount:      5,
		DomainCounts:  map[snowflake.ID]int64{1: 3},
		StreakDays:    7,
		DomainStreaks: map[snowflake.ID]int{2: 2},
		SavingsTotal:  499,
		Level:         5,
	}

	assert.True(t, Condition{Kind: ConditionTasksCompleted, Threshold: 5}.Satisfied(facts, nil))
	assert.False(t, Condition{Kind: ConditionTasksCompleted, Threshold: 6}.Satisfied(facts, nil))
	assert.True(t, Condition{Kind: ConditionDomainTasksCompleted, Threshold: 3, DomainID: 1}.Satisfied(facts, nil))
	assert.False(t, Condition{Kind: ConditionDomainTasksCompleted, Threshold: 1, DomainID: 2}.Satisfied(facts, nil))
	assert.True(t, Condition{Kind: ConditionStreakDays, Threshold: 7}.Satisfied(facts, nil))
	assert.False(t, Condition{Kind: ConditionStreakDays, Threshold: 3, DomainID: 2}.Satisfied(facts, nil))
	assert.False(t, Condition{Kind: ConditionSavingsTotal, Threshold: 500}.Satisfied(facts, nil))
	assert.True(t, Condition{Kind: ConditionLevelReached, Threshold: 5}.Satisfied(facts, nil))
	assert.True(t, Condition{Kind: ConditionRewardDependency, DependsOn: "a"}.Satisfied(facts, map[string]bool{"a": true}))
	assert.False(t, Condition{Kind: ConditionUnsupported}.Satisfied(facts, map[string]bool{"a": true}))
}

func TestStatsBalance(t *testing.T) {
	cond := Condition{Kind: ConditionStatsBalance, Threshold: 80}

	cases := []struct {
		name   string
		weekly []WeeklyRatio
		want   bool
	}{
		{"no domains", nil, false},
		{"all disabled", []WeeklyRatio{{DomainID: 1, Enabled: false, Target: 100, RawRatio: 1}}, false},
		{"all above", []WeeklyRatio{{DomainID: 1, Enabled: true, Target: 100, RawRatio: 0.8}, {DomainID: 2, Enabled: true, Target: 50, RawRatio: 1.6}}, true},
		{"one below", []WeeklyRatio{{DomainID: 1, Enabled: true, Target: 100, RawRatio: 0.9}, {DomainID: 2, Enabled: true, Target: 100, RawRatio: 0.79}}, false},
		{"zero target blocks", []WeeklyRatio{{DomainID: 1, Enabled: true, Target: 0, RawRatio: 0}}, false},
		{"disabled ignored", []WeeklyRatio{{DomainID: 1, Enabled: true, Target: 100, RawRatio: 0.8}, {DomainID: 2, Enabled: false}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, cond.Satisfied(Facts{Weekly: tc.weekly}, nil))
		})
	}
}
