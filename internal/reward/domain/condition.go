package domain

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/habitquest/internal/catalog/domain"
)

type ConditionKind string

const (
	ConditionTasksCompleted       ConditionKind = "tasks_completed"
	ConditionDomainTasksCompleted ConditionKind = "tasks_completed_category"
	ConditionStreakDays           ConditionKind = "streak_days"
	ConditionSavingsTotal         ConditionKind = "finance_savings_total"
	ConditionStatsBalance         ConditionKind = "stats_balance"
	ConditionLevelReached         ConditionKind = "level_reached"
	ConditionRewardDependency     ConditionKind = "reward_dependency"
	ConditionUnsupported          ConditionKind = "unsupported"
)

// Condition is a compiled condition_type/condition_value pair.
type Condition struct {
	Kind      ConditionKind
	Threshold int64
	// DomainID scopes count and streak conditions; zero means all domains.
	DomainID  snowflake.ID
	DependsOn string
	Reason    string
}

// Facts are the aggregates a condition is tested against.
type Facts struct {
	LogCount      int64
	DomainCounts  map[snowflake.ID]int64
	StreakDays    int
	DomainStreaks map[snowflake.ID]int
	SavingsTotal  int64
	Level         int
	Weekly        []WeeklyRatio
}

type WeeklyRatio struct {
	DomainID snowflake.ID
	Enabled  bool
	Target   int64
	RawRatio float64
}

type CompileOptions struct {
	// DomainKeys maps normalized domain keys to ids.
	DomainKeys       map[string]snowflake.ID
	SavingsDomainKey string
}

func unsupported(reason string) Condition {
	return Condition{Kind: ConditionUnsupported, Reason: reason}
}

// Compile resolves a reward's condition once per catalog load.
func Compile(r Reward, opts CompileOptions) Condition {
	base, qualifier, _ := strings.Cut(strings.TrimSpace(r.ConditionType), ":")
	base = strings.ToLower(strings.TrimSpace(base))
	qualifier = strings.TrimSpace(qualifier)
	value := strings.TrimSpace(r.ConditionValue)

	switch ConditionKind(base) {
	case ConditionRewardDependency:
		if qualifier == "" {
			qualifier = value
		}
		return dependency(qualifier)
	case "unlock_reward":
		if value == "" {
			value = qualifier
		}
		return dependency(value)
	}

	threshold, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return unsupported("invalid_condition_value")
	}

	switch ConditionKind(base) {
	case ConditionTasksCompleted:
		return Condition{Kind: ConditionTasksCompleted, Threshold: threshold}
	case ConditionDomainTasksCompleted:
		key := qualifier
		if key == "" {
			key = dataString(r, "domain", "domain_key")
		}
		id, ok := resolveDomain(key, opts)
		if !ok {
			return unsupported("unknown_domain")
		}
		return Condition{Kind: ConditionDomainTasksCompleted, Threshold: threshold, DomainID: id}
	case ConditionStreakDays:
		if qualifier == "" {
			return Condition{Kind: ConditionStreakDays, Threshold: threshold}
		}
		id, ok := resolveDomain(qualifier, opts)
		if !ok {
			return unsupported("unknown_domain")
		}
		return Condition{Kind: ConditionStreakDays, Threshold: threshold, DomainID: id}
	case ConditionSavingsTotal:
		id, ok := resolveDomain(opts.SavingsDomainKey, opts)
		if !ok {
			return unsupported("unknown_savings_domain")
		}
		return Condition{Kind: ConditionSavingsTotal, Threshold: threshold, DomainID: id}
	case ConditionStatsBalance:
		return Condition{Kind: ConditionStatsBalance, Threshold: threshold}
	case ConditionLevelReached:
		return Condition{Kind: ConditionLevelReached, Threshold: threshold}
	default:
		return unsupported("unknown_condition_type")
	}
}

func dependency(key string) Condition {
	key = NormalizeKey(key)
	if key == "" {
		return unsupported("missing_dependency")
	}
	return Condition{Kind: ConditionRewardDependency, DependsOn: key}
}

func resolveDomain(raw string, opts CompileOptions) (snowflake.ID, bool) {
	key := catalogdomain.NormalizeKey(raw)
	if key == "" {
		return 0, false
	}
	id, ok := opts.DomainKeys[key]
	return id, ok
}

func dataString(r Reward, fields ...string) string {
	for _, f := range fields {
		if v, ok := r.RewardData[f].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// NormalizeKey is the comparison form of reward keys.
func NormalizeKey(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Satisfied tests the condition. unlocked holds the normalized keys already
// unlocked for the user, including those unlocked earlier in the same evaluation.
func (c Condition) Satisfied(f Facts, unlocked map[string]bool) bool {
	switch c.Kind {
	case ConditionTasksCompleted:
		return f.LogCount >= c.Threshold
	case ConditionDomainTasksCompleted:
		return f.DomainCounts[c.DomainID] >= c.Threshold
	case ConditionStreakDays:
		if c.DomainID != 0 {
			return int64(f.DomainStreaks[c.DomainID]) >= c.Threshold
		}
		return int64(f.StreakDays) >= c.Threshold
	case ConditionSavingsTotal:
		return f.SavingsTotal >= c.Threshold
	case ConditionStatsBalance:
		return balanced(f.Weekly, c.Threshold)
	case ConditionLevelReached:
		return int64(f.Level) >= c.Threshold
	case ConditionRewardDependency:
		return unlocked[c.DependsOn]
	default:
		return false
	}
}

// balanced requires at least one enabled domain, each with a positive target
// and a raw weekly ratio of at least percent/100.
func balanced(weekly []WeeklyRatio, percent int64) bool {
	want := float64(percent) / 100
	enabled := 0
	for _, w := range weekly {
		if !w.Enabled {
			continue
		}
		enabled++
		if w.Target <= 0 || w.RawRatio < want {
			return false
		}
	}
	return enabled > 0
}
