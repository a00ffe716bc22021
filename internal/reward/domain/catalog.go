package domain

import (
	"sort"

	"github.com/bwmarrin/snowflake"
)

type CompiledReward struct {
	Reward    Reward
	Condition Condition
}

// Catalog is the compiled reward set with its dependency graph validated.
type Catalog struct {
	rewards []CompiledReward
	byKey   map[string]int
}

// BuildCatalog compiles every reward. Dependencies on unknown keys and
// dependency cycles compile to Unsupported.
func BuildCatalog(rewards []Reward, opts CompileOptions) *Catalog {
	sorted := make([]Reward, len(rewards))
	copy(sorted, rewards)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	c := &Catalog{
		rewards: make([]CompiledReward, 0, len(sorted)),
		byKey:   make(map[string]int, len(sorted)),
	}
	for i, r := range sorted {
		c.rewards = append(c.rewards, CompiledReward{Reward: r, Condition: Compile(r, opts)})
		c.byKey[NormalizeKey(r.Key)] = i
	}

	for i := range c.rewards {
		cond := &c.rewards[i].Condition
		if cond.Kind != ConditionRewardDependency {
			continue
		}
		if _, ok := c.byKey[cond.DependsOn]; !ok {
			*cond = unsupported("unknown_dependency")
		}
	}
	for _, i := range c.cycleMembers() {
		c.rewards[i].Condition = unsupported("dependency_cycle")
	}
	return c
}

// cycleMembers returns the indexes of rewards on a dependency cycle. Each
// reward has at most one outgoing edge, so following edges suffices.
func (c *Catalog) cycleMembers() []int {
	const (
		unvisited = iota
		active
		done
	)
	state := make([]int, len(c.rewards))
	var members []int

	for start := range c.rewards {
		if state[start] != unvisited {
			continue
		}
		var path []int
		i := start
		for {
			if state[i] == active {
				// i closes a cycle; everything on the path from i onwards is in it.
				for k := len(path) - 1; k >= 0; k-- {
					members = append(members, path[k])
					if path[k] == i {
						break
					}
				}
				break
			}
			if state[i] == done {
				break
			}
			state[i] = active
			path = append(path, i)

			cond := c.rewards[i].Condition
			if cond.Kind != ConditionRewardDependency {
				break
			}
			i = c.byKey[cond.DependsOn]
		}
		for _, p := range path {
			state[p] = done
		}
	}
	sort.Ints(members)
	return members
}

func (c *Catalog) Rewards() []CompiledReward {
	return c.rewards
}

func (c *Catalog) Len() int {
	return len(c.rewards)
}

// Evaluate returns the rewards that become unlocked given facts, in unlock
// order. Passes run in id order until one unlocks nothing; a reward whose
// dependency unlocked earlier in the same evaluation fires too.
func (c *Catalog) Evaluate(f Facts, unlockedIDs map[snowflake.ID]bool) []CompiledReward {
	unlockedKeys := make(map[string]bool, len(unlockedIDs))
	done := make(map[snowflake.ID]bool, len(unlockedIDs))
	for _, r := range c.rewards {
		if unlockedIDs[r.Reward.ID] {
			unlockedKeys[NormalizeKey(r.Reward.Key)] = true
			done[r.Reward.ID] = true
		}
	}

	var out []CompiledReward
	for pass := 0; pass < len(c.rewards); pass++ {
		progressed := false
		for _, r := range c.rewards {
			if done[r.Reward.ID] {
				continue
			}
			if !r.Condition.Satisfied(f, unlockedKeys) {
				continue
			}
			done[r.Reward.ID] = true
			unlockedKeys[NormalizeKey(r.Reward.Key)] = true
			out = append(out, r)
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return out
}
