package domain

import (
	"sort"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/habitquest/internal/catalog/domain"
)

// ResolveSettings merges the catalog with stored settings. Domains without a stored
// row are enabled with defaultTarget. Output follows catalog order.
func ResolveSettings(domains []catalogdomain.Domain, stored []DomainSetting, defaultTarget int64) []EffectiveSetting {
	byDomain := make(map[snowflake.ID]DomainSetting, len(stored))
	for _, s := range stored {
		byDomain[s.DomainID] = s
	}

	out := make([]EffectiveSetting, 0, len(domains))
	for _, d := range domains {
		eff := EffectiveSetting{
			DomainID:           d.ID,
			DomainKey:          d.Key,
			DomainName:         d.Name,
			OrderIndex:         d.OrderIndex,
			WeeklyTargetPoints: defaultTarget,
			Enabled:            true,
		}
		if s, ok := byDomain[d.ID]; ok {
			eff.WeeklyTargetPoints = s.WeeklyTargetPoints
			eff.Enabled = s.Enabled
		}
		out = append(out, eff)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].DomainID < out[j].DomainID
	})
	return out
}
