package analytics

import "strings"

// RegionResolver derives the ordered candidate list of region qualifiers to
// try against INFORMATION_SCHEMA. Candidates are evaluated in order by the
// query runner; the first one that yields rows wins.
type RegionResolver struct {
	defaults []string
}

func NewRegionResolver(defaults []string) *RegionResolver {
	return &RegionResolver{defaults: defaults}
}

// Resolve never fails and never returns an empty list. The bare hint is
// always among the candidates.
func (r *RegionResolver) Resolve(hint string) []string {
	if hint == "" {
		if len(r.defaults) > 0 {
			out := make([]string, len(r.defaults))
			copy(out, r.defaults)
			return dedup(out)
		}
		return []string{"region-us", "region-US", "US", "us"}
	}

	lower := strings.ToLower(hint)
	upper := strings.ToUpper(hint)

	return dedup([]string{
		"region-" + lower,
		lower,
		"region-" + upper,
		upper,
		hint,
	})
}

func dedup(candidates []string) []string {
	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
