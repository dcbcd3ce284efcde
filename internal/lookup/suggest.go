package lookup

import (
	"regexp"
	"sort"
	"strings"
)

var tokenSep = regexp.MustCompile(`[_\s]+`)

// Suggest returns up to max names from available that look like target,
// best first. Exact matches score 1, substring matches 0.8, and otherwise
// the overlap of underscore/space separated tokens; anything at or below
// 0.2 is dropped. Ties keep the order of available.
func Suggest(target string, available []string, max int) []string {
	type scored struct {
		name  string
		score float64
	}
	var hits []scored
	for _, name := range available {
		if s := similarity(target, name); s > 0.2 {
			hits = append(hits, scored{name, s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if len(hits) > max {
		hits = hits[:max]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.name
	}
	return out
}

func similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 1
	}
	if strings.Contains(b, a) || strings.Contains(a, b) {
		return 0.8
	}

	at := tokenSet(a)
	bt := tokenSet(b)
	union := len(at)
	common := 0
	for t := range bt {
		if at[t] {
			common++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(common) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range tokenSep.Split(s, -1) {
		set[t] = true
	}
	return set
}
