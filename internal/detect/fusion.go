package detect

import (
	"sort"
	"strings"
)

// fusedCap bounds fused confidence; no amount of agreeing heuristics
// makes a detection certain.
const fusedCap = 0.95

// multiSourceBonus rewards a technology seen by more than one heuristic.
const multiSourceBonus = 0.05

// Ranked is one technology after fusion.
type Ranked struct {
	Name       string
	Confidence float64
	Source     Source // source of the first detection encountered
	Version    string
	Context    string
}

// Fuse groups detections by name and reduces each group to a single
// ranked entry: the group's best confidence, plus a bonus when more than
// one distinct source agrees, capped at fusedCap. Contexts are joined
// with "; ". The result is sorted by descending confidence, name as the
// tie break.
func Fuse(detections []Detection) []Ranked {
	order := make([]string, 0)
	groups := make(map[string][]Detection)
	for _, d := range detections {
		if _, seen := groups[d.Name]; !seen {
			order = append(order, d.Name)
		}
		groups[d.Name] = append(groups[d.Name], d)
	}

	ranked := make([]Ranked, 0, len(groups))
	for _, name := range order {
		group := groups[name]

		best := 0.0
		sources := make(map[Source]bool)
		version := ""
		var contexts []string
		for _, d := range group {
			if d.Confidence > best {
				best = d.Confidence
			}
			sources[d.Source] = true
			if version == "" {
				version = d.Version
			}
			if d.Context != "" {
				contexts = append(contexts, d.Context)
			}
		}

		fused := best
		if len(sources) > 1 {
			fused += multiSourceBonus
		}
		if fused > fusedCap {
			fused = fusedCap
		}

		ranked = append(ranked, Ranked{
			Name:       name,
			Confidence: fused,
			Source:     group[0].Source,
			Version:    version,
			Context:    strings.Join(contexts, "; "),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].Name < ranked[j].Name
	})
	return ranked
}

// Filter keeps the ranked entries at or above threshold.
func Filter(ranked []Ranked, threshold float64) []Ranked {
	var out []Ranked
	for _, r := range ranked {
		if r.Confidence >= threshold {
			out = append(out, r)
		}
	}
	return out
}
