package selection

import (
	"slices"

	"github.com/ekisa-team/polyglot/internal/catalog"
)

// Availability answers whether a backend id is usable.
type Availability interface {
	Has(id string) bool
}

// Rank returns up to MaxCandidates available ids whose tags intersect the
// category targets, best first. Casual and dynamic favor speed, every other
// category favors quality; ties keep catalog order.
func Rank(cat *catalog.Catalog, available Availability, c Category) []string {
	targets := Tags(c)

	var candidates []catalog.Descriptor
	for _, d := range cat.List() {
		if d.HasAnyTag(targets) && available.Has(d.ID) {
			candidates = append(candidates, d)
		}
	}

	key := func(d catalog.Descriptor) int { return d.QualityRating }
	if prefersSpeed(c) {
		key = func(d catalog.Descriptor) int { return d.SpeedRating }
	}

	slices.SortStableFunc(candidates, func(a, b catalog.Descriptor) int {
		return key(b) - key(a)
	})

	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}

	ids := make([]string, 0, len(candidates))
	for _, d := range candidates {
		ids = append(ids, d.ID)
	}
	return ids
}
