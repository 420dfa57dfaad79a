package catalog

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Catalog is the immutable, validated set of descriptors of one kind.
// Declaration order is preserved and used as the tie-breaker everywhere.
type Catalog struct {
	kind    Kind
	order   []string
	entries map[string]*Descriptor
}

// Build validates entries and returns the catalog. Any duplicate or empty id,
// empty tag set or rating outside [1,5] fails the whole build with a
// *ValidationError.
func Build(kind Kind, entries []Descriptor) (*Catalog, error) {
	c := &Catalog{
		kind:    kind,
		order:   make([]string, 0, len(entries)),
		entries: make(map[string]*Descriptor, len(entries)),
	}

	var problems []string
	for i, entry := range entries {
		entry.ID = strings.TrimSpace(entry.ID)
		if entry.ID == "" {
			problems = append(problems, fmt.Sprintf("entry %d: id is empty", i))
			continue
		}
		if _, dup := c.entries[entry.ID]; dup {
			problems = append(problems, fmt.Sprintf("%q: duplicate id", entry.ID))
			continue
		}
		tags := nonBlank(entry.Tags)
		if len(tags) == 0 {
			problems = append(problems, fmt.Sprintf("%q: tag set is empty", entry.ID))
		}
		if !validRating(entry.SpeedRating) {
			problems = append(problems, fmt.Sprintf("%q: speed rating %d outside [%d,%d]", entry.ID, entry.SpeedRating, MinRating, MaxRating))
		}
		if !validRating(entry.QualityRating) {
			problems = append(problems, fmt.Sprintf("%q: quality rating %d outside [%d,%d]", entry.ID, entry.QualityRating, MinRating, MaxRating))
		}

		d := entry
		d.Kind = kind
		d.Tags = tags
		d.Params = maps.Clone(entry.Params)
		c.order = append(c.order, d.ID)
		c.entries[d.ID] = &d
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Kind: kind, Problems: problems}
	}

	return c, nil
}

// MustBuild is Build for static tables; it panics on invalid input.
func MustBuild(kind Kind, entries []Descriptor) *Catalog {
	c, err := Build(kind, entries)
	if err != nil {
		panic(err)
	}
	return c
}

// nonBlank returns a trimmed copy of tags without blank entries.
func nonBlank(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func validRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}

// Kind returns the capability of every backend in the catalog.
func (c *Catalog) Kind() Kind {
	return c.kind
}

// Get returns the descriptor with the given id.
func (c *Catalog) Get(id string) (Descriptor, bool) {
	d, ok := c.entries[id]
	if !ok {
		return Descriptor{}, false
	}
	return *d, true
}

// Has reports whether id is part of the catalog.
func (c *Catalog) Has(id string) bool {
	_, ok := c.entries[id]
	return ok
}

// IDs returns every id in declaration order.
func (c *Catalog) IDs() []string {
	return slices.Clone(c.order)
}

// List returns every descriptor in declaration order.
func (c *Catalog) List() []Descriptor {
	out := make([]Descriptor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.entries[id])
	}
	return out
}

// Len returns the number of descriptors.
func (c *Catalog) Len() int {
	return len(c.order)
}
