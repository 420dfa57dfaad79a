// Package selection maps a conversation signal to a category and ranks the
// available generation backends for it.
package selection

// Category is a conversation category.
type Category string

const (
	Casual      Category = "casual"
	Dynamic     Category = "dynamic"
	Educational Category = "educational"
	Advanced    Category = "advanced"
	Business    Category = "business"
	Extended    Category = "extended"
	Ultra       Category = "ultra"
	Premium     Category = "premium"
)

// MaxCandidates is the length limit of a ranking.
const MaxCandidates = 3

// fallbackTags are the targets of a category missing from the table.
var fallbackTags = []string{"quick chat"}

var categoryTags = map[Category][]string{
	Casual:      {"quick chat", "basic practice"},
	Dynamic:     {"dynamic conversation", "role-play"},
	Educational: {"structured teaching", "grammar"},
	Advanced:    {"complex conversation", "advanced topics"},
	Business:    {"business english", "exam preparation"},
	Extended:    {"long conversations", "extended context"},
	Ultra:       {"very long conversations", "maximum context", "extended sessions"},
	Premium:     {"premium conversations", "deep analysis", "maximum quality"},
}

// Categories returns every known category.
func Categories() []Category {
	return []Category{Casual, Dynamic, Educational, Advanced, Business, Extended, Ultra, Premium}
}

// Tags returns the target tags of c. Unknown categories get {"quick chat"}.
func Tags(c Category) []string {
	tags, ok := categoryTags[c]
	if !ok {
		tags = fallbackTags
	}
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}

// Known reports whether c is in the category table.
func Known(c Category) bool {
	_, ok := categoryTags[c]
	return ok
}

// prefersSpeed reports whether ranking for c favors speed over quality.
func prefersSpeed(c Category) bool {
	return c == Casual || c == Dynamic
}
