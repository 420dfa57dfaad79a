package selection

import "strings"

// Signal is what a request tells us about the conversation.
type Signal struct {
	Message       string
	HistoryLength int
}

// Words returns the whitespace-separated word count of the message.
func (s Signal) Words() int {
	return len(strings.Fields(s.Message))
}

// Rule maps a signal to a category when Match holds.
type Rule struct {
	Name     string
	Category Category
	Match    func(Signal) bool
}

// Classifier applies an ordered rule list; the first matching rule wins.
type Classifier struct {
	rules    []Rule
	fallback Category
}

// NewClassifier creates a classifier. fallback is returned when no rule
// matches.
func NewClassifier(fallback Category, rules ...Rule) *Classifier {
	return &Classifier{rules: rules, fallback: fallback}
}

// DefaultClassifier returns the standard rule list.
func DefaultClassifier() *Classifier {
	return NewClassifier(Dynamic, DefaultRules()...)
}

// DefaultRules returns the standard rules in precedence order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "very long history",
			Category: Ultra,
			Match:    func(s Signal) bool { return s.HistoryLength > 20 },
		},
		{
			Name:     "long history",
			Category: Extended,
			Match:    func(s Signal) bool { return s.HistoryLength > 10 },
		},
		{
			Name:     "short opener",
			Category: Casual,
			Match:    func(s Signal) bool { return s.Words() <= 5 && s.HistoryLength <= 3 },
		},
		{
			Name:     "asks for explanation",
			Category: Educational,
			Match:    containsAny("explain", "grammar"),
		},
		{
			Name:     "business topic",
			Category: Business,
			Match:    containsAny("business", "professional"),
		},
		{
			Name:     "long message",
			Category: Premium,
			Match:    func(s Signal) bool { return s.Words() > 20 },
		},
	}
}

func containsAny(words ...string) func(Signal) bool {
	return func(s Signal) bool {
		msg := strings.ToLower(s.Message)
		for _, w := range words {
			if strings.Contains(msg, w) {
				return true
			}
		}
		return false
	}
}

// Classify returns the category of the first matching rule.
func (c *Classifier) Classify(s Signal) Category {
	cat, _ := c.Explain(s)
	return cat
}

// Explain is Classify that also names the matching rule. The rule name is
// empty when the fallback applied.
func (c *Classifier) Explain(s Signal) (Category, string) {
	for _, r := range c.rules {
		if r.Match != nil && r.Match(s) {
			return r.Category, r.Name
		}
	}
	return c.fallback, ""
}
