// Package normalize rewrites raw entity names into their canonical matching
// form using an ordered, type-scoped rule set.
package normalize

import (
	"sort"
	"strings"
)

var whitespaceCollapse = strings.Fields

// Normalizer applies rules in priority order. Rules are fixed at
// construction; there is no runtime mutation.
type Normalizer struct {
	rules []Rule
}

// NewNormalizer sorts the given rules ascending by priority. Pass nil to use
// DefaultRules.
func NewNormalizer(rules []Rule) *Normalizer {
	if rules == nil {
		rules = DefaultRules()
	}
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return &Normalizer{rules: sorted}
}

// Normalize lowercases the input, applies every matching rule in priority
// order and collapses whitespace. An input that normalizes to nothing falls
// back to a lowercase trim of the original.
func (n *Normalizer) Normalize(input, entityType string) string {
	result := strings.ToLower(input)

	for _, rule := range n.rules {
		if !rule.appliesTo(entityType) {
			continue
		}
		result = rule.Pattern.ReplaceAllString(result, rule.Replacement)
	}

	result = strings.Join(whitespaceCollapse(result), " ")
	if result == "" {
		return strings.TrimSpace(strings.ToLower(input))
	}
	return result
}
