// Package blocking derives coarse candidate-retrieval keys from normalized
// names so fuzzy scoring only runs against a small slice of the graph.
package blocking

import (
	"sort"
	"strings"
)

const (
	prefixFamily = "pfx:"
	tokenFamily  = "tok:"
	bigramFamily = "bg:"
)

// Keys returns the distinct blocking keys for a normalized name. Three
// families are produced so unions catch reordered and misspelled names:
// a 3-char prefix, the sorted first two tokens, and a 2-char prefix.
func Keys(normalizedName string) []string {
	name := strings.TrimSpace(normalizedName)
	if name == "" {
		return nil
	}

	seen := make(map[string]struct{}, 3)
	keys := make([]string, 0, 3)
	add := func(key string) {
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	add(prefixFamily + prefix(name, 3))

	tokens := strings.Fields(name)
	if len(tokens) > 2 {
		tokens = tokens[:2]
	}
	sorted := make([]string, len(tokens))
	copy(sorted, tokens)
	sort.Strings(sorted)
	add(tokenFamily + strings.Join(sorted, " "))

	add(bigramFamily + prefix(name, 2))

	return keys
}

func prefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
