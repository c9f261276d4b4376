package normalize

import "regexp"

// Rule rewrites one pattern in a name. Lower priority runs first; an empty
// ApplicableTypes list applies the rule to every entity type.
type Rule struct {
	Name            string
	Pattern         *regexp.Regexp
	Replacement     string
	Priority        int
	ApplicableTypes []string
}

func (r Rule) appliesTo(entityType string) bool {
	if len(r.ApplicableTypes) == 0 {
		return true
	}
	for _, t := range r.ApplicableTypes {
		if t == entityType {
			return true
		}
	}
	return false
}

// DefaultRules returns the built-in rule set. Suffix and metadata rules run
// before the non-alphanumeric strip so their word boundaries still exist.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:            "company_suffixes",
			Pattern:         regexp.MustCompile(`\b(incorporated|corporation|limited|company|inc|corp|ltd|gmbh|ag|bv|nv|plc|llc|sa|co)\b\.?`),
			Replacement:     "",
			Priority:        10,
			ApplicableTypes: []string{"COMPANY"},
		},
		{
			Name:            "honorifics",
			Pattern:         regexp.MustCompile(`\b(mr|mrs|ms|dr|prof|sir|madam|rev)\b\.?`),
			Replacement:     "",
			Priority:        10,
			ApplicableTypes: []string{"PERSON"},
		},
		{
			Name:        "schema_prefix",
			Pattern:     regexp.MustCompile(`\b(dbo|public)\.`),
			Replacement: "",
			Priority:    20,
		},
		{
			Name:        "version_suffix",
			Pattern:     regexp.MustCompile(`_v\d+\b`),
			Replacement: "",
			Priority:    20,
		},
		{
			Name:        "date_suffix",
			Pattern:     regexp.MustCompile(`_\d{4}\b`),
			Replacement: "",
			Priority:    20,
		},
		{
			Name:        "environment_suffix",
			Pattern:     regexp.MustCompile(`-(prod|production|dev|development|staging|stage|test|qa)\b`),
			Replacement: "",
			Priority:    20,
		},
		{
			Name:        "ampersand",
			Pattern:     regexp.MustCompile(`\s*&\s*|\band\b`),
			Replacement: " ",
			Priority:    30,
		},
		{
			Name:        "special_characters",
			Pattern:     regexp.MustCompile(`[^a-z0-9\s]`),
			Replacement: "",
			Priority:    100,
		},
	}
}
