package engine

import (
	"regexp"

	"callbridge-backend/internal/metadata"
)

// suggestionRule maps a source field name pattern to a target field.
type suggestionRule struct {
	pattern *regexp.Regexp
	target  string
}

// Suggestion rules in priority order; the first matching rule wins per
// source field.
var suggestionRules = []suggestionRule{
	{regexp.MustCompile(`(?i)phone|mobile|number`), "person.phone"},
	{regexp.MustCompile(`(?i)e-?mail`), "person.email"},
	{regexp.MustCompile(`(?i)first_?name`), "person.first_name"},
	{regexp.MustCompile(`(?i)last_?name|surname`), "person.last_name"},
	{regexp.MustCompile(`(?i)name|caller|customer`), "person.name"},
	{regexp.MustCompile(`(?i)amount|value|price|revenue|budget`), "deal.value"},
	{regexp.MustCompile(`(?i)currency`), "deal.currency"},
	{regexp.MustCompile(`(?i)title|subject`), "deal.title"},
	{regexp.MustCompile(`(?i)summary|note|transcript|comment`), "activity.note"},
	{regexp.MustCompile(`(?i)company|organization|org`), "person.org_name"},
}

var (
	phoneLikeTarget = regexp.MustCompile(`(?i)phone`)
	nameLikeTarget  = regexp.MustCompile(`(?i)name`)
)

// SuggestFieldMappings proposes mapping rules for the given source fields.
// The transform suggestion keys off the *target* field name, not the source
// value type: anything phone-shaped gets phone_format, anything name-shaped
// gets capitalize.
func SuggestFieldMappings(sourceFields []string, schema *metadata.CRMSchema) []metadata.FieldMapping {
	var out []metadata.FieldMapping
	for _, src := range sourceFields {
		for _, rule := range suggestionRules {
			if !rule.pattern.MatchString(src) {
				continue
			}
			out = append(out, metadata.FieldMapping{
				SourceField: src,
				TargetField: rule.target,
				Transform:   suggestTransform(rule.target),
			})
			break
		}
	}
	return out
}

func suggestTransform(target string) string {
	switch {
	case phoneLikeTarget.MatchString(target):
		return "phone_format"
	case nameLikeTarget.MatchString(target):
		return "capitalize"
	}
	return ""
}
