// Package extract pulls a caller name and conversation topic out of
// free-form call summaries so the pipeline can build readable CRM titles.
// Everything here is heuristic and lossy: absence of data yields a fallback
// string, never an error.
package extract

import (
	"regexp"
	"strings"
)

// Entities is the result of scanning a call summary.
type Entities struct {
	Name  string `json:"name,omitempty"`
	Topic string `json:"topic,omitempty"`
}

const (
	maxNameWords = 3
	maxNameLen   = 30
	maxTopicLen  = 40
)

// Name patterns in priority order; first match wins.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)the (?:user|customer|caller),?\s+([a-zA-Z][a-zA-Z .'-]+?),?\s+from\s`),
	regexp.MustCompile(`(?i)\bcaller(?:\s+named)?\s+([A-Z][a-zA-Z'-]*(?:\s+[A-Z][a-zA-Z'-]*)*)`),
	regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\s+called\b`),
	regexp.MustCompile(`(?i)\bspoke (?:to|with)\s+([A-Z][a-zA-Z'-]*(?:\s+[A-Z][a-zA-Z'-]*)*)`),
}

// Topic patterns in priority order; first match wins.
var topicPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bbooked an?\s+([^.,;]+)`),
	regexp.MustCompile(`(?i)\basked about\s+([^.,;]+)`),
	regexp.MustCompile(`(?i)\binterested in\s+([^.,;]+)`),
	regexp.MustCompile(`(?i)\babout\s+([^.,;]+)`),
	regexp.MustCompile(`(?i)\bregarding\s+([^.,;]+)`),
}

// Keyword fallback when no topic pattern matches.
var topicKeywords = []string{
	"consultation", "demo", "appointment", "booking", "quote",
	"estimate", "support", "callback", "follow-up",
}

// Dynamic-variable keys checked, in order, when the summary yields no name.
var nameVariableKeys = []string{"name", "customer_name", "full_name", "caller_name"}

var namePlausible = regexp.MustCompile(`^[A-Za-z ]+$`)

// Extract scans a call summary, falling back to the dynamic variables the
// voice platform captured during the call.
func Extract(summary string, vars map[string]any) Entities {
	e := Entities{}

	for _, p := range namePatterns {
		m := p.FindStringSubmatch(summary)
		if m == nil {
			continue
		}
		if name := sanitizeName(m[1]); name != "" {
			e.Name = name
			break
		}
	}

	for _, p := range topicPatterns {
		m := p.FindStringSubmatch(summary)
		if m == nil {
			continue
		}
		if topic := formatTopic(m[1]); topic != "" {
			e.Topic = topic
			break
		}
	}

	if e.Topic == "" {
		lower := strings.ToLower(summary)
		for _, kw := range topicKeywords {
			if strings.Contains(lower, kw) {
				e.Topic = formatTopic(kw)
				break
			}
		}
	}

	if e.Name == "" {
		e.Name = nameFromVariables(vars)
	}

	return e
}

// GenerateDealTitle composes "{name} - {topic}" from a summary, degrading to
// the phone number and fixed fallbacks when the heuristics come up empty.
func GenerateDealTitle(summary string, vars map[string]any, phoneNumber string) string {
	e := Extract(summary, vars)

	switch {
	case e.Name != "" && e.Topic != "":
		return e.Name + " - " + e.Topic
	case phoneNumber != "" && e.Topic != "":
		return phoneNumber + " - " + e.Topic
	case e.Name != "":
		return e.Name + " - Consultation"
	case phoneNumber != "":
		return phoneNumber + " - Service Inquiry"
	default:
		return "Service Inquiry"
	}
}

// sanitizeName rejects captures that do not look like a person name.
func sanitizeName(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" || len(name) > maxNameLen {
		return ""
	}
	if !namePlausible.MatchString(name) {
		return ""
	}
	if len(strings.Fields(name)) > maxNameWords {
		return ""
	}
	return name
}

// formatTopic lowercases, capitalizes the first letter, and truncates.
func formatTopic(raw string) string {
	topic := strings.TrimSpace(strings.ToLower(raw))
	if topic == "" {
		return ""
	}
	if len(topic) > maxTopicLen {
		topic = topic[:maxTopicLen-3] + "..."
	}
	return strings.ToUpper(topic[:1]) + topic[1:]
}

func nameFromVariables(vars map[string]any) string {
	if vars == nil {
		return ""
	}
	for _, key := range nameVariableKeys {
		if v, ok := vars[key]; ok {
			if name := sanitizeName(toString(v)); name != "" {
				return name
			}
		}
	}
	first, last := toString(vars["first_name"]), toString(vars["last_name"])
	if first != "" {
		return sanitizeName(strings.TrimSpace(first + " " + last))
	}
	return ""
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
