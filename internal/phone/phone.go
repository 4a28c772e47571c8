// Package phone produces equivalent representations of a phone number so
// contact lookup can match a caller against CRM records regardless of how
// either side formatted the number.
package phone

import "strings"

// Variation is one alternative representation of a phone number.
type Variation struct {
	Format      string `json:"format"`
	Description string `json:"description"`
}

// Variations returns an ordered, de-duplicated list of representations of the
// input number. The original is always first. UK-shaped numbers additionally
// get local, E.164, and international-without-plus forms. Never fails; empty
// input yields an empty list.
func Variations(input string) []Variation {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}

	var out []Variation
	seen := map[string]bool{}
	add := func(format, description string) {
		if format == "" || seen[format] {
			return
		}
		seen[format] = true
		out = append(out, Variation{Format: format, Description: description})
	}

	add(trimmed, "original")

	national := ukNational(trimmed)
	if national != "" {
		add("0"+national, "UK local format")
		add("+44"+national, "E.164 format")
		add("44"+national, "international without plus")
	}

	return out
}

// Normalize returns the canonical form of a number, preferring E.164.
// Normalize is stable under repeated application.
func Normalize(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	if national := ukNational(trimmed); national != "" {
		return "+44" + national
	}

	digits := digitsOf(trimmed)
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "+") {
		return "+" + digits
	}
	return digits
}

// AreEquivalent reports whether two numbers normalize to the same canonical
// form. Empty inputs are never equivalent to anything.
func AreEquivalent(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb
}

// ukNational extracts the 10-digit UK national significant number, or ""
// when the input does not look like a UK number.
func ukNational(input string) string {
	digits := digitsOf(input)
	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "44"):
		return digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		return digits[1:]
	case len(digits) == 10 && strings.HasPrefix(digits, "7") && !strings.HasPrefix(input, "+"):
		// bare UK mobile without the trunk zero
		return digits
	}
	return ""
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
