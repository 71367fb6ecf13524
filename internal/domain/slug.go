package domain

import "strings"

// Slugify derives the URL-safe slug for a concept name: lowercased, with
// every run of non-alphanumeric characters collapsed to a single hyphen.
// "Kant's Categorical Imperative" -> "kant-s-categorical-imperative".
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			if b.Len() > 0 {
				pendingSep = true
			}
			continue
		}
		if pendingSep {
			b.WriteByte('-')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
