// Package redact strips credentials from strings before they reach a log
// line. The LLM API key is the only secret Primus handles; it must never be
// printed verbatim, including inside wrapped HTTP errors.
package redact

import "strings"

const placeholder = "[REDACTED]"

// String replaces every occurrence of each sensitive value in s with
// [REDACTED]. Values shorter than 4 characters are skipped to avoid
// redacting common substrings.
func String(s string, sensitiveValues ...string) string {
	for _, v := range sensitiveValues {
		if len(v) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}

// Key renders a credential for display: empty keys as "(unset)", short keys
// fully redacted, longer ones as "…" followed by the last four characters.
func Key(k string) string {
	switch {
	case k == "":
		return "(unset)"
	case len(k) < 12:
		return placeholder
	default:
		return "…" + k[len(k)-4:]
	}
}
