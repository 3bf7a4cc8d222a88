// Package redact strips secret-shaped substrings from free text before any
// of it leaves the local boundary.
//
// DESIGN: Detection is an ordered list of independent matcher/replacer pairs
// (data, not code) so new categories are additive. Each category runs exactly
// one pass over the output of the previous category. A detector therefore
// never re-matches text produced by an earlier placeholder substitution; this
// one-pass-per-category behavior is a policy choice, not an oversight.
package redact

import "regexp"

// Placeholder tokens have the form [SANITIZED:<CATEGORY>].
const placeholderPrefix = "[SANITIZED:"

type rule struct {
	category string
	re       *regexp.Regexp
}

// rules apply in order. PEM blocks go first so the emails and digit runs they
// contain are swallowed whole instead of being shredded into fragments.
var rules = []rule{
	{"PRIVATE_KEY", regexp.MustCompile(`(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?-----END [A-Z ]*PRIVATE KEY-----`)},
	{"SIGNED_TOKEN", regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{4,}\.[A-Za-z0-9_-]{4,}\.[A-Za-z0-9_-]{4,}\b`)},
	{"ACCESS_KEY", regexp.MustCompile(`\b(?:AKIA|ASIA|AGPA|AROA|AIDA)[A-Z0-9]{16}\b`)},
	{"RESOURCE_NAME", regexp.MustCompile(`\barn:[a-z0-9-]+:[a-z0-9-]+:[a-z0-9-]*:[0-9]*:[A-Za-z0-9:/._-]+`)},
	{"EMAIL", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"ACCOUNT_NUMBER", regexp.MustCompile(`\b\d{12,}\b`)},
}

// Redact replaces every substring matching a known secret shape with its
// typed placeholder token. Pure: no detector errors, and absence of a match
// is not an error. Output never shrinks below the input's non-secret text.
func Redact(text string) string {
	for _, r := range rules {
		text = r.re.ReplaceAllString(text, placeholderPrefix+r.category+"]")
	}
	return text
}

// Categories returns the redaction category names in application order.
// The envelope's redaction-policy descriptor reports these to the remote side.
func Categories() []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.category
	}
	return out
}
