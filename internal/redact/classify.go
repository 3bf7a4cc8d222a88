package redact

import "regexp"

// The classifier is deliberately broader than the redactor: it feeds routing
// and policy decisions only, never the redaction itself, so false positives
// cost a conservative local route rather than mangled text.
var classifierExtra = []*regexp.Regexp{
	// IPv4 shapes. Matches version strings too; acceptable noise.
	regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
	// Credential-looking key=value or key: value pairs.
	regexp.MustCompile(`(?i)\b(?:password|passwd|secret|token|api[_-]?key)\b\s*[:=]\s*\S+`),
}

// Sensitive reports whether text looks like it carries secrets. It checks
// every redaction pattern plus the broader heuristics above.
func Sensitive(text string) bool {
	for _, r := range rules {
		if r.re.MatchString(text) {
			return true
		}
	}
	for _, re := range classifierExtra {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
