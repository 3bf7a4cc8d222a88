// Package policy decides whether a request may leave the local boundary.
//
// The gate is a pure function over operator flags and the raw request text;
// callers read configuration once at startup and pass the flags in. Denial
// reasons are stable strings checked in a fixed order, first match wins.
package policy

import "github.com/privrelay/offload-gateway/internal/redact"

// Stable denial reasons, in precedence order.
const (
	ReasonOfflineRequired = "offline required"
	ReasonCloudDisabled   = "cloud disabled by policy"
	ReasonSensitive       = "sensitive content detected"
)

// Verdict is the gate's answer for one request. Sensitive is reported
// regardless of the allow/deny outcome so callers can route conservatively
// even when the gate itself allowed the call.
type Verdict struct {
	Allowed   bool
	Reason    string
	Sensitive bool
}

// Evaluate runs the ordered policy checks against one request.
// allowSensitiveCloud lets an operator explicitly permit sensitive text on
// the remote backend; without it, classifier hits deny the call.
func Evaluate(offlineRequired, cloudAllowed, allowSensitiveCloud bool, raw string) Verdict {
	sensitive := redact.Sensitive(raw)

	switch {
	case offlineRequired:
		return Verdict{Allowed: false, Reason: ReasonOfflineRequired, Sensitive: sensitive}
	case !cloudAllowed:
		return Verdict{Allowed: false, Reason: ReasonCloudDisabled, Sensitive: sensitive}
	case sensitive && !allowSensitiveCloud:
		return Verdict{Allowed: false, Reason: ReasonSensitive, Sensitive: sensitive}
	}
	return Verdict{Allowed: true, Sensitive: sensitive}
}
