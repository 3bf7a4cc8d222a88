// Package router picks the serving backend for a request. Decisions are
// layered: a base decision from request hints, a load-aware promotion, then
// the caller's explicit override resolved against the policy verdict. Every
// stage is a pure function so the full cascade is testable without a server.
package router

import (
	"fmt"

	"github.com/privrelay/offload-gateway/internal/policy"
)

// Base decision reasons.
const (
	ReasonOffline       = "offline required"
	ReasonSensitive     = "sensitive data present"
	ReasonCloudDisabled = "cloud usage not allowed"
	ReasonDeepReasoning = "deep reasoning requested"
	ReasonDefault       = "default to local execution"
	ReasonExplicitLocal = "explicit local request"
	ReasonExplicitCloud = "explicit remote request"
)

// Decide computes the base routing decision from the request hints.
// Checks apply in order, first match wins.
func Decide(h Hints) Decision {
	switch {
	case h.OfflineRequired:
		return Decision{Route: RouteLocal, Reason: ReasonOffline}
	case h.ContainsSensitiveData:
		return Decision{Route: RouteLocal, Reason: ReasonSensitive}
	case !h.CloudAllowed:
		return Decision{Route: RouteLocal, Reason: ReasonCloudDisabled}
	case h.RequiresDeepReasoning:
		return Decision{Route: RouteRemote, Reason: ReasonDeepReasoning}
	}
	return Decision{Route: RouteLocal, Reason: ReasonDefault}
}

// ApplyLoadAware promotes a default-local decision to remote when local
// resource pressure crosses the threshold. A LOCAL decision made for a
// policy reason is never promoted; only the default fallthrough is
// eligible. Remote decisions pass through unchanged.
func ApplyLoadAware(h Hints, base Decision, ratio, threshold float64) Decision {
	if base.Route == RouteLocal {
		if h.OfflineRequired || h.ContainsSensitiveData || !h.CloudAllowed {
			return base
		}
		if threshold > 0 && ratio >= threshold {
			return Decision{
				Route:     RouteRemote,
				Reason:    fmt.Sprintf("local load %.2f at or above threshold %.2f", ratio, threshold),
				LoadAware: true,
			}
		}
	}
	return base
}

// Resolve applies the caller's explicit override on top of the computed
// decision. An explicit local request always wins. An explicit remote
// request wins only when the policy verdict allows it; a denied override is
// demoted to local with the denial visible in the reason, never dropped
// silently. When overrides are disabled by the operator the directive is
// ignored entirely.
func Resolve(d Decision, o Override, v policy.Verdict, overridesAllowed bool) Decision {
	if !overridesAllowed || o == OverrideNone {
		return d
	}
	switch o {
	case OverrideLocal:
		return Decision{Route: RouteLocal, Reason: ReasonExplicitLocal}
	case OverrideRemote:
		if !v.Allowed {
			return Decision{Route: RouteLocal, Reason: "blocked: " + v.Reason}
		}
		return Decision{Route: RouteRemote, Reason: ReasonExplicitCloud}
	}
	return d
}
