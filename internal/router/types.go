package router

// Route selects which backend serves a request.
type Route string

const (
	RouteLocal  Route = "local"
	RouteRemote Route = "remote"
)

// Override is an explicit backend request by the caller, parsed off the
// request before routing. OverrideNone means the caller expressed no
// preference.
type Override string

const (
	OverrideNone   Override = ""
	OverrideLocal  Override = "local"
	OverrideRemote Override = "remote"
)

// Hints carries the per-request inputs to the base routing decision.
// Constructed fresh per request; never persisted.
type Hints struct {
	TaskType              string
	RequiresDeepReasoning bool
	ContainsSensitiveData bool
	OfflineRequired       bool
	CloudAllowed          bool
}

// Decision is the routing outcome. Each routing stage returns a new value
// rather than mutating the previous one, so the final Decision reflects the
// last stage that changed anything.
type Decision struct {
	Route     Route
	Reason    string
	LoadAware bool
}
