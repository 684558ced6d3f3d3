package policy

// RoutePolicy protects one dashboard route. Policies are derived from the
// navigation tree so the set of routes reachable through the sidebar for a
// role always equals the set of routes whose guard admits that role.
type RoutePolicy struct {
	Path     string
	Roles    []Role
	Fallback string
}

// DefaultFallback is shown when a route has no more specific denial message.
const DefaultFallback = "You do not have permission to access this page."

// fallbacks carries per-route denial messages where the product wants
// something more specific than DefaultFallback.
var fallbacks = map[string]string{
	"/tasks":             "Only team leaders can view assigned tasks.",
	"/my-assigned-tasks": "Only testers can view their assigned tasks.",
	"/my-client-assets":  "Only client users can view client assets.",
	"/access-control":    "Access control is restricted to administrators.",
	"/audit-trail":       "The audit trail is restricted to administrators.",
}

// Routes flattens the navigation tree into route policies, one per href.
func Routes() []RoutePolicy {
	var out []RoutePolicy
	collectRoutes(Menu(), &out)
	return out
}

func collectRoutes(items []MenuItem, out *[]RoutePolicy) {
	for _, item := range items {
		if item.Href != "" {
			fallback := fallbacks[item.Href]
			if fallback == "" {
				fallback = DefaultFallback
			}
			roles := make([]Role, len(item.Roles))
			copy(roles, item.Roles)
			*out = append(*out, RoutePolicy{Path: item.Href, Roles: roles, Fallback: fallback})
		}
		collectRoutes(item.Children, out)
	}
}

// RolesForPath resolves the allowed roles for a dashboard route.
func RolesForPath(path string) ([]Role, bool) {
	for _, rp := range Routes() {
		if rp.Path == path {
			return rp.Roles, true
		}
	}
	return nil, false
}
