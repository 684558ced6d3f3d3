// Package policy is the single source of truth for role-based access in
// Pentora. The navigation tree, the route guards, and the user-creation
// matrix all derive from the tables in this package, so the menu a role can
// see and the routes that role may reach cannot drift apart.
package policy

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role is a fixed tag assigned by the backend at login. Roles are disjoint
// allowlists, not an inheritance chain; Level is used only where the
// product gates on "admin and up" style checks.
type Role string

const (
	RoleSuperadmin  Role = "superadmin"
	RoleAdmin       Role = "admin"
	RoleTeamLeader  Role = "team-leader"
	RoleTester      Role = "tester"
	RoleClientAdmin Role = "client-admin"
	RoleClientUser  Role = "client-user"
)

var roleLevels = map[Role]int{
	RoleSuperadmin:  6,
	RoleAdmin:       5,
	RoleTeamLeader:  4,
	RoleTester:      3,
	RoleClientAdmin: 2,
	RoleClientUser:  1,
}

// AllRoles returns every known role, highest level first.
func AllRoles() []Role {
	return []Role{RoleSuperadmin, RoleAdmin, RoleTeamLeader, RoleTester, RoleClientAdmin, RoleClientUser}
}

// ParseRole validates a raw role string.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.TrimSpace(strings.ToLower(raw)))
	_, ok := roleLevels[role]
	return role, ok
}

// Valid reports whether the role is one of the known tags.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// Level returns the hierarchy level (superadmin 6 .. client-user 1, unknown 0).
func (r Role) Level() int {
	return roleLevels[r]
}

// AtLeast reports whether r sits at or above the given role's level.
func (r Role) AtLeast(min Role) bool {
	return r.Level() >= min.Level() && r.Level() > 0
}

var labelCaser = cases.Title(language.English)

// Label returns the human-readable form shown in the sidebar badge,
// e.g. "team-leader" becomes "Team Leader".
func (r Role) Label() string {
	return labelCaser.String(strings.ReplaceAll(string(r), "-", " "))
}

// creationMatrix captures who may create which role. A row missing from the
// map means that role cannot create users at all.
var creationMatrix = map[Role][]Role{
	RoleSuperadmin:  {RoleAdmin},
	RoleAdmin:       {RoleTeamLeader, RoleTester, RoleClientAdmin},
	RoleTeamLeader:  {RoleTester},
	RoleClientAdmin: {RoleClientUser},
}

// CanCreate reports whether creator may create an account with target role.
func CanCreate(creator, target Role) bool {
	for _, allowed := range creationMatrix[creator] {
		if allowed == target {
			return true
		}
	}
	return false
}

// CreatableRoles lists the roles the creator may hand out.
func CreatableRoles(creator Role) []Role {
	out := make([]Role, len(creationMatrix[creator]))
	copy(out, creationMatrix[creator])
	return out
}
