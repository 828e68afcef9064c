// Package guard decides, for every navigation attempt, whether it may
// proceed and where to redirect otherwise.
package guard

import (
	"cleanline/internal/domain"
)

// Well-known navigation targets.
const (
	LoginPath       = "/login"
	AdminHomePath   = "/admin/dashboard"
	CleanerHomePath = "/cleaner/tasks"
)

// RoleHome returns the landing path for a role.
func RoleHome(role domain.Role) string {
	if role == domain.RoleCleaner {
		return CleanerHomePath
	}
	return AdminHomePath
}

// Verdict is the outcome of a navigation decision.
type Verdict struct {
	Allow      bool
	RedirectTo string
}

// Proceed allows the navigation.
func Proceed() Verdict { return Verdict{Allow: true} }

// Redirect denies the navigation and names the target.
func Redirect(path string) Verdict { return Verdict{RedirectTo: path} }

// Session is the read surface the guard needs from the session store.
// EnsureLoaded is the single side-effecting step: it restores a persisted
// session before the decision so the verdict reflects what the user
// already holds.
type Session interface {
	EnsureLoaded()
	IsAuthenticated() bool
	Principal() *domain.User
}

// Decide evaluates the rules in fixed order, first match wins:
//
//  1. auth required, not authenticated      -> redirect to login
//  2. auth required, role not in the set
//     declared deepest on the chain         -> redirect to the role's home
//  3. guest required, authenticated         -> redirect to the role's home
//  4. otherwise                             -> proceed
//
// Apart from EnsureLoaded the decision is pure: identical table, path and
// session state always yield the same verdict.
func Decide(table *Table, path string, sess Session) Verdict {
	sess.EnsureLoaded()

	chain := table.Match(path)
	if chain == nil {
		return Proceed()
	}

	requiresAuth, requiresGuest := false, false
	var allowedRoles []domain.Role
	for _, r := range chain {
		requiresAuth = requiresAuth || r.RequiresAuth
		requiresGuest = requiresGuest || r.RequiresGuest
		if r.AllowedRoles != nil {
			allowedRoles = r.AllowedRoles
		}
	}

	if requiresAuth {
		if !sess.IsAuthenticated() {
			return Redirect(LoginPath)
		}
		if allowedRoles != nil {
			p := sess.Principal()
			if p != nil && !roleAllowed(allowedRoles, p.Role) {
				return Redirect(RoleHome(p.Role))
			}
		}
	}

	if requiresGuest && sess.IsAuthenticated() {
		p := sess.Principal()
		if p != nil {
			return Redirect(RoleHome(p.Role))
		}
	}

	return Proceed()
}

func roleAllowed(roles []domain.Role, role domain.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
