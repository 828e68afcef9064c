package guard

import (
	"testing"

	"cleanline/internal/domain"
)

type fakeSession struct {
	user        *domain.User
	loadedCalls int
}

func (f *fakeSession) EnsureLoaded()           { f.loadedCalls++ }
func (f *fakeSession) IsAuthenticated() bool   { return f.user != nil }
func (f *fakeSession) Principal() *domain.User { return f.user }

func guest() *fakeSession { return &fakeSession{} }

func loggedIn(role domain.Role) *fakeSession {
	return &fakeSession{user: &domain.User{ID: "u-1", Email: "u@example.com", Role: role}}
}

func TestDecideRedirectsAnonymousToLogin(t *testing.T) {
	v := Decide(DefaultTable(), "/admin/dashboard", guest())
	if v.Allow {
		t.Fatal("expected redirect, got allow")
	}
	if v.RedirectTo != LoginPath {
		t.Fatalf("redirect = %q, want %q", v.RedirectTo, LoginPath)
	}
}

func TestDecideRedirectsWrongRoleToItsHome(t *testing.T) {
	v := Decide(DefaultTable(), "/admin/dashboard", loggedIn(domain.RoleCleaner))
	if v.Allow {
		t.Fatal("expected redirect, got allow")
	}
	if v.RedirectTo != CleanerHomePath {
		t.Fatalf("redirect = %q, want %q", v.RedirectTo, CleanerHomePath)
	}

	v = Decide(DefaultTable(), "/cleaner/tasks", loggedIn(domain.RoleAdmin))
	if v.RedirectTo != AdminHomePath {
		t.Fatalf("redirect = %q, want %q", v.RedirectTo, AdminHomePath)
	}
}

func TestDecideRedirectsAuthenticatedAwayFromGuestRoutes(t *testing.T) {
	for _, path := range []string{"/login", "/register"} {
		v := Decide(DefaultTable(), path, loggedIn(domain.RoleCleaner))
		if v.Allow {
			t.Fatalf("%s: expected redirect for a logged-in user", path)
		}
		if v.RedirectTo != CleanerHomePath {
			t.Fatalf("%s: redirect = %q, want %q", path, v.RedirectTo, CleanerHomePath)
		}
	}
	if v := Decide(DefaultTable(), "/login", guest()); !v.Allow {
		t.Fatalf("guest on /login should proceed, got redirect to %q", v.RedirectTo)
	}
}

func TestDecideChildRolesOverrideAncestor(t *testing.T) {
	// /admin allows admin, but /admin/companies narrows to super_admin.
	if v := Decide(DefaultTable(), "/admin/companies", loggedIn(domain.RoleAdmin)); v.Allow {
		t.Fatal("admin should not reach /admin/companies")
	}
	if v := Decide(DefaultTable(), "/admin/companies", loggedIn(domain.RoleSuperAdmin)); !v.Allow {
		t.Fatalf("super_admin should reach /admin/companies, got redirect to %q", v.RedirectTo)
	}
	// The broader ancestor set still applies where no child narrows it.
	if v := Decide(DefaultTable(), "/admin/users", loggedIn(domain.RoleAdmin)); !v.Allow {
		t.Fatalf("admin should reach /admin/users, got redirect to %q", v.RedirectTo)
	}
}

func TestDecideWildcardSegments(t *testing.T) {
	if v := Decide(DefaultTable(), "/admin/buildings/bl-42", loggedIn(domain.RoleAdmin)); !v.Allow {
		t.Fatalf("param route should match, got redirect to %q", v.RedirectTo)
	}
	if v := Decide(DefaultTable(), "/cleaner/tasks/t-7", loggedIn(domain.RoleCleaner)); !v.Allow {
		t.Fatalf("param route should match, got redirect to %q", v.RedirectTo)
	}
}

func TestDecideUnknownRouteProceeds(t *testing.T) {
	for _, sess := range []*fakeSession{guest(), loggedIn(domain.RoleCleaner)} {
		if v := Decide(DefaultTable(), "/nowhere/special", sess); !v.Allow {
			t.Fatalf("unknown route should proceed, got redirect to %q", v.RedirectTo)
		}
	}
	// A path that only partially consumes the tree is unknown too.
	if v := Decide(DefaultTable(), "/admin/dashboard/extra", guest()); !v.Allow {
		t.Fatal("partially matched route should proceed")
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	sess := loggedIn(domain.RoleCleaner)
	first := Decide(DefaultTable(), "/admin/tasks", sess)
	for i := 0; i < 5; i++ {
		if v := Decide(DefaultTable(), "/admin/tasks", sess); v != first {
			t.Fatalf("verdict changed between identical calls: %+v vs %+v", first, v)
		}
	}
	if sess.loadedCalls == 0 {
		t.Fatal("guard never called EnsureLoaded")
	}
}

func TestParseTableRejectsAuthGuestConflict(t *testing.T) {
	_, err := ParseTable([]byte(`
routes:
  - path: portal
    requiresAuth: true
    children:
      - path: welcome
        requiresGuest: true
`))
	if err == nil {
		t.Fatal("expected validation error for auth+guest chain")
	}
}

func TestParseTableRejectsUnknownRole(t *testing.T) {
	_, err := ParseTable([]byte(`
routes:
  - path: portal
    requiresAuth: true
    allowedRoles: [janitor]
`))
	if err == nil {
		t.Fatal("expected validation error for unknown role")
	}
}
