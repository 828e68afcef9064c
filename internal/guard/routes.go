package guard

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"cleanline/internal/domain"
)

// Route is one segment of the navigable path tree. Path may span several
// segments ("companies/:id"); ":" segments match any value. AllowedRoles
// nil means any authenticated role; a declared set on a child overrides
// an ancestor's broader set.
type Route struct {
	Path          string        `yaml:"path"`
	Name          string        `yaml:"name,omitempty"`
	RequiresAuth  bool          `yaml:"requiresAuth,omitempty"`
	RequiresGuest bool          `yaml:"requiresGuest,omitempty"`
	AllowedRoles  []domain.Role `yaml:"allowedRoles,omitempty"`
	Children      []Route       `yaml:"children,omitempty"`
}

// Table is the route tree the guard consults. Static: loaded once at
// startup, validated then, never mutated.
type Table struct {
	Routes []Route `yaml:"routes"`
}

//go:embed routes.yaml
var defaultRoutesYAML []byte

var defaultTable = mustParseTable(defaultRoutesYAML)

// DefaultTable returns the built-in route table.
func DefaultTable() *Table {
	return defaultTable
}

func mustParseTable(data []byte) *Table {
	t, err := ParseTable(data)
	if err != nil {
		panic(fmt.Sprintf("built-in route table: %v", err))
	}
	return t
}

// ParseTable parses and validates a yaml route table. Invalid
// configurations are rejected here, never at decision time.
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("invalid route table yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate walks every chain and rejects a route that would require both
// an authenticated and a guest session, plus unknown role names and empty
// path segments.
func (t *Table) Validate() error {
	for i := range t.Routes {
		if err := validateRoute("", &t.Routes[i], false, false); err != nil {
			return err
		}
	}
	return nil
}

func validateRoute(prefix string, r *Route, chainAuth, chainGuest bool) error {
	if strings.Trim(r.Path, "/") == "" {
		return fmt.Errorf("route under %q has an empty path", prefix)
	}
	full := prefix + "/" + strings.Trim(r.Path, "/")
	chainAuth = chainAuth || r.RequiresAuth
	chainGuest = chainGuest || r.RequiresGuest
	if chainAuth && chainGuest {
		return fmt.Errorf("route %s requires both auth and guest on its matched chain", full)
	}
	for _, role := range r.AllowedRoles {
		if !role.Valid() {
			return fmt.Errorf("route %s allows unknown role %q", full, role)
		}
	}
	for i := range r.Children {
		if err := validateRoute(full, &r.Children[i], chainAuth, chainGuest); err != nil {
			return err
		}
	}
	return nil
}

// Match resolves a path to its matched chain, outermost route first.
// Paths that consume the tree only partially, or not at all, yield nil:
// an unknown route has no requirements.
func (t *Table) Match(path string) []*Route {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil
	}
	for i := range t.Routes {
		if chain := matchRoute(&t.Routes[i], segments); chain != nil {
			return chain
		}
	}
	return nil
}

func matchRoute(r *Route, segments []string) []*Route {
	own := splitPath(r.Path)
	if len(own) > len(segments) {
		return nil
	}
	for i, seg := range own {
		if !strings.HasPrefix(seg, ":") && seg != segments[i] {
			return nil
		}
	}
	rest := segments[len(own):]
	if len(rest) == 0 {
		return []*Route{r}
	}
	for i := range r.Children {
		if chain := matchRoute(&r.Children[i], rest); chain != nil {
			return append([]*Route{r}, chain...)
		}
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
