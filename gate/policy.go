// Package gate decides, per request, whether a page may be served to the
// current session or where the browser should be sent instead.
package gate

import (
	"net/url"
	"strings"

	"github.com/jrsteele09/go-session-gate/users"
)

// State is the authentication state of a request after evaluation
type State int

const (
	Unauthenticated State = iota
	AuthenticatedWrongRole
	AuthenticatedAuthorized
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case AuthenticatedWrongRole:
		return "wrong_role"
	case AuthenticatedAuthorized:
		return "authorized"
	}
	return "unknown"
}

// Principal is the signed-in subject of a request
type Principal struct {
	SubjectID string
	Role      users.RoleType
}

// Decision is the outcome of evaluating a request. An empty Redirect allows it.
type Decision struct {
	State    State
	Redirect string
}

func (d Decision) Allowed() bool {
	return d.Redirect == ""
}

// Scope restricts a path prefix to a set of roles
type Scope struct {
	Prefix string
	Roles  []users.RoleType
}

func (s Scope) allows(role users.RoleType) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type Policy struct {
	LoginPath      string
	PublicRedirect []string                  // pages signed-in users are sent home from
	Scopes         []Scope                   // role-restricted prefixes
	Homes          map[users.RoleType]string // landing page per role
	Confined       map[users.RoleType]string // roles that may only visit this prefix
}

func DefaultPolicy() *Policy {
	return &Policy{
		LoginPath:      "/login",
		PublicRedirect: []string{"/login", "/signup"},
		Scopes: []Scope{
			{Prefix: "/instructor", Roles: []users.RoleType{users.RoleInstructor}},
			{Prefix: "/student", Roles: []users.RoleType{users.RoleStudent}},
		},
		Homes: map[users.RoleType]string{
			users.RoleStudent:    "/student/dashboard",
			users.RoleInstructor: "/instructor/dashboard",
		},
		Confined: map[users.RoleType]string{
			users.RoleInstructor: "/instructor",
		},
	}
}

// Evaluate applies the policy to a request for path. A nil principal is an
// unauthenticated request. It has no side effects.
func (p *Policy) Evaluate(principal *Principal, path string) Decision {
	if principal == nil {
		if p.scopeFor(path) != nil {
			return Decision{State: Unauthenticated, Redirect: p.LoginRedirect(path)}
		}
		return Decision{State: Unauthenticated}
	}

	if p.isPublicRedirect(path) {
		return Decision{State: AuthenticatedAuthorized, Redirect: p.Home(principal.Role)}
	}

	if scope := p.scopeFor(path); scope != nil && !scope.allows(principal.Role) {
		return Decision{State: AuthenticatedWrongRole, Redirect: p.Home(principal.Role)}
	}

	if prefix, ok := p.Confined[principal.Role]; ok && !hasPathPrefix(path, prefix) {
		return Decision{State: AuthenticatedWrongRole, Redirect: p.Home(principal.Role)}
	}

	return Decision{State: AuthenticatedAuthorized}
}

// Home returns the landing page for role, or the login page for roles without one
func (p *Policy) Home(role users.RoleType) string {
	if home, ok := p.Homes[role]; ok {
		return home
	}
	return p.LoginPath
}

// LoginRedirect builds the login URL carrying path as the return target
func (p *Policy) LoginRedirect(path string) string {
	target := strings.ReplaceAll(url.QueryEscape(path), "%2F", "/")
	return p.LoginPath + "?redirect=" + target
}

func (p *Policy) isPublicRedirect(path string) bool {
	for _, public := range p.PublicRedirect {
		if hasPathPrefix(path, public) {
			return true
		}
	}
	return false
}

func (p *Policy) scopeFor(path string) *Scope {
	for i := range p.Scopes {
		if hasPathPrefix(path, p.Scopes[i].Prefix) {
			return &p.Scopes[i]
		}
	}
	return nil
}

// hasPathPrefix matches whole segments: /instructor matches /instructor/x but not /instructors
func hasPathPrefix(path, prefix string) bool {
	if prefix == "" || prefix == "/" {
		return strings.HasPrefix(path, "/")
	}
	prefix = strings.TrimSuffix(prefix, "/")
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
