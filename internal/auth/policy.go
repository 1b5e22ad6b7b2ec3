package auth

import (
	"net/http"
	"strings"
)

// Rule grants access to requests whose path matches Path exactly, or starts
// with Path when it ends in "/". An empty Methods list matches every method.
type Rule struct {
	Path    string
	Methods []string
	Role    Role
}

func (r Rule) matches(req *http.Request) bool {
	path := req.URL.Path
	if strings.HasSuffix(r.Path, "/") {
		if !strings.HasPrefix(path, r.Path) {
			return false
		}
	} else if path != r.Path {
		return false
	}
	if len(r.Methods) == 0 {
		return true
	}
	for _, method := range r.Methods {
		if method == req.Method {
			return true
		}
	}
	return false
}

// DefaultRules protects the payment API. The first matching rule wins.
var DefaultRules = []Rule{
	{Path: "/api/account/deposit", Role: RoleAdmin},
	{Path: "/api/metrics", Role: RoleAdmin},
	{Path: "/api/metrics/", Role: RoleAdmin},
	{Path: "/api/pay/", Methods: []string{http.MethodPost}, Role: RoleUser},
	{Path: "/api/account/balance", Methods: []string{http.MethodGet}, Role: RoleUser},
	{Path: "/api/transactions", Methods: []string{http.MethodGet}, Role: RoleUser},
	{Path: "/api/transactions/", Methods: []string{http.MethodGet}, Role: RoleUser},
	{Path: "/api/", Role: RoleAdmin},
}

// Policy determines required roles by request.
type Policy struct {
	ExemptPaths map[string]struct{}
	Rules       []Rule
}

// NewDefaultPolicy builds the API policy with the given unauthenticated paths.
func NewDefaultPolicy(exemptPaths []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, Rules: DefaultRules}
}

// IsExempt returns true when a request should skip auth/RBAC.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	_, ok := p.ExemptPaths[r.URL.Path]
	return ok
}

// RequiredRole resolves the role a request needs. Paths outside every rule
// are left to the router.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	for _, rule := range p.Rules {
		if rule.matches(r) {
			return rule.Role, true
		}
	}
	return "", false
}
