// Package permissions decides whether a user may see a UI fragment or open a route.
package permissions

import (
	"html/template"
	"strings"

	"github.com/jrsteele09/go-auth-client/sessions"
)

// Requirement is attached declaratively to a protected fragment or route.
// An empty dimension imposes no constraint.
type Requirement struct {
	Permissions []string `json:"permissions,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

// Evaluate reports whether user satisfies req.
//
// A nil user is never granted anything. Permissions use ALL semantics: every listed
// permission must be held. Roles use ANY semantics: holding one listed role is enough.
func Evaluate(user *sessions.User, req Requirement) bool {
	if user == nil {
		return false
	}

	for _, p := range req.Permissions {
		if !user.HasPermission(p) {
			return false
		}
	}

	if len(req.Roles) > 0 {
		hasRole := false
		for _, r := range req.Roles {
			if user.HasRole(r) {
				hasRole = true
				break
			}
		}
		if !hasRole {
			return false
		}
	}

	return true
}

// IsZero reports whether req constrains nothing.
func (req Requirement) IsZero() bool {
	return len(req.Permissions) == 0 && len(req.Roles) == 0
}

// ParseList splits a comma separated list ("users.list, metrics.list"), dropping blanks.
func ParseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// TemplateFuncs exposes fragment gating to html/template:
//
//	{{ if can "permissions" "metrics.list" }}...{{ end }}
//	{{ if can "roles" "administrator,editor" }}...{{ end }}
//	{{ if canAll "metrics.list" "administrator,editor" }}...{{ end }}
func TemplateFuncs(user *sessions.User) template.FuncMap {
	return template.FuncMap{
		"can": func(dimension, list string) bool {
			switch dimension {
			case "permissions":
				return Evaluate(user, Requirement{Permissions: ParseList(list)})
			case "roles":
				return Evaluate(user, Requirement{Roles: ParseList(list)})
			}
			return false
		},
		"canAll": func(permissionList, roleList string) bool {
			return Evaluate(user, Requirement{Permissions: ParseList(permissionList), Roles: ParseList(roleList)})
		},
		"isAuthenticated": func() bool {
			return user != nil
		},
	}
}
