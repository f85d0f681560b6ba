// Package auth resolves API keys into workspace identities.
package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

const (
	// RoleViewer may read datasets and ask questions about them.
	RoleViewer = "viewer"
	// RoleEditor may also upload and delete datasets and edit the dashboard.
	RoleEditor = "editor"
)

type Identity struct {
	Owner string
	Roles []string
}

func (i Identity) HasRole(role string) bool {
	for _, candidate := range i.Roles {
		if candidate == role {
			return true
		}
	}
	return false
}

// CanRead reports whether the identity may use read-only endpoints. Editors
// are implicitly viewers.
func (i Identity) CanRead() bool {
	return i.HasRole(RoleViewer) || i.HasRole(RoleEditor)
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

type StaticAPIKeyValidator struct {
	keys map[string]Identity
}

// NewStaticAPIKeyValidator parses comma separated key:owner:role|role
// entries.
func NewStaticAPIKeyValidator(spec string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{keys: map[string]Identity{}}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return validator, nil
	}

	for _, entry := range strings.Split(spec, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid static key entry %q: expected key:owner:role|role", entry)
		}
		key := strings.TrimSpace(parts[0])
		owner := strings.TrimSpace(parts[1])
		if key == "" || owner == "" {
			return nil, fmt.Errorf("invalid static key entry %q: empty key/owner", entry)
		}
		if _, dup := validator.keys[key]; dup {
			return nil, fmt.Errorf("invalid static key entry %q: duplicate key", entry)
		}
		roles, err := parseRoles(parts[2])
		if err != nil {
			return nil, fmt.Errorf("invalid static key entry %q: %w", entry, err)
		}
		validator.keys[key] = Identity{Owner: owner, Roles: roles}
	}

	return validator, nil
}

func parseRoles(raw string) ([]string, error) {
	roles := make([]string, 0, 2)
	for _, role := range strings.Split(strings.TrimSpace(raw), "|") {
		role = strings.ToLower(strings.TrimSpace(role))
		switch role {
		case "":
			continue
		case RoleViewer, RoleEditor:
			roles = append(roles, role)
		default:
			return nil, fmt.Errorf("unknown role %q", role)
		}
	}
	if len(roles) == 0 {
		return nil, fmt.Errorf("at least one role is required")
	}
	sort.Strings(roles)
	return roles, nil
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := v.keys[apiKey]
	return identity, ok
}

func (v *StaticAPIKeyValidator) Len() int {
	return len(v.keys)
}
