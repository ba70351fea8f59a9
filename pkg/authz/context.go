package authz

import (
	"github.com/rowguard/rowguard/pkg/queryir"
)

// UserContext is the caller identity and attributes a request is evaluated
// against. A null UserID means the caller is a guest.
type UserContext struct {
	UserID      queryir.Value
	Role        string
	Labels      []string
	Teams       []string
	Permissions []string

	// Attributes carries additional caller fields referenced by fieldCheck
	// and customSql rules.
	Attributes map[string]queryir.Value
}

// IsAuthenticated reports whether an identity is present.
func (uc UserContext) IsAuthenticated() bool {
	return !uc.UserID.IsNull()
}

// Field resolves a named context field: the well-known identity fields
// first, then the free-form attributes.
func (uc UserContext) Field(name string) (queryir.Value, bool) {
	switch name {
	case "userId":
		if uc.UserID.IsNull() {
			return queryir.Value{}, false
		}
		return uc.UserID, true
	case "role":
		if uc.Role == "" {
			return queryir.Value{}, false
		}
		return queryir.StringValue(uc.Role), true
	}
	v, ok := uc.Attributes[name]
	return v, ok
}

// HasPermission reports whether the explicit permission set contains the
// named permission.
func (uc UserContext) HasPermission(name string) bool {
	for _, p := range uc.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}
