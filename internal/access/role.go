package access

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/library"
)

// Role is a caller's library role, carried on API keys.
type Role string

const (
	RoleScientist Role = "scientist"
	RoleStudent   Role = "student"
	RoleLibrarian Role = "librarian"
	RoleAdmin     Role = "admin"
	RoleGuest     Role = "guest"
)

var roleClassifications = map[Role]Set{
	RoleScientist: NewSet(library.Public, library.Internal, library.Confidential),
	RoleStudent:   NewSet(library.Public),
	RoleLibrarian: NewSet(library.Public, library.Internal, library.Confidential),
	RoleAdmin:     All,
	RoleGuest:     PublicOnly,
}

// ParseRole normalises a role name. Unknown names are returned as-is and
// get the public-only policy.
func ParseRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

// Known reports whether r is one of the defined roles.
func (r Role) Known() bool {
	_, ok := roleClassifications[r]
	return ok
}

// Classifications returns the set r may read.
func (r Role) Classifications() Set {
	if s, ok := roleClassifications[r]; ok {
		return s
	}
	return PublicOnly
}

// CanUpload reports whether r may add documents.
func (r Role) CanUpload() bool {
	switch r {
	case RoleScientist, RoleLibrarian, RoleAdmin:
		return true
	}
	return false
}

// CanManage covers deleting documents, API keys and cache invalidation.
func (r Role) CanManage() bool {
	return r == RoleLibrarian || r == RoleAdmin
}

// CanUseAdvancedSearch gates TF-IDF scoring on request.
func (r Role) CanUseAdvancedSearch() bool {
	switch r {
	case RoleScientist, RoleLibrarian, RoleAdmin:
		return true
	}
	return false
}

// Roles lists the defined roles.
func Roles() []Role {
	return []Role{RoleScientist, RoleStudent, RoleLibrarian, RoleAdmin, RoleGuest}
}
