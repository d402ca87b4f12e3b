package access

import (
	"log/slog"
	"net/http"
	"strconv"
)

// Headers set by the gateway on every proxied request. Client-supplied
// values are always overwritten.
const (
	HeaderAllowedClassifications = "X-Allowed-Classifications"
	HeaderAdvancedSearch         = "X-Search-Advanced"
	HeaderCallerID               = "X-Caller-ID"
	HeaderCallerRole             = "X-Caller-Role"
)

// Caller is the access context internal services derive from gateway headers.
type Caller struct {
	ID       string
	Role     Role
	Allowed  Set
	Advanced bool
}

// ForRole builds the Caller the gateway forwards for an authenticated key.
func ForRole(id string, role Role) Caller {
	return Caller{
		ID:       id,
		Role:     role,
		Allowed:  role.Classifications(),
		Advanced: role.CanUseAdvancedSearch(),
	}
}

// Apply overwrites the access headers on an outgoing request.
func (c Caller) Apply(h http.Header) {
	h.Set(HeaderAllowedClassifications, c.Allowed.String())
	h.Set(HeaderAdvancedSearch, strconv.FormatBool(c.Advanced))
	h.Set(HeaderCallerID, c.ID)
	h.Set(HeaderCallerRole, string(c.Role))
}

// FromRequest reads the gateway headers. A missing or malformed
// classification header degrades to public only.
func FromRequest(r *http.Request) Caller {
	c := Caller{
		ID:      r.Header.Get(HeaderCallerID),
		Role:    ParseRole(r.Header.Get(HeaderCallerRole)),
		Allowed: PublicOnly,
	}
	if v := r.Header.Get(HeaderAllowedClassifications); v != "" {
		s, err := ParseSet(v)
		if err != nil {
			slog.Default().Warn("ignoring malformed classification header", "value", v, "error", err)
		} else if !s.Empty() {
			c.Allowed = s
		}
	}
	c.Advanced, _ = strconv.ParseBool(r.Header.Get(HeaderAdvancedSearch))
	return c
}
