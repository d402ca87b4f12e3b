package middleware

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/access"
)

// Permission reports whether a role may perform an operation.
type Permission func(access.Role) bool

var (
	CanUpload = Permission(access.Role.CanUpload)
	CanManage = Permission(access.Role.CanManage)
)

// Require rejects requests whose key role lacks the permission. It must run
// inside Auth.
func Require(allowed Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := GetKeyInfo(r.Context())
			if info == nil {
				writeError(w, http.StatusUnauthorized, "missing api key")
				return
			}
			if !allowed(info.Role) {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
