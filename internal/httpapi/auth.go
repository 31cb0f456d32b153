package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type scopeContextKey struct{}

// Scope is the tenant/branch pair resolved by the gateway in front of this
// service. Every non-public request must carry it; handlers never accept a
// tenant or branch from the request body.
type Scope struct {
	TenantID string
	BranchID string
}

// ScopeMiddleware reads X-Tenant-ID and X-Branch-ID and rejects non-public
// requests that lack a valid pair.
func ScopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicEndpoint(r) {
			next.ServeHTTP(w, r)
			return
		}
		tenantID := strings.TrimSpace(r.Header.Get("X-Tenant-ID"))
		branchID := strings.TrimSpace(r.Header.Get("X-Branch-ID"))
		if tenantID == "" || branchID == "" {
			writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "authorization_required", "X-Tenant-ID and X-Branch-ID headers are required")
			return
		}
		if !isValidUUID(tenantID) || !isValidUUID(branchID) {
			writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "authorization_required", "X-Tenant-ID and X-Branch-ID must be UUIDs")
			return
		}
		ctx := context.WithValue(r.Context(), scopeContextKey{}, Scope{TenantID: tenantID, BranchID: branchID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func scopeFromContext(ctx context.Context) (Scope, bool) {
	value := ctx.Value(scopeContextKey{})
	if value == nil {
		return Scope{}, false
	}
	scope, ok := value.(Scope)
	return scope, ok
}

func requireScope(w http.ResponseWriter, r *http.Request) (Scope, bool) {
	scope, ok := scopeFromContext(r.Context())
	if !ok {
		writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "authorization_required", "missing tenant scope")
		return Scope{}, false
	}
	return scope, true
}

func requestIDFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

// Public endpoints serve lobby displays that carry no credentials. The public
// status route still takes tenant/branch from query parameters; it exposes
// display codes only.
func isPublicEndpoint(r *http.Request) bool {
	switch {
	case r.URL.Path == "/healthz" || r.URL.Path == "/metrics":
		return true
	case strings.HasPrefix(r.URL.Path, "/api/public/"):
		return true
	default:
		return r.Method == http.MethodOptions
	}
}
