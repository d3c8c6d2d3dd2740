package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tianting/celestial-court/internal"
)

// Permission codes known to the console. The catalog rows are seeded from
// these; handlers and route wiring reference the constants so a typo fails
// at review instead of silently denying.
const (
	PermMenuDashboard   = "dashboard"
	PermMenuDeities     = "deities"
	PermMenuDepartments = "departments"
	PermMenuPermissions = "permissions"

	PermDeityCreate = "deity:create"
	PermDeityEdit   = "deity:edit"
	PermDeityStatus = "deity:status"

	PermDepartmentCreate = "department:create"
	PermDepartmentEdit   = "department:edit"
	PermDepartmentStatus = "department:status"

	PermPermissionEdit = "permission:edit"
	PermRoleEdit       = "role:edit"
)

// Guard answers authorization questions for a principal. Every path is
// fail-closed: no principal, inactive principal, or unknown permission code
// all deny.
type Guard struct {
	source PermissionSource
	logger *slog.Logger
}

func NewGuard(source PermissionSource, logger *slog.Logger) *Guard {
	return &Guard{
		source: source,
		logger: logger,
	}
}

// Authorize returns nil when the principal's roles grant the permission code.
func (g *Guard) Authorize(user *User, code string) error {
	if user == nil {
		return internal.ErrAuthDenied
	}
	if !user.IsActive {
		g.logger.Warn("authorization denied: inactive account", "user_id", user.ID, "permission", code)
		return internal.ErrAuthDenied
	}
	if !g.source.HasPermission(user.RoleIDs, code) {
		g.logger.Warn("authorization denied: permission not granted",
			"user_id", user.ID,
			"permission", code,
			"role_ids", user.RoleIDs)
		return internal.ErrAuthDenied
	}
	return nil
}

// Can is the boolean form of Authorize, for callers that branch instead of fail.
func (g *Guard) Can(user *User, code string) bool {
	return g.Authorize(user, code) == nil
}

// Require builds route middleware enforcing one permission code. It expects
// AuthMiddleware to have placed the principal in context earlier in the chain.
func (g *Guard) Require(code string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok || user == nil {
				g.logger.Warn("authorization check failed: user not found in context", "permission", code)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if err := g.Authorize(user, code); err != nil {
				if appErr, isApp := internal.IsAppError(err); isApp {
					status, body := appErr.ToHTTPResponse()
					writeJSONError(w, status, body)
					return
				}
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
