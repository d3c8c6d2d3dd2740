package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tianting/celestial-court/internal"
)

// User is the authenticated principal carried through request context. A
// console account may be bound to a deity on the roster; permissions are the
// resolved union of the account's roles.
type User struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	DeityID     *int64     `json:"deity_id,omitempty"`
	DeityName   string     `json:"deity_name,omitempty"`
	DeityTitle  string     `json:"deity_title,omitempty"`
	RoleIDs     []int64    `json:"role_ids"`
	Permissions []string   `json:"permissions,omitempty"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Credentials is the minimal row the repository exposes for password checks.
type Credentials struct {
	UserID       int64
	PasswordHash string
	IsActive     bool
}

// TokenGenerator creates tokens and expiration times.
type TokenGenerator interface {
	GenerateAccessToken(userID string, username string) (token string, err error)
	GenerateRefreshToken(userID string, username string) (token string, err error)
	ValidateToken(tokenString string) (*Claims, error)
}

// ServiceAPI is the surface the HTTP handler depends on.
type ServiceAPI interface {
	Authenticate(dto LoginDTO) (AuthTokens, error)
	RefreshTokens(refreshToken string) (AuthTokens, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	GetUserWithPermissions(userID int64) (*User, error)
}

type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Claims represents JWT token claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type JWTTokenGenerator struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
}

var (
	ErrInvalidCredentials = internal.ErrInvalidCredentials
	ErrUserInactive       = internal.ErrUserInactive
	ErrInvalidToken       = internal.ErrInvalidToken
	ErrTokenExpired       = internal.ErrTokenExpired
)

type contextKey string

// ContextUserKey holds the authenticated *User in request context.
const ContextUserKey contextKey = "auth_user"

// UserFromContext extracts the authenticated principal placed by AuthMiddleware.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(ContextUserKey).(*User)
	return user, ok
}

// ContextWithUser returns a context carrying the authenticated principal.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, ContextUserKey, user)
}
