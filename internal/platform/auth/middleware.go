package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
	ClaimsKey    contextKey = "token_claims"
	PrincipalKey contextKey = "principal"
)

// ErrUnknownPrincipal is returned by a PrincipalLoader when the token
// subject no longer exists.
var ErrUnknownPrincipal = errors.New("principal not found")

// Principal is the authenticated user as currently stored.
type Principal struct {
	UserID   uuid.UUID
	Username string
	Admin    bool
}

// Roles maps the admin flag onto the role names used by RequireRole.
func (p *Principal) Roles() []string {
	if p.Admin {
		return []string{RoleAdmin}
	}
	return []string{RoleStaff}
}

// PrincipalLoader resolves the subject of a verified token.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, id uuid.UUID) (*Principal, error)
}

type JWTConfig struct {
	Tokens      *TokenIssuer
	Principals  PrincipalLoader
	Revocations RevocationStore
	// Optional lets requests without an Authorization header through
	// anonymously. A header that is present must still be valid.
	Optional bool
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				if cfg.Optional {
					return next(c)
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "token not provided")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims, err := cfg.Tokens.Parse(strings.TrimSpace(parts[1]))
			if err != nil {
				if errors.Is(err, ErrTokenExpired) {
					return echo.NewHTTPError(http.StatusUnauthorized, "token expired")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			ctx := c.Request().Context()

			if cfg.Revocations != nil {
				revoked, err := cfg.Revocations.IsRevoked(ctx, claims.ID)
				if err != nil {
					return err
				}
				if revoked {
					return echo.NewHTTPError(http.StatusUnauthorized, "token revoked")
				}
			}

			userID, _ := uuid.Parse(claims.Subject)
			principal := &Principal{UserID: userID, Admin: claims.Admin}
			if cfg.Principals != nil {
				principal, err = cfg.Principals.LoadPrincipal(ctx, userID)
				if err != nil {
					if errors.Is(err, ErrUnknownPrincipal) {
						return echo.NewHTTPError(http.StatusForbidden, "access denied")
					}
					return err
				}
			}

			roles := principal.Roles()

			ctx = context.WithValue(ctx, UserIDKey, principal.UserID)
			ctx = context.WithValue(ctx, UserRolesKey, roles)
			ctx = context.WithValue(ctx, ClaimsKey, claims)
			ctx = context.WithValue(ctx, PrincipalKey, principal)
			c.SetRequest(c.Request().WithContext(ctx))

			c.Set("user_id", principal.UserID.String())
			c.Set("user_roles", roles)

			return next(c)
		}
	}
}

// OptionalAuth authenticates when a bearer token is supplied and passes
// anonymous requests through untouched.
func OptionalAuth(cfg JWTConfig) echo.MiddlewareFunc {
	cfg.Optional = true
	return JWTMiddleware(cfg)
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return v, ok
}

func RolesFromContext(ctx context.Context) []string {
	v, _ := ctx.Value(UserRolesKey).([]string)
	return v
}

func ClaimsFromContext(ctx context.Context) *Claims {
	v, _ := ctx.Value(ClaimsKey).(*Claims)
	return v
}

func PrincipalFromContext(ctx context.Context) *Principal {
	v, _ := ctx.Value(PrincipalKey).(*Principal)
	return v
}

// IsAdmin reports whether the request was authenticated by an admin.
func IsAdmin(ctx context.Context) bool {
	for _, r := range RolesFromContext(ctx) {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}
