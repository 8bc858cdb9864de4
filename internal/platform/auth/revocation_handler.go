package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// revokeTokenRequest is the request body for POST /auth/revoke.
type revokeTokenRequest struct {
	JTI       string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RevocationHandler lets administrators revoke any token by its jti, e.g.
// one leaked from a shared workstation.
type RevocationHandler struct {
	store    RevocationStore
	tokenTTL time.Duration
	now      func() time.Time
}

// NewRevocationHandler builds the handler. tokenTTL is the longest a token
// can live; it is used as the revocation window when the caller does not
// know the token's expiry.
func NewRevocationHandler(store RevocationStore, tokenTTL time.Duration) *RevocationHandler {
	return &RevocationHandler{store: store, tokenTTL: tokenTTL, now: time.Now}
}

// RegisterRoutes mounts POST /auth/revoke. Only admins may call it.
func (h *RevocationHandler) RegisterRoutes(api *echo.Group, authn echo.MiddlewareFunc) {
	api.POST("/auth/revoke", h.Revoke, authn, RequireRole(RoleAdmin))
}

func (h *RevocationHandler) Revoke(c echo.Context) error {
	var req revokeTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.JTI == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "jti is required")
	}

	maxExpiry := h.now().Add(h.tokenTTL)
	if req.ExpiresAt.IsZero() || req.ExpiresAt.After(maxExpiry) {
		req.ExpiresAt = maxExpiry
	}

	if err := h.store.Revoke(c.Request().Context(), req.JTI, req.ExpiresAt); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
