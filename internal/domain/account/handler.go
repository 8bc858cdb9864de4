package account

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the auth and user routes on api. authn must reject
// anonymous requests; optional must let them through.
func (h *Handler) RegisterRoutes(api *echo.Group, authn, optional echo.MiddlewareFunc) {
	api.POST("/auth/login", h.Login)
	api.POST("/auth/register", h.Register, optional)
	api.POST("/auth/logout", h.Logout, authn)
	api.GET("/auth/me", h.Me, authn)

	admin := []echo.MiddlewareFunc{authn, auth.RequireRole(auth.RoleAdmin)}
	api.GET("/users", h.ListUsers, admin...)
	api.DELETE("/users/:id", h.DeleteUser, admin...)
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	u, err := h.svc.Register(ctx, req, auth.IsAdmin(ctx))
	if err != nil {
		if errors.Is(err, ErrAdminRequired) {
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		}
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}
	tok, err := h.svc.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return err
	}
	return c.JSON(http.StatusOK, TokenResponse{
		Token:     tok.Token,
		TokenType: "Bearer",
		ExpiresAt: tok.ExpiresAt,
	})
}

func (h *Handler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	claims := auth.ClaimsFromContext(ctx)
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "token not provided")
	}
	if err := h.svc.Logout(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	id, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "token not provided")
	}
	u, err := h.svc.GetUser(ctx, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	users, total, err := h.svc.ListUsers(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, pg.Limit, pg.Offset))
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteUser(c.Request().Context(), id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
