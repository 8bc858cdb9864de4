package account

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
)

func newTestHandler(t *testing.T) (*Handler, *testEnv, *echo.Echo) {
	env := newTestEnv(t)
	return NewHandler(env.svc), env, echo.New()
}

func jsonContext(e *echo.Echo, method, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func asAdmin(c echo.Context, id uuid.UUID) {
	ctx := context.WithValue(c.Request().Context(), auth.UserIDKey, id)
	ctx = context.WithValue(ctx, auth.UserRolesKey, []string{auth.RoleAdmin})
	c.SetRequest(c.Request().WithContext(ctx))
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d (%v)", code, httpErr.Code, httpErr.Message)
	}
}

func TestHandler_Register(t *testing.T) {
	h, _, e := newTestHandler(t)
	c, rec := jsonContext(e, http.MethodPost, `{"username":"maria","password":"secret1"}`)

	if err := h.Register(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Errorf("response must not expose the password hash: %s", rec.Body.String())
	}

	var u User
	json.Unmarshal(rec.Body.Bytes(), &u)
	if u.Username != "maria" {
		t.Errorf("expected maria, got %s", u.Username)
	}
}

func TestHandler_Register_Duplicate(t *testing.T) {
	h, env, e := newTestHandler(t)
	env.svc.CreateUser(context.Background(), "maria", "secret1", false)

	c, _ := jsonContext(e, http.MethodPost, `{"username":"maria","password":"secret1"}`)
	expectStatus(t, h.Register(c), http.StatusBadRequest)
}

func TestHandler_Register_AdminForbidden(t *testing.T) {
	h, _, e := newTestHandler(t)
	c, _ := jsonContext(e, http.MethodPost, `{"username":"root","password":"secret1","is_admin":true}`)
	expectStatus(t, h.Register(c), http.StatusForbidden)
}

func TestHandler_Register_AdminByAdmin(t *testing.T) {
	h, _, e := newTestHandler(t)
	c, rec := jsonContext(e, http.MethodPost, `{"username":"root","password":"secret1","is_admin":true}`)
	asAdmin(c, uuid.New())

	if err := h.Register(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_Register_BadBody(t *testing.T) {
	h, _, e := newTestHandler(t)
	c, _ := jsonContext(e, http.MethodPost, `{"username":`)
	expectStatus(t, h.Register(c), http.StatusBadRequest)
}

func TestHandler_Login(t *testing.T) {
	h, env, e := newTestHandler(t)
	env.svc.CreateUser(context.Background(), "maria", "secret1", false)

	c, rec := jsonContext(e, http.MethodPost, `{"username":"maria","password":"secret1"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var resp TokenResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Token == "" || resp.TokenType != "Bearer" || resp.ExpiresAt.IsZero() {
		t.Errorf("unexpected token response %+v", resp)
	}
}

func TestHandler_Login_WrongPassword(t *testing.T) {
	h, env, e := newTestHandler(t)
	env.svc.CreateUser(context.Background(), "maria", "secret1", false)

	c, _ := jsonContext(e, http.MethodPost, `{"username":"maria","password":"nope123"}`)
	err := h.Login(c)
	expectStatus(t, err, http.StatusUnauthorized)
	if err.(*echo.HTTPError).Message != "invalid credentials" {
		t.Errorf("unexpected message %v", err.(*echo.HTTPError).Message)
	}
}

func TestHandler_Login_MissingFields(t *testing.T) {
	h, _, e := newTestHandler(t)
	c, _ := jsonContext(e, http.MethodPost, `{"username":"maria"}`)
	expectStatus(t, h.Login(c), http.StatusBadRequest)
}

// The full chain: login, use the token, log out, and see it refused.
func TestHandler_LogoutRevokesToken(t *testing.T) {
	h, env, e := newTestHandler(t)
	env.svc.CreateUser(context.Background(), "maria", "secret1", false)

	authn := auth.JWTMiddleware(auth.JWTConfig{Tokens: env.tokens, Principals: env.svc, Revocations: env.revocations})
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if he, ok := err.(*echo.HTTPError); ok {
			c.JSON(he.Code, map[string]interface{}{"error": he.Message})
			return
		}
		c.NoContent(http.StatusInternalServerError)
	}
	h.RegisterRoutes(e.Group("/api/v1"), authn, auth.OptionalAuth(auth.JWTConfig{Tokens: env.tokens, Principals: env.svc}))

	do := func(method, path, body, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodPost, "/api/v1/auth/login", `{"username":"maria","password":"secret1"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", rec.Code)
	}
	var tok TokenResponse
	json.Unmarshal(rec.Body.Bytes(), &tok)

	if rec := do(http.MethodGet, "/api/v1/auth/me", "", tok.Token); rec.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", rec.Code)
	}
	if rec := do(http.MethodPost, "/api/v1/auth/logout", "", tok.Token); rec.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", rec.Code)
	}
	rec = do(http.MethodGet, "/api/v1/auth/me", "", tok.Token)
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "token revoked") {
		t.Errorf("expected 401 token revoked after logout, got %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(http.MethodGet, "/api/v1/users", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("users without token: expected 401, got %d", rec.Code)
	}
}

func TestHandler_ListUsers(t *testing.T) {
	h, env, e := newTestHandler(t)
	env.svc.CreateUser(context.Background(), "maria", "secret1", false)

	req := httptest.NewRequest(http.MethodGet, "/?limit=10", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListUsers(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Data  []User `json:"data"`
		Total int    `json:"total"`
		Limit int    `json:"limit"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Total != 1 || len(body.Data) != 1 || body.Limit != 10 {
		t.Errorf("unexpected list body %+v", body)
	}
}

func TestHandler_DeleteUser(t *testing.T) {
	h, env, e := newTestHandler(t)
	u, _ := env.svc.CreateUser(context.Background(), "maria", "secret1", false)

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(u.ID.String())

	if err := h.DeleteUser(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(u.ID.String())
	expectStatus(t, h.DeleteUser(c), http.StatusNotFound)
}

func TestHandler_DeleteUser_InvalidID(t *testing.T) {
	h, _, e := newTestHandler(t)
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	expectStatus(t, h.DeleteUser(c), http.StatusBadRequest)
}
