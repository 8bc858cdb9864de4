package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/auth"
)

func runAudit(t *testing.T, method, path string, userID *uuid.UUID, handler echo.HandlerFunc) map[string]interface{} {
	t.Helper()
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("request_id", "req-123")

	if userID != nil {
		inner := handler
		handler = func(c echo.Context) error {
			ctx := context.WithValue(c.Request().Context(), auth.UserIDKey, *userID)
			ctx = context.WithValue(ctx, auth.UserRolesKey, []string{auth.RoleStaff})
			c.SetRequest(c.Request().WithContext(ctx))
			return inner(c)
		}
	}

	Audit(zerolog.New(&buf))(handler)(c)

	if buf.Len() == 0 {
		return nil
	}
	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode audit line: %v", err)
	}
	return line
}

func TestAudit_LogsAuthenticatedAccess(t *testing.T) {
	userID := uuid.New()
	patientID := uuid.New().String()

	line := runAudit(t, http.MethodGet, "/api/v1/patients/"+patientID, &userID, func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if line == nil {
		t.Fatal("expected an audit line")
	}

	want := map[string]interface{}{
		"type":          "access_audit",
		"user_id":       userID.String(),
		"resource_type": "patients",
		"resource_id":   patientID,
		"action":        "read",
		"request_id":    "req-123",
		"status":        float64(200),
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("%s: got %v, want %v", k, line[k], v)
		}
	}
	roles, _ := line["roles"].([]interface{})
	if len(roles) != 1 || roles[0] != auth.RoleStaff {
		t.Errorf("roles: got %v, want [staff]", line["roles"])
	}
}

func TestAudit_ErrorStatus(t *testing.T) {
	line := runAudit(t, http.MethodDelete, "/api/v1/professionals/"+uuid.New().String(), nil, func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusConflict, "professional has appointments")
	})
	if line["status"] != float64(409) {
		t.Errorf("expected status 409, got %v", line["status"])
	}
	if line["action"] != "delete" {
		t.Errorf("expected delete action, got %v", line["action"])
	}
	if line["user_id"] != "" {
		t.Errorf("expected empty user_id for anonymous call, got %v", line["user_id"])
	}
}

func TestAudit_RecordsRecoveredPanic(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/v1/appointments", nil), httptest.NewRecorder())

	panicking := func(c echo.Context) error { panic("nil map write") }
	Audit(zerolog.New(&buf))(Recovery(zerolog.Nop())(panicking))(c)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected an audit line for the panicking request: %v", err)
	}
	if line["status"] != float64(500) {
		t.Errorf("expected status 500, got %v", line["status"])
	}
	if line["action"] != "create" {
		t.Errorf("expected create action, got %v", line["action"])
	}
}

func TestAudit_SkipsNonAPIPaths(t *testing.T) {
	line := runAudit(t, http.MethodGet, "/health", nil, func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if line != nil {
		t.Errorf("expected no audit line for /health, got %v", line)
	}
}

func TestExtractResource(t *testing.T) {
	id := uuid.New().String()
	tests := []struct {
		path     string
		wantType string
		wantID   string
	}{
		{"/api/v1/patients", "patients", ""},
		{"/api/v1/patients/", "patients", ""},
		{"/api/v1/patients/" + id, "patients", id},
		{"/api/v1/appointments/" + id + "/records", "appointments", id},
		{"/api/v1/auth/login", "auth", ""},
		{"/api/v1/", "unknown", ""},
	}
	for _, tt := range tests {
		gotType, gotID := extractResource(tt.path)
		if gotType != tt.wantType || gotID != tt.wantID {
			t.Errorf("extractResource(%q) = (%q, %q), want (%q, %q)", tt.path, gotType, gotID, tt.wantType, tt.wantID)
		}
	}
}

func TestHTTPMethodToAction(t *testing.T) {
	tests := map[string]string{
		http.MethodGet:    "read",
		http.MethodHead:   "read",
		http.MethodPost:   "create",
		http.MethodPut:    "update",
		http.MethodPatch:  "update",
		http.MethodDelete: "delete",
	}
	for method, want := range tests {
		if got := httpMethodToAction(method); got != want {
			t.Errorf("httpMethodToAction(%s) = %s, want %s", method, got, want)
		}
	}
}
