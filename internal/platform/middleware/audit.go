package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/auth"
)

// AuditEntry captures who touched which clinic resource, when and how.
type AuditEntry struct {
	UserID       string
	Roles        []string
	ResourceType string
	ResourceID   string
	Action       string // read, create, update, delete
	IPAddress    string
	UserAgent    string
	Path         string
	Method       string
	Timestamp    time.Time
	RequestID    string
	StatusCode   int
}

// Audit returns middleware that emits a structured access record for every
// request under /api/v1/. The user is read after the handler chain ran, so
// route-level auth middleware is visible; anonymous calls have no user_id.
// Install it outside Recovery so requests that panic are recorded as 500s.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if !strings.HasPrefix(path, "/api/v1/") {
				return next(c)
			}

			err := next(c)

			entry := buildAuditEntry(c, err)

			logger.Info().
				Str("type", "access_audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("roles", entry.Roles).
				Str("resource_type", entry.ResourceType).
				Str("resource_id", entry.ResourceID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("record_access")

			return err
		}
	}
}

func buildAuditEntry(c echo.Context, err error) AuditEntry {
	req := c.Request()
	entry := AuditEntry{
		Timestamp:  time.Now().UTC(),
		Path:       req.URL.Path,
		Method:     req.Method,
		IPAddress:  c.RealIP(),
		UserAgent:  req.UserAgent(),
		StatusCode: c.Response().Status,
		Action:     httpMethodToAction(req.Method),
	}

	if err != nil {
		entry.StatusCode = http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			entry.StatusCode = he.Code
		}
	}

	ctx := req.Context()
	if id, ok := auth.UserIDFromContext(ctx); ok {
		entry.UserID = id.String()
	}
	entry.Roles = auth.RolesFromContext(ctx)

	if rid, ok := c.Get("request_id").(string); ok {
		entry.RequestID = rid
	}

	entry.ResourceType, entry.ResourceID = extractResource(req.URL.Path)
	return entry
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractResource splits /api/v1/<type>[/<id>[/...]] into its resource type
// and the first UUID-shaped ID segment.
//
//	/api/v1/patients              -> patients, ""
//	/api/v1/patients/<uuid>       -> patients, <uuid>
//	/api/v1/appointments/<uuid>/records -> appointments, <uuid>
func extractResource(path string) (string, string) {
	segments := strings.Split(strings.Trim(strings.TrimPrefix(path, "/api/v1/"), "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "unknown", ""
	}
	if len(segments) > 1 {
		if _, err := uuid.Parse(segments[1]); err == nil {
			return segments[0], segments[1]
		}
	}
	return segments[0], ""
}
