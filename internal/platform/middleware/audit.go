package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/agenda/agenda/internal/platform/auth"
)

// AuditEntry records one access to a clinical record.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	TenantID   string
	Collection string
	PatientID  string
	Action     string // read, create, update, delete
	Path       string
	Method     string
	IPAddress  string
	StatusCode int
	RequestID  string
	Timestamp  time.Time
}

// AuditRecorder persists audit entries somewhere other than the log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// auditedCollections are the API segments that expose clinical content.
var auditedCollections = map[string]bool{
	"patients":      true,
	"therapy-notes": true,
	"tool-sessions": true,
}

// Audit logs who touched clinical records: patient files, clinical histories
// and therapy notes. Other routes pass through untouched.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			collection, patientID, ok := auditTarget(req.URL.Path)
			if !ok {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, isHTTP := err.(*echo.HTTPError); isHTTP {
				status = he.Code
			}
			if patientID == "" {
				patientID = c.QueryParam("patient_id")
			}
			ctx := req.Context()
			entry := AuditEntry{
				UserID:     auth.UserIDFromContext(ctx),
				UserRoles:  auth.RolesFromContext(ctx),
				Collection: collection,
				PatientID:  patientID,
				Action:     httpMethodToAction(req.Method),
				Path:       req.URL.Path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				StatusCode: status,
				RequestID:  requestID(c),
				Timestamp:  time.Now().UTC(),
			}
			if tenantID, isStr := c.Get("jwt_tenant_id").(string); isStr {
				entry.TenantID = tenantID
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).Str("request_id", entry.RequestID).Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("tenant_id", entry.TenantID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("collection", entry.Collection).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("path", entry.Path).
				Int("status", entry.StatusCode).
				Msg("record_access")

			return err
		}
	}
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

// auditTarget extracts the collection and patient id from /api/v1 paths:
//
//	/api/v1/patients/<id>/clinical-history -> patients, <id>
//	/api/v1/therapy-notes/<id>             -> therapy-notes, ""
func auditTarget(path string) (collection, patientID string, ok bool) {
	rest, found := strings.CutPrefix(path, "/api/v1/")
	if !found {
		return "", "", false
	}
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if !auditedCollections[segments[0]] {
		return "", "", false
	}
	if segments[0] == "patients" && len(segments) > 1 {
		patientID = segments[1]
	}
	return segments[0], patientID, true
}
