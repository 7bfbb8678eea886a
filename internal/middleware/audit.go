package middleware

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusregistry/registrar-api/internal/models"
	"github.com/campusregistry/registrar-api/internal/repository"
)

// auditPayload is the NewValues blob stored per request.
type auditPayload struct {
	Path    string `json:"path"`
	Method  string `json:"method"`
	Status  int    `json:"status"`
	Latency int64  `json:"latency"`
}

// Audit records an audit log entry after each successful request on the
// route it wraps. Failed requests (4xx/5xx) leave no trail here; they
// surface through request logging instead.
func Audit(repo *repository.UserRepository, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		var userID *string
		if claims := CurrentClaims(c); claims != nil {
			userID = &claims.UserID
		}

		payload, _ := json.Marshal(auditPayload{
			Path:    c.FullPath(),
			Method:  c.Request.Method,
			Status:  c.Writer.Status(),
			Latency: time.Since(start).Milliseconds(),
		})

		_ = repo.CreateAuditLog(c.Request.Context(), &models.AuditLog{
			UserID:    userID,
			Action:    action,
			Resource:  resource,
			NewValues: payload,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
	}
}
