package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arbos-dev/arbos-api/internal/models"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Audit records mutating requests against the audit trail. Reads are skipped;
// the services write richer entries for domain transitions.
func Audit(writer auditWriter, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		c.Next()

		switch c.Request.Method {
		case "POST", "PUT", "PATCH", "DELETE":
		default:
			return
		}
		if c.Writer.Status() >= 400 {
			return
		}

		entry := &models.AuditLog{
			Action:    c.Request.Method + " " + c.FullPath(),
			Resource:  "http",
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			CreatedAt: time.Now().UTC(),
		}
		if userID, ok := c.Get(ContextKeyUserID); ok {
			if id, valid := userID.(string); valid {
				entry.UserID = &id
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := writer.CreateAuditLog(ctx, entry); err != nil {
			logger.Warn("failed to write http audit log", zap.Error(err))
		}
	}
}
