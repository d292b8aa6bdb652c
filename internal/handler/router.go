package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arbos-dev/arbos-api/internal/middleware"
	"github.com/arbos-dev/arbos-api/internal/models"
	"github.com/arbos-dev/arbos-api/internal/policy"
	"github.com/arbos-dev/arbos-api/internal/service"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// RouterDeps bundles everything route registration needs.
type RouterDeps struct {
	Auth        *AuthHandler
	Requests    *RequestHandler
	Timeline    *TimelineHandler
	Drafting    *DraftingHandler
	Attachments *AttachmentHandler

	AuthService *service.AuthService
	AuditWriter auditWriter
	Logger      *zap.Logger
}

// RegisterRoutes mounts all API routes under the given prefix.
func RegisterRoutes(r *gin.Engine, prefix string, deps RouterDeps) {
	api := r.Group(prefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", deps.Auth.Login)
		auth.POST("/refresh", deps.Auth.Refresh)
	}

	authed := api.Group("")
	authed.Use(middleware.JWTAuth(deps.AuthService))
	if deps.AuditWriter != nil {
		authed.Use(middleware.Audit(deps.AuditWriter, deps.Logger))
	}
	{
		authed.POST("/auth/logout", deps.Auth.Logout)
		authed.PUT("/auth/password", deps.Auth.ChangePassword)
		authed.GET("/auth/me", deps.Auth.Me)

		timeline := authed.Group("/timeline")
		{
			timeline.GET("", deps.Timeline.List)
			timeline.GET("/gantt", deps.Timeline.Gantt)
			timeline.GET("/export", deps.Timeline.Export)
			timeline.PUT("", middleware.RequireAction(policy.ActionImportTimeline), deps.Timeline.Import)
		}

		requests := authed.Group("/requests")
		{
			requests.POST("", middleware.RequireAction(policy.ActionCreateRequest), deps.Requests.Create)
			requests.GET("", deps.Requests.List)
			requests.GET("/pending", middleware.RequireAction(policy.ActionDecide), deps.Requests.Pending)
			requests.GET("/:id", deps.Requests.Get)
			requests.POST("/:id/decision", middleware.RequireAction(policy.ActionDecide), deps.Requests.Decide)
			requests.POST("/:id/attachment", deps.Attachments.Upload)
			requests.GET("/:id/attachment", deps.Attachments.Link)
		}

		orders := authed.Group("/orders")
		orders.Use(middleware.RequireRoles(models.RoleArbitrator))
		{
			orders.POST("/extract", deps.Drafting.Extract)
			orders.POST("/render", deps.Drafting.Render)
		}
	}

	// Token-authorised, no JWT needed.
	api.GET("/attachments/download", deps.Attachments.Download)
}
