package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/timeguardian/internal/engine"
	"github.com/goodtune/timeguardian/internal/notify"
	"github.com/rs/zerolog"
)

// Deps holds dependencies needed for API routes.
type Deps struct {
	Engine         *engine.Engine
	Hub            *notify.Hub
	Logger         zerolog.Logger
	AllowedOrigins []string
}

// SetupRoutes registers all API routes with the Gin engine.
func SetupRoutes(r *gin.Engine, deps *Deps) {
	r.Use(LoggingMiddleware(deps.Logger))
	if len(deps.AllowedOrigins) > 0 {
		r.Use(CORSMiddleware(deps.AllowedOrigins))
	}

	state := NewStateViews(deps.Engine, deps.Logger)
	rewards := NewRewardViews(deps.Engine, deps.Logger)
	apps := NewAppViews(deps.Engine, deps.Logger)
	perms := NewPermissionViews(deps.Engine, deps.Logger)
	actions := NewActionViews(deps.Hub, deps.Logger)

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.GET("/state", state.Snapshot)
		v1.GET("/usage/today", state.Today)
		v1.GET("/usage/weekly", state.Weekly)
		v1.PUT("/limits/:app", state.UpdateLimit)
		v1.PUT("/settings/notifications", state.SetNotifications)
		v1.GET("/onboarding", state.Onboarding)
		v1.POST("/onboarding", state.CompleteOnboarding)

		v1.GET("/rewards", rewards.List)
		v1.POST("/rewards/:id/purchase", rewards.Purchase)

		v1.GET("/apps/:app/lock", apps.LockStatus)
		v1.POST("/apps/:app/lock", apps.Lock)
		v1.POST("/apps/:app/break", apps.TakeBreak)
		v1.GET("/apps/:app/scroll", apps.Scroll)
		v1.GET("/apps/:app/nudge", apps.Nudge)

		v1.GET("/permissions", perms.Status)
		v1.POST("/permissions/:kind/request", perms.Request)

		v1.POST("/actions/:id", actions.Invoke)
		v1.GET("/notifications/stream", actions.Stream)
	}
}
