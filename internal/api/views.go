package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/timeguardian/internal/device"
	"github.com/goodtune/timeguardian/internal/engine"
	"github.com/goodtune/timeguardian/internal/storage"
	"github.com/rs/zerolog"
)

// StateViews serves the engine snapshot, usage and settings.
type StateViews struct {
	engine *engine.Engine
	logger zerolog.Logger
}

// NewStateViews creates a new state views instance.
func NewStateViews(eng *engine.Engine, logger zerolog.Logger) *StateViews {
	return &StateViews{
		engine: eng,
		logger: logger.With().Str("handler", "state").Logger(),
	}
}

// Snapshot returns the complete engine state.
func (v *StateViews) Snapshot(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, v.engine.Snapshot())
}

// Today returns today's usage with limits and bands.
func (v *StateViews) Today(ctx *gin.Context) {
	today := v.engine.Today()
	ctx.JSON(http.StatusOK, gin.H{
		"apps":  today,
		"count": len(today),
	})
}

// Weekly returns the weekly usage history.
func (v *StateViews) Weekly(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, v.engine.Weekly())
}

type limitRequest struct {
	Minutes int `json:"minutes"`
}

// UpdateLimit changes an app's daily limit.
func (v *StateViews) UpdateLimit(ctx *gin.Context) {
	app := ctx.Param("app")

	var req limitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "bad_request",
			"message": "Invalid request body",
		})
		return
	}
	if req.Minutes <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "minutes must be positive",
		})
		return
	}

	v.engine.UpdateDailyLimit(ctx.Request.Context(), app, req.Minutes)
	ctx.JSON(http.StatusOK, gin.H{
		"app":     app,
		"minutes": req.Minutes,
	})
}

type notificationsRequest struct {
	Enabled *bool `json:"enabled"`
}

// SetNotifications toggles limit alerts.
func (v *StateViews) SetNotifications(ctx *gin.Context) {
	var req notificationsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "bad_request",
			"message": "Request body must set enabled",
		})
		return
	}

	v.engine.SetNotificationsEnabled(ctx.Request.Context(), *req.Enabled)
	ctx.JSON(http.StatusOK, gin.H{"enabled": *req.Enabled})
}

// Onboarding reports whether onboarding was completed.
func (v *StateViews) Onboarding(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"completed": v.engine.OnboardingCompleted(ctx.Request.Context())})
}

// CompleteOnboarding marks onboarding as completed.
func (v *StateViews) CompleteOnboarding(ctx *gin.Context) {
	if err := v.engine.CompleteOnboarding(ctx.Request.Context()); err != nil {
		v.logger.Error().Err(err).Msg("Failed to complete onboarding")
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":   "server_error",
			"message": "Failed to save onboarding state",
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"completed": true})
}

// RewardViews serves the reward store.
type RewardViews struct {
	engine *engine.Engine
	logger zerolog.Logger
}

// NewRewardViews creates a new reward views instance.
func NewRewardViews(eng *engine.Engine, logger zerolog.Logger) *RewardViews {
	return &RewardViews{
		engine: eng,
		logger: logger.With().Str("handler", "rewards").Logger(),
	}
}

// List returns the reward catalog and the current balance.
func (v *RewardViews) List(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"rewards": v.engine.Rewards(),
		"coins":   v.engine.Balance(),
	})
}

// Purchase unlocks a reward.
func (v *RewardViews) Purchase(ctx *gin.Context) {
	id := ctx.Param("id")

	err := v.engine.PurchaseReward(ctx.Request.Context(), id)
	switch {
	case err == nil:
		ctx.JSON(http.StatusOK, gin.H{
			"reward": id,
			"coins":  v.engine.Balance(),
		})
	case errors.Is(err, engine.ErrRewardNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Reward not found",
		})
	case errors.Is(err, engine.ErrRewardUnlocked):
		ctx.JSON(http.StatusConflict, gin.H{
			"error":   "already_unlocked",
			"message": "Reward already unlocked",
		})
	case errors.Is(err, engine.ErrInsufficientCoins):
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "insufficient_coins",
			"message": "Not enough points",
			"coins":   v.engine.Balance(),
		})
	default:
		v.logger.Error().Err(err).Str("reward", id).Msg("Failed to purchase reward")
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":   "server_error",
			"message": "Failed to purchase reward",
		})
	}
}

// AppViews serves per-app actions.
type AppViews struct {
	engine *engine.Engine
	logger zerolog.Logger
}

// NewAppViews creates a new app views instance.
func NewAppViews(eng *engine.Engine, logger zerolog.Logger) *AppViews {
	return &AppViews{
		engine: eng,
		logger: logger.With().Str("handler", "apps").Logger(),
	}
}

// LockStatus reports whether an app is currently blocked.
func (v *AppViews) LockStatus(ctx *gin.Context) {
	app := ctx.Param("app")
	ctx.JSON(http.StatusOK, gin.H{
		"app":    app,
		"locked": v.engine.IsAppLocked(ctx.Request.Context(), app),
	})
}

// Lock blocks an app.
func (v *AppViews) Lock(ctx *gin.Context) {
	app := ctx.Param("app")

	err := v.engine.LockApp(ctx.Request.Context(), app)
	switch {
	case err == nil:
		ctx.JSON(http.StatusOK, gin.H{
			"app":    app,
			"locked": true,
			"coins":  v.engine.Balance(),
		})
	case errors.Is(err, engine.ErrUnknownApp):
		ctx.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": fmt.Sprintf("App %q is not tracked", app),
		})
	case errors.Is(err, engine.ErrPermissionRequired):
		ctx.JSON(http.StatusForbidden, gin.H{
			"error":   "permission_required",
			"message": "Device admin permission is required to block apps",
		})
	default:
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":   "server_error",
			"message": "Failed to lock app",
		})
	}
}

// TakeBreak credits the break reward.
func (v *AppViews) TakeBreak(ctx *gin.Context) {
	app := ctx.Param("app")
	if err := v.engine.TakeBreak(ctx.Request.Context(), app); err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": fmt.Sprintf("App %q is not tracked", app),
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"coins": v.engine.Balance()})
}

// Scroll returns the scroll estimate for an app.
func (v *AppViews) Scroll(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, v.engine.CalculateScrollDistance(ctx.Param("app")))
}

// Nudge returns a random time-check message.
func (v *AppViews) Nudge(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"message": v.engine.Nudge(ctx.Param("app"))})
}

// PermissionViews serves the simulated permission flow.
type PermissionViews struct {
	engine *engine.Engine
	logger zerolog.Logger
}

// NewPermissionViews creates a new permission views instance.
func NewPermissionViews(eng *engine.Engine, logger zerolog.Logger) *PermissionViews {
	return &PermissionViews{
		engine: eng,
		logger: logger.With().Str("handler", "permissions").Logger(),
	}
}

// Status returns both permission flags.
func (v *PermissionViews) Status(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, v.engine.Permissions())
}

// Request starts a permission prompt. The grant completes when the client
// invokes the returned notification's action.
func (v *PermissionViews) Request(ctx *gin.Context) {
	p, err := storage.ParsePermission(ctx.Param("kind"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "bad_request",
			"message": err.Error(),
		})
		return
	}

	var grant *device.PendingGrant
	switch p {
	case storage.PermissionUsageStats:
		grant = v.engine.RequestUsageStatsPermission(ctx.Request.Context())
	case storage.PermissionDeviceAdmin:
		grant = v.engine.RequestDeviceAdminPermission(ctx.Request.Context())
	}

	status := http.StatusAccepted
	if grant.Resolved() {
		status = http.StatusOK
	}
	ctx.JSON(status, gin.H{
		"permission":     p,
		"granted":        grant.Resolved(),
		"notificationId": grant.NotificationID,
	})
}
