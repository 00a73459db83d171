// Package handler exposes the attendance core over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"classattend/internal/attendance"
	"classattend/internal/auth"
	"classattend/internal/httpmiddleware"
	"classattend/internal/notify"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Options carries the auth and policy settings the handlers need.
type Options struct {
	SigningKey         string
	Issuer             string
	TokenTTL           time.Duration
	PublicRegistration bool
	HeartbeatInterval  time.Duration
}

type Handler struct {
	registry *attendance.Registry
	verifier *attendance.Verifier
	hub      notify.Hub
	limiter  *httpmiddleware.TokenBucket
	checks   map[string]HealthCheck
	opts     Options
}

// New wires the handlers. limiter may be nil to disable rate limiting.
func New(reg *attendance.Registry, ver *attendance.Verifier, hub notify.Hub, limiter *httpmiddleware.TokenBucket, checks map[string]HealthCheck, opts Options) *Handler {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 15 * time.Second
	}
	return &Handler{registry: reg, verifier: ver, hub: hub, limiter: limiter, checks: checks, opts: opts}
}

// Routes registers every endpoint on r.
func (h *Handler) Routes(r gin.IRouter) {
	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.POST("/register", h.Register)

	lecturer := v1.Group("", auth.Require(h.opts.SigningKey, h.opts.Issuer, auth.RoleLecturer))
	lecturer.POST("/sessions", h.StartSession)
	lecturer.PUT("/sessions/:id/token", h.RotateToken)
	lecturer.PUT("/sessions/:id/end", h.EndSession)
	lecturer.GET("/sessions/:id/attendance", h.SessionAttendance)
	lecturer.GET("/sessions/:id/events", h.StreamEvents)
	lecturer.GET("/history/sessions", h.LecturerHistory)

	student := v1.Group("", auth.Require(h.opts.SigningKey, h.opts.Issuer, auth.RoleStudent))
	mark := []gin.HandlerFunc{h.MarkAttendance}
	if h.limiter != nil {
		mark = append([]gin.HandlerFunc{h.limiter.Middleware(httpmiddleware.ClientIP)}, mark...)
	}
	student.POST("/attendance", mark...)
	student.GET("/history/attended", h.StudentHistory)
}

// Healthz runs every registered check.
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(gin.H, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}
	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, gin.H{"status": overall, "checks": results})
}

// Register issues a student token for a self-declared id when public registration is on.
func (h *Handler) Register(c *gin.Context) {
	if !h.opts.PublicRegistration {
		writeError(c, http.StatusForbidden, "RegistrationDisabled", "self registration is disabled")
		return
	}
	var req struct {
		StudentID string `json:"student_id" binding:"required,max=128"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}
	tok, err := auth.Issue(req.StudentID, auth.RoleStudent, h.opts.Issuer, h.opts.SigningKey, h.opts.TokenTTL)
	if err != nil {
		writeError(c, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"access_token": tok.AccessToken,
		"expires_at":   tok.ExpiresAt.Unix(),
		"role":         auth.RoleStudent,
	})
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": message})
}

// fail maps core errors onto HTTP responses.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrValidation):
		writeError(c, http.StatusBadRequest, "ValidationError", err.Error())
	case errors.Is(err, attendance.ErrNotFoundOrForbidden):
		writeError(c, http.StatusForbidden, "NotFoundOrForbidden", "session not found or not owned by caller")
	case errors.Is(err, attendance.ErrStoreUnavailable):
		log.Warn().Err(err).Str("path", c.FullPath()).Msg("store unavailable")
		writeError(c, http.StatusServiceUnavailable, "TransientStoreFailure", "storage temporarily unavailable, retry")
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		writeError(c, http.StatusInternalServerError, "InternalError", "internal error")
	}
}

func subject(c *gin.Context) string {
	claims, _ := auth.ClaimsFrom(c)
	return claims.Subject
}

func sessionIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "ValidationError", "invalid session id")
		return 0, false
	}
	return id, true
}

func limitQuery(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return limit
}
