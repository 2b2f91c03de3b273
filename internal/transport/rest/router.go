// Package rest exposes the session engine over JSON/HTTP for web clients.
// Every route except /health requires a bearer token whose subject is the
// acting participant id.
package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"peakpartner/backend/internal/ratelimit"
)

type RouterConfig struct {
	JWTSecret string
	Limiter   *ratelimit.Limiter
	Logger    *slog.Logger
	// Now is the clock used for the "today" listing. Defaults to time.Now.
	Now       func() time.Time
}

func NewRouter(svc sessionsService, cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "http.sessions"))
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLog(log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api", Auth([]byte(cfg.JWTSecret)))
	if cfg.Limiter != nil {
		api.Use(rateLimit(cfg.Limiter))
	}

	h := &SessionsHandler{svc: svc, log: log, now: now}

	s := api.Group("/sessions")
	s.POST("", h.Create)
	s.GET("", h.List)
	s.GET("/today", h.Today)
	s.GET("/upcoming", h.Next)
	s.GET("/upcoming-list", h.Upcoming)
	s.GET("/:id", h.Get)
	s.PUT("/:id/cancel", h.Cancel)
	s.PUT("/:id/complete", h.Complete)
	s.PUT("/:id/no-show", h.NoShow)
	s.GET("/:id/reschedule-requests", h.Reschedules)

	s.POST("/reschedule", h.Propose)
	s.GET("/reschedule/pending", h.Pending)
	s.PUT("/reschedule/:id/accept", h.Accept)
	s.PUT("/reschedule/:id/decline", h.Decline)
	s.PUT("/reschedule/:id/cancel", h.Withdraw)

	return r
}
