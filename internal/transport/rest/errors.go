package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"peakpartner/backend/internal/service/sessions"
)

type HTTPError struct {
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Role    string `json:"role,omitempty"`
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, HTTPError{Code: code, Message: message})
}

func badRequest(c *gin.Context, message string) {
	writeError(c, http.StatusBadRequest, "invalid_request", message)
}

func unauthenticated(c *gin.Context, code string) {
	writeError(c, http.StatusUnauthorized, code, "authentication required")
}

// fail maps a service error onto a status code and logs it at a level that
// matches the kind.
func fail(c *gin.Context, log *slog.Logger, op string, err error) {
	args := []any{slog.Any("err", err), slog.String("route", c.FullPath())}

	if errors.Is(err, context.DeadlineExceeded) {
		log.Warn(op+" timed out", args...)
		writeError(c, http.StatusServiceUnavailable, "timeout", "request timed out")
		return
	}

	var sErr *sessions.Error
	if !errors.As(err, &sErr) {
		log.Error(op+" failed", args...)
		writeError(c, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	switch sErr.Kind {
	case sessions.KindConflict:
		log.Info(op+" conflict", args...)
		c.AbortWithStatusJSON(http.StatusConflict, HTTPError{
			Code:    "slot_conflict",
			Message: sErr.Msg,
			Role:    string(sErr.Role),
		})
	case sessions.KindNotFound:
		log.Info(op+" not found", args...)
		writeError(c, http.StatusNotFound, sErr.Kind.String(), sErr.Msg)
	case sessions.KindUnauthorized:
		log.Warn(op+" not permitted", args...)
		writeError(c, http.StatusForbidden, sErr.Kind.String(), sErr.Msg)
	case sessions.KindInvalidState:
		log.Info(op+" rejected", args...)
		writeError(c, http.StatusConflict, sErr.Kind.String(), sErr.Msg)
	case sessions.KindBadRequest:
		log.Warn("invalid request", args...)
		writeError(c, http.StatusBadRequest, sErr.Kind.String(), sErr.Msg)
	case sessions.KindUnavailable:
		log.Warn(op+" lock wait timed out", args...)
		c.Header("Retry-After", "1")
		writeError(c, http.StatusServiceUnavailable, sErr.Kind.String(), sErr.Msg)
	default:
		log.Error(op+" failed", args...)
		writeError(c, http.StatusInternalServerError, "internal", "internal error")
	}
}
