package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/reelforge-api/internal/models"
	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
)

// statusFor maps a pipeline error kind onto an HTTP status and error code.
func statusFor(err error) (int, string) {
	kind := pipeline.KindOf(err)
	switch kind {
	case pipeline.KindValidation:
		return http.StatusBadRequest, string(kind)
	case pipeline.KindConflict:
		return http.StatusConflict, string(kind)
	case pipeline.KindNotFound:
		return http.StatusNotFound, string(kind)
	case pipeline.KindInsufficientCredits:
		return http.StatusPaymentRequired, string(kind)
	case pipeline.KindUpstream:
		return http.StatusBadGateway, string(kind)
	default:
		return http.StatusInternalServerError, string(pipeline.KindInternal)
	}
}

// respondError writes err as an ErrorResponse. Internal errors are logged
// and replaced by a generic message so no internals leak to clients.
func (h *Handler) respondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.Log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		msg = "Internal server error"
	}
	var up *pipeline.UpstreamError
	if errors.As(err, &up) {
		h.Log.Warn().Err(up.Err).Str("service", up.Service).Msg("upstream call failed")
	}
	c.JSON(status, models.ErrorResponse{Error: code, Message: msg, Code: status})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "invalid_request",
		Message: msg,
		Code:    http.StatusBadRequest,
	})
}

func unavailable(c *gin.Context, msg string) {
	c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
		Error:   "service_unavailable",
		Message: msg,
		Code:    http.StatusServiceUnavailable,
	})
}

func notFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error:   "not_found",
		Message: msg,
		Code:    http.StatusNotFound,
	})
}
