package handler

import (
	"errors"
	"net/http"

	"github.com/yashturmbekar/PMCRMS-sub002/pkg/apperrors"
	"github.com/yashturmbekar/PMCRMS-sub002/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrValidationError):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrRoleMismatch):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrInvalidTransition),
		errors.Is(err, apperrors.ErrInvalidState),
		errors.Is(err, apperrors.ErrSignatureRequired),
		errors.Is(err, apperrors.ErrWorkloadExceeded),
		errors.Is(err, apperrors.ErrNoEligibleReviewer),
		errors.Is(err, apperrors.ErrRetryExhausted):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrKeyNotConfigured):
		return http.StatusPreconditionFailed
	case errors.Is(err, apperrors.ErrGatewayError),
		errors.Is(err, apperrors.ErrSigningFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	code := statusFor(err)
	c.JSON(code, response.Error(code, err.Error()))
}

// actorID reads the authenticated officer id the middleware stored on the
// context. Returns nil when absent or malformed.
func actorID(c *gin.Context) *uuid.UUID {
	raw, exists := c.Get("officerID")
	if !exists {
		return nil
	}
	str, ok := raw.(string)
	if !ok {
		return nil
	}
	id, err := uuid.Parse(str)
	if err != nil {
		return nil
	}
	return &id
}
