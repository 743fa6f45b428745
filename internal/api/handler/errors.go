package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mediaguard/backend/internal/ledger"
)

// statusFor maps a ledger error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrAlreadyRegistered),
		errors.Is(err, ledger.ErrNotBlocked),
		errors.Is(err, ledger.ErrNoPendingRequest):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrNotRegistered),
		errors.Is(err, ledger.ErrUserBlocked),
		errors.Is(err, ledger.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrInvalidScore),
		errors.Is(err, ledger.ErrInvalidContentHash):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func abortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": message})
}

// fail writes err as a JSON error body. Internal errors are logged and their
// text is not sent to the client.
func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "path", c.FullPath(), "request_id", c.GetString(requestIDKey), "err", err)
		abortJSON(c, status, ledger.Code(err), "internal error")
		return
	}
	abortJSON(c, status, ledger.Code(err), err.Error())
}

func badRequest(c *gin.Context, message string) {
	abortJSON(c, http.StatusBadRequest, "invalid_request", message)
}
