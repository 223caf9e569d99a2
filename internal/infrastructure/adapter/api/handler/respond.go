package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainerr "github.com/lekhanhduc/qrpay/internal/domain/error"
	"github.com/lekhanhduc/qrpay/internal/infrastructure/adapter/api/dto"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case domainerr.IsValidationError(err):
		return http.StatusBadRequest
	case domainerr.IsNotFoundError(err):
		return http.StatusNotFound
	case domainerr.IsDuplicateActiveError(err):
		return http.StatusConflict
	case domainerr.IsInsufficientBalanceError(err), domainerr.IsInsufficientInventoryError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the standardized {code, message} error body
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	c.JSON(status, dto.ErrorResponse{
		Code:    domainerr.ErrorCode(err),
		Message: message,
	})
}
