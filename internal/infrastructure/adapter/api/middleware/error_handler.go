package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainerr "github.com/lekhanhduc/qrpay/internal/domain/error"
	coreport "github.com/lekhanhduc/qrpay/internal/domain/port/core"
	"github.com/lekhanhduc/qrpay/internal/infrastructure/adapter/api/dto"
)

// ErrorHandler middleware recovers from handler panics and turns them into a
// standardized 500 response
func ErrorHandler(logger coreport.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				// FullPath gives the registered route pattern; the raw URL may
				// carry user identifiers
				route := c.FullPath()
				if route == "" {
					route = c.Request.URL.Path
				}
				logger.Error("Panic recovered while handling request", map[string]any{
					"panic":      rec,
					"method":     c.Request.Method,
					"route":      route,
					"client_ip":  c.ClientIP(),
					"request_id": c.GetHeader("X-Request-ID"),
				})

				c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{
					Code:    domainerr.ErrorCode(domainerr.ErrInternalServer),
					Message: "Internal server error",
				})
			}
		}()

		c.Next()
	}
}
