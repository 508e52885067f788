package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nidoapp/nido-api/internal/errors"
	"github.com/nidoapp/nido-api/internal/store"
)

// ErrorMapper maps errors from different layers to appropriate HTTP responses
func ErrorMapper(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err
			status, body := mapError(err, logger)
			c.JSON(status, body)
		}
	}
}

func mapError(err error, logger *zap.Logger) (int, interface{}) {
	switch e := err.(type) {
	case *errors.UnauthenticatedError:
		return http.StatusUnauthorized, gin.H{"error": "Unauthenticated"}
	case *store.NotFoundError:
		return http.StatusNotFound, gin.H{"error": e.Error()}
	case *errors.MarshalingError:
		logger.Error("Marshaling error", zap.String("message", e.Message))
		return http.StatusInternalServerError, gin.H{
			"error": "Data processing error",
		}
	case *errors.TransientError:
		logger.Error("Transient backend error", zap.Error(e))
		return http.StatusServiceUnavailable, gin.H{
			"error": "Temporarily unavailable",
		}
	default:
		logger.Error("Unhandled error", zap.Error(err))
		return http.StatusInternalServerError, gin.H{"error": "Internal server error"}
	}
}
